package eeprog

import (
	"io"
	"log"
)

func init() {
	globalLogger = &stdLogger{l: log.Default()}
}

// stdLogger is a default logger that uses the standard library log package.
// Debug messages are dropped unless verbose is set.
type stdLogger struct {
	l       *log.Logger
	verbose bool
}

// NewStdLogger returns a Logger writing to w. Debug messages are only
// written when verbose is true.
func NewStdLogger(w io.Writer, verbose bool) Logger {
	return &stdLogger{l: log.New(w, "", 0), verbose: verbose}
}

func (l *stdLogger) Debug(msg string) {
	if l.verbose {
		l.l.Print("[DEBUG] " + msg)
	}
}

func (l *stdLogger) Info(msg string) {
	l.l.Print("[INFO]  " + msg)
}

func (l *stdLogger) Warn(msg string) {
	l.l.Print("[WARN]  " + msg)
}

func (l *stdLogger) Error(msg string) {
	l.l.Print("[ERROR] " + msg)
}
