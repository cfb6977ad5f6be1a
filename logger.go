package eeprog

// Logger defines the logging interface for simple string messages.
// Callers format their messages before logging, so implementations stay
// trivial to write on top of any logging package.
type Logger interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

var globalLogger Logger = &nopLogger{}

// SetLogger sets the global logger instance, used by every component
// that was not given its own logger.
func SetLogger(l Logger) {
	if l == nil {
		globalLogger = &nopLogger{}
		return
	}
	globalLogger = l
}

// loggerOr returns l, or the global logger when l is nil.
func loggerOr(l Logger) Logger {
	if l == nil {
		return globalLogger
	}
	return l
}

// nopLogger is a logger that does nothing.
type nopLogger struct{}

func (l *nopLogger) Debug(msg string) {}
func (l *nopLogger) Info(msg string)  {}
func (l *nopLogger) Warn(msg string)  {}
func (l *nopLogger) Error(msg string) {}
