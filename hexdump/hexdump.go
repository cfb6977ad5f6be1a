// Package hexdump renders byte streams in the canonical
// offset/hex/ASCII layout:
//
//	00000380  48 65 6c 6c 6f 2c 20 77  6f 72 6c 64 21 0a 00 ff  |Hello, world!...|
//
// With deduplication a run of identical lines collapses into a single
// "*" line, as hexdump -C does.
package hexdump

import (
	"bytes"
	"fmt"
	"io"
)

const lineLen = 16

// Encoder writes a hex dump of the bytes written to it.
// Close must be called to flush a trailing partial line.
type Encoder struct {
	w     io.Writer
	addr  uint32 // address of the first byte of cur
	cur   *[lineLen]byte
	prev  *[lineLen]byte
	n     int // bytes pending in cur
	dedup bool
	// havePrev is set once a deduplicated line has been printed.
	havePrev    bool
	suppressing bool
	err         error
}

// Option configures an Encoder.
type Option func(*Encoder)

// WithDedup enables or disables collapsing of repeated lines.
func WithDedup(dedup bool) Option {
	return func(e *Encoder) { e.dedup = dedup }
}

// NewEncoder returns an Encoder writing to w, numbering lines from addr.
// Deduplication is enabled unless disabled with WithDedup(false).
func NewEncoder(w io.Writer, addr uint32, opts ...Option) *Encoder {
	e := &Encoder{
		w:     w,
		addr:  addr,
		cur:   new([lineLen]byte),
		prev:  new([lineLen]byte),
		dedup: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Dump returns the dump of data without deduplication.
func Dump(addr uint32, data []byte) string {
	var buf bytes.Buffer
	e := NewEncoder(&buf, addr, WithDedup(false))
	e.Write(data)
	e.Close()
	return buf.String()
}

// Write implements io.Writer.
func (e *Encoder) Write(p []byte) (int, error) {
	for i, b := range p {
		if e.err != nil {
			return i, e.err
		}
		// the byte is consumed even when flushing its line fails
		if err := e.WriteByte(b); err != nil {
			return i + 1, err
		}
	}
	return len(p), nil
}

// WriteByte implements io.ByteWriter.
func (e *Encoder) WriteByte(b byte) error {
	if e.err != nil {
		return e.err
	}
	e.cur[e.n] = b
	e.n++
	if e.n == lineLen {
		e.emitLine()
	}
	return e.err
}

func (e *Encoder) emitLine() {
	switch {
	case !e.dedup:
		e.printLine(e.cur[:])
	case e.havePrev && *e.cur == *e.prev:
		if !e.suppressing {
			e.printf("*\n")
			e.suppressing = true
		}
	default:
		e.printLine(e.cur[:])
		e.suppressing = false
		e.havePrev = true
	}
	e.addr += lineLen
	e.n = 0
	e.cur, e.prev = e.prev, e.cur
}

// Close flushes the pending partial line, or marks the end of a
// suppressed run with its final address.
func (e *Encoder) Close() error {
	if e.err != nil {
		return e.err
	}
	switch {
	case e.n > 0:
		e.printLine(e.cur[:e.n])
		e.addr += uint32(e.n)
		e.n = 0
	case e.suppressing:
		e.printf("%08x\n", e.addr)
	}
	e.suppressing = false
	return e.err
}

// printLine prints up to 16 bytes, padding the hex columns of missing
// bytes so the ASCII column stays aligned.
func (e *Encoder) printLine(line []byte) {
	var buf [80]byte
	out := fmt.Appendf(buf[:0], "%08x  ", e.addr)
	for i := 0; i < lineLen; i++ {
		if i < len(line) {
			out = fmt.Appendf(out, "%02x ", line[i])
		} else {
			out = append(out, "   "...)
		}
		if i == 7 {
			out = append(out, ' ')
		}
	}
	out = append(out, " |"...)
	for _, b := range line {
		if b >= 0x20 && b <= 0x7e {
			out = append(out, b)
		} else {
			out = append(out, '.')
		}
	}
	out = append(out, "|\n"...)
	e.write(out)
}

func (e *Encoder) printf(format string, args ...any) {
	e.write(fmt.Appendf(nil, format, args...))
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}
