package eeprog

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Markers are the commands and response strings of the proxy firmware.
// Responses are only used as synchronization points in the byte stream.
type Markers struct {
	// Interrupt aborts whatever command the proxy is running. Nil means
	// the default, so a NUL interrupt byte stays configurable.
	Interrupt *byte `toml:"interrupt"`
	// Prompt is printed when the proxy waits for a command.
	Prompt string `toml:"prompt"`
	// HoldReset keeps the target system in reset, confirmed by ResetHeld.
	HoldReset string `toml:"hold_reset"`
	ResetHeld string `toml:"reset_held"`
	// Reset releases and pulses the target reset line.
	Reset string `toml:"reset"`
	// Ready is printed once the proxy accepts write payload bytes.
	Ready string `toml:"ready"`
	// Chunk acknowledges every payload chunk but the last.
	Chunk string `toml:"chunk"`
	// Done is printed after the last payload byte has been written.
	Done string `toml:"done"`
	// Reading precedes the raw bytes of a read command.
	Reading string `toml:"reading"`
	// StatusPrefix precedes the two hex digits of the status register.
	StatusPrefix string `toml:"status_prefix"`
}

// DefaultMarkers returns the markers of the stock proxy firmware.
func DefaultMarkers() Markers {
	interrupt := byte(0x03)
	return Markers{
		Interrupt:    &interrupt,
		Prompt:       "> ",
		HoldReset:    "reset hold",
		ResetHeld:    "reset held",
		Reset:        "reset",
		Ready:        "ready",
		Chunk:        "ok",
		Done:         "done",
		Reading:      "reading from",
		StatusPrefix: "status 0x",
	}
}

// withDefaults fills every empty field from DefaultMarkers.
func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.Interrupt == nil {
		m.Interrupt = d.Interrupt
	}
	fill := func(s *string, def string) {
		if *s == "" {
			*s = def
		}
	}
	fill(&m.Prompt, d.Prompt)
	fill(&m.HoldReset, d.HoldReset)
	fill(&m.ResetHeld, d.ResetHeld)
	fill(&m.Reset, d.Reset)
	fill(&m.Ready, d.Ready)
	fill(&m.Chunk, d.Chunk)
	fill(&m.Done, d.Done)
	fill(&m.Reading, d.Reading)
	fill(&m.StatusPrefix, d.StatusPrefix)
	return m
}

// SerialConfig holds the configuration of the serial handshake transport.
type SerialConfig struct {
	// ChunkSize is the number of payload bytes sent between two
	// acknowledgements. Defaults to 64 if not provided.
	ChunkSize int
	// Markers overrides the default proxy markers field by field.
	Markers Markers
	// Logger overrides the global logger.
	Logger Logger
}

// SerialTransport talks to the microcontroller proxy over a serial stream.
// Expect blocks until its marker arrives; there is no timeout.
type SerialTransport struct {
	s       Stream
	r       *bufio.Reader
	config  SerialConfig
	markers Markers
	log     Logger
}

var _ Target = (*SerialTransport)(nil)

// NewSerialTransport returns a transport using s.
func NewSerialTransport(s Stream, c SerialConfig) *SerialTransport {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 64
	}
	return &SerialTransport{
		s:       s,
		r:       bufio.NewReader(s),
		config:  c,
		markers: c.Markers.withDefaults(),
		log:     loggerOr(c.Logger),
	}
}

// Interrupt aborts any command the proxy may be running.
func (t *SerialTransport) Interrupt() {
	t.write([]byte{*t.markers.Interrupt})
}

// SendCommand writes one command line.
func (t *SerialTransport) SendCommand(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	t.log.Debug("serial → " + strconv.Quote(line))
	t.write([]byte(line + "\n"))
}

// Expect consumes the stream until pattern has been seen. A byte that
// breaks a partial match resets the match without being compared to the
// start of the pattern again.
func (t *SerialTransport) Expect(pattern string) error {
	cursor := 0
	for cursor < len(pattern) {
		b, err := t.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("expect %q: %w", pattern, ErrStreamClosed)
			}
			return fmt.Errorf("expect %q: %w", pattern,
				&TransportError{Op: "serial read", Err: err})
		}
		if b == pattern[cursor] {
			cursor++
		} else {
			cursor = 0
		}
	}
	t.log.Debug("serial ← " + strconv.Quote(pattern))
	return nil
}

// write sends p. Failed and short writes are only logged; the next
// Expect notices a proxy that did not get the message.
func (t *SerialTransport) write(p []byte) {
	n, err := t.s.Write(p)
	if err != nil {
		t.log.Warn(fmt.Sprintf("serial write: %d of %d bytes: %v", n, len(p), err))
		return
	}
	if n != len(p) {
		t.log.Warn(fmt.Sprintf("serial write: short write, %d of %d bytes", n, len(p)))
	}
}

// readRaw hands up to n raw bytes to fn. A short read is logged; the
// following Expect reports the broken stream.
func (t *SerialTransport) readRaw(n int, fn func(i int, b byte) error) error {
	for i := 0; i < n; i++ {
		b, err := t.r.ReadByte()
		if err != nil {
			t.log.Warn(fmt.Sprintf("serial read: short read, %d of %d bytes: %v", i, n, err))
			return nil
		}
		if err := fn(i, b); err != nil {
			return err
		}
	}
	return nil
}

// prompt interrupts the proxy and waits for its prompt.
func (t *SerialTransport) prompt() error {
	t.Interrupt()
	return t.Expect(t.markers.Prompt)
}

func (t *SerialTransport) holdReset() error {
	t.SendCommand("%s", t.markers.HoldReset)
	return t.Expect(t.markers.ResetHeld)
}

func (t *SerialTransport) releaseReset() error {
	t.SendCommand("%s", t.markers.Reset)
	return t.Expect(t.markers.Prompt)
}

// Write uploads data to addr while the target system is held in reset.
func (t *SerialTransport) Write(addr uint32, data []byte) error {
	if err := t.upload(addr, data); err != nil {
		return fmt.Errorf("upload 0x%06X+%d: %w", addr, len(data), err)
	}
	return nil
}

func (t *SerialTransport) upload(addr uint32, data []byte) error {
	if err := t.prompt(); err != nil {
		return err
	}
	if err := t.holdReset(); err != nil {
		return err
	}
	t.SendCommand("write 0x%06x %d", addr, len(data))
	if err := t.Expect(t.markers.Ready); err != nil {
		return err
	}
	size := t.config.ChunkSize
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		t.write(data[off:end])
		if err := t.s.Drain(); err != nil {
			t.log.Warn(fmt.Sprintf("serial drain: %v", err))
		}
		if end < len(data) {
			if err := t.Expect(t.markers.Chunk); err != nil {
				return err
			}
		}
	}
	if err := t.Expect(t.markers.Done); err != nil {
		return err
	}
	return t.releaseReset()
}

// ReadStream downloads n bytes starting at addr.
func (t *SerialTransport) ReadStream(addr uint32, n int, w io.ByteWriter) error {
	err := t.prompt()
	if err == nil {
		err = t.read(addr, n, func(_ int, b byte) error { return w.WriteByte(b) })
	}
	if err != nil {
		return fmt.Errorf("download 0x%06X+%d: %w", addr, n, err)
	}
	return nil
}

func (t *SerialTransport) read(addr uint32, n int, fn func(i int, b byte) error) error {
	t.SendCommand("read 0x%06x %d", addr, n)
	if err := t.Expect(t.markers.Reading); err != nil {
		return err
	}
	if err := t.readRaw(n, fn); err != nil {
		return err
	}
	return t.Expect(t.markers.Prompt)
}

// Verify compares the memory at addr with want while the target system
// is held in reset, and returns the number of differing bytes.
func (t *SerialTransport) Verify(addr uint32, want []byte) (int, error) {
	c := &mismatchCounter{want: want}
	err := t.verify(addr, len(want), c)
	if err != nil {
		return 0, fmt.Errorf("verify 0x%06X+%d: %w", addr, len(want), err)
	}
	// bytes the stream never delivered count as mismatches
	return c.mismatches + len(want) - c.i, nil
}

func (t *SerialTransport) verify(addr uint32, n int, c *mismatchCounter) error {
	if err := t.prompt(); err != nil {
		return err
	}
	if err := t.holdReset(); err != nil {
		return err
	}
	if err := t.read(addr, n, func(_ int, b byte) error { return c.WriteByte(b) }); err != nil {
		return err
	}
	return t.releaseReset()
}

// Status reads the EEPROM status register through the proxy.
func (t *SerialTransport) Status() (Status, error) {
	s, err := t.status()
	if err != nil {
		return 0, fmt.Errorf("status: %w", err)
	}
	return s, nil
}

func (t *SerialTransport) status() (Status, error) {
	if err := t.prompt(); err != nil {
		return 0, err
	}
	t.SendCommand("status")
	if err := t.Expect(t.markers.StatusPrefix); err != nil {
		return 0, err
	}
	var digits [2]byte
	if err := t.readRaw(2, func(i int, b byte) error { digits[i] = b; return nil }); err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(digits[:]), 16, 8)
	if err != nil {
		return 0, &ProtocolError{Op: "status", Reason: fmt.Sprintf("bad register value %q", digits[:])}
	}
	if err := t.Expect(t.markers.Prompt); err != nil {
		return 0, err
	}
	return Status(v), nil
}
