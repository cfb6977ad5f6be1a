package eeprog

import (
	"bytes"
	"errors"
)

// --- Mocks ---

// mockChip simulates an SPI EEPROM at pin level, answering in SPI mode 0.
// Commands take effect when chip select is released, as on the real part.
type mockChip struct {
	pins     PinMap
	out      byte // last byte written by the host
	miso     bool
	selected bool

	// current transaction
	in      byte // bits shifted in
	inBits  int
	idx     int // completed bytes
	opcode  byte
	addr    uint32
	outByte byte
	outPos  int
	next    byte
	pending []byte

	mem      []byte
	pageSize int
	sr       byte // WPEN, BP, IPL bits
	wel      bool
	busy     int // status reads left reporting busy, -1 for ever
	busyFor  int // busy count set by every write cycle

	// statistics
	wrens      int
	rdsrs      int
	segments   []Segment
	clockEdges int
}

func newMockChip(m PinMap, size int) *mockChip {
	return &mockChip{
		pins:     m,
		out:      m.Encode(Pins{ChipSelect: true}),
		mem:      bytes.Repeat([]byte{0xFF}, size),
		pageSize: DefaultPageSize,
	}
}

func (c *mockChip) ReadPins() (byte, error) {
	p := c.pins.Decode(c.out)
	p.DataIn = c.miso
	return c.pins.Encode(p), nil
}

func (c *mockChip) WritePins(b byte) error {
	old := c.pins.Decode(c.out)
	p := c.pins.Decode(b)
	c.out = b

	switch {
	case !c.selected && !p.ChipSelect:
		c.begin()
	case c.selected && p.ChipSelect:
		c.end()
		return nil
	}
	if !c.selected {
		return nil
	}
	if !old.Clock && p.Clock {
		c.clockEdges++
		c.rising(p.DataOut)
	}
	if old.Clock && !p.Clock {
		c.falling()
	}
	return nil
}

func (c *mockChip) begin() {
	c.selected = true
	c.in, c.inBits, c.idx = 0, 0, 0
	c.opcode = 0
	c.addr = 0
	c.pending = nil
	c.outByte, c.outPos, c.next = 0, 0, 0
	c.miso = false
}

func (c *mockChip) rising(mosi bool) {
	c.in <<= 1
	if mosi {
		c.in |= 1
	}
	c.inBits++
	if c.inBits == 8 {
		c.received(c.in)
		c.in, c.inBits = 0, 0
		c.idx++
	}
}

func (c *mockChip) falling() {
	c.outPos++
	if c.outPos == 8 {
		c.outPos = 0
		c.outByte = c.next
	}
	c.miso = c.outByte>>(7-c.outPos)&1 != 0
}

// received handles the complete byte v at position c.idx and prepares
// the byte shifted out next.
func (c *mockChip) received(v byte) {
	c.next = 0
	if c.idx == 0 {
		c.opcode = v
	}
	switch c.opcode {
	case OpReadStatus:
		c.next = c.status()
	case OpRead:
		switch {
		case c.idx >= 1 && c.idx <= 3:
			c.addr = c.addr<<8 | uint32(v)
			if c.idx == 3 {
				c.next = c.mem[c.wrap(c.addr)]
			}
		case c.idx > 3:
			c.addr++
			c.next = c.mem[c.wrap(c.addr)]
		}
	case OpWrite:
		if c.idx >= 1 && c.idx <= 3 {
			c.addr = c.addr<<8 | uint32(v)
		} else if c.idx > 3 {
			c.pending = append(c.pending, v)
		}
	case OpWriteStatus:
		if c.idx == 1 {
			c.pending = []byte{v}
		}
	}
}

func (c *mockChip) end() {
	c.selected = false
	c.miso = false
	if c.idx == 0 {
		return
	}
	switch c.opcode {
	case OpWriteEn:
		c.wrens++
		c.wel = true
	case OpWriteDis:
		c.wel = false
	case OpReadStatus:
		c.rdsrs++
		if c.busy > 0 {
			c.busy--
		}
	case OpWrite:
		if !c.wel || c.busy != 0 || len(c.pending) == 0 {
			return
		}
		c.segments = append(c.segments, Segment{Addr: c.addr, Len: len(c.pending)})
		page := c.addr - c.addr%uint32(c.pageSize)
		for i, b := range c.pending {
			off := (c.addr - page + uint32(i)) % uint32(c.pageSize)
			c.mem[c.wrap(page+off)] = b
		}
		c.cycle()
	case OpWriteStatus:
		if !c.wel || len(c.pending) == 0 {
			return
		}
		c.sr = c.pending[0] & 0xDC
		c.cycle()
	case OpChipErase:
		if !c.wel {
			return
		}
		for i := range c.mem {
			c.mem[i] = 0xFF
		}
		c.cycle()
	}
}

func (c *mockChip) cycle() {
	c.wel = false
	c.busy = c.busyFor
}

func (c *mockChip) status() byte {
	s := c.sr
	if c.wel {
		s |= byte(StatusWriteEnabled)
	}
	if c.busy != 0 {
		s |= byte(StatusBusy)
	}
	return s
}

func (c *mockChip) wrap(addr uint32) uint32 { return addr % uint32(len(c.mem)) }

// shiftRegister wires MISO to the end of an 8-bit shift register fed by
// MOSI, so every transfer returns the byte sent by the previous one.
type shiftRegister struct {
	pins  PinMap
	out   byte
	reg   byte
	latch bool
}

func (s *shiftRegister) ReadPins() (byte, error) {
	p := s.pins.Decode(s.out)
	p.DataIn = s.reg&0x80 != 0
	return s.pins.Encode(p), nil
}

func (s *shiftRegister) WritePins(b byte) error {
	old := s.pins.Decode(s.out)
	p := s.pins.Decode(b)
	s.out = b
	if !old.Clock && p.Clock {
		s.latch = p.DataOut
	}
	if old.Clock && !p.Clock {
		s.reg <<= 1
		if s.latch {
			s.reg |= 1
		}
	}
	return nil
}

var errPort = errors.New("usb: device gone")

// faultyPort fails selected calls and records all traffic.
type faultyPort struct {
	value     byte // last written, returned by ReadPins
	stuck     byte // bits always read high
	failRead  bool
	failWrite int // number of upcoming writes to fail
	reads     int
	writes    []byte
}

func (f *faultyPort) ReadPins() (byte, error) {
	f.reads++
	if f.failRead {
		return 0, errPort
	}
	return f.value | f.stuck, nil
}

func (f *faultyPort) WritePins(b byte) error {
	if f.failWrite > 0 {
		f.failWrite--
		return errPort
	}
	f.writes = append(f.writes, b)
	f.value = b
	return nil
}

// captureLogger records every message.
type captureLogger struct {
	msgs []string
}

func (l *captureLogger) Debug(msg string) { l.msgs = append(l.msgs, "DEBUG "+msg) }
func (l *captureLogger) Info(msg string)  { l.msgs = append(l.msgs, "INFO "+msg) }
func (l *captureLogger) Warn(msg string)  { l.msgs = append(l.msgs, "WARN "+msg) }
func (l *captureLogger) Error(msg string) { l.msgs = append(l.msgs, "ERROR "+msg) }

func (l *captureLogger) contains(sub string) bool {
	for _, m := range l.msgs {
		if bytes.Contains([]byte(m), []byte(sub)) {
			return true
		}
	}
	return false
}
