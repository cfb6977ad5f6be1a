package eeprog

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// CAT25M01 instruction set.
const (
	OpWriteStatus = 0x01 // WRSR
	OpWrite       = 0x02 // WRITE
	OpRead        = 0x03 // READ
	OpWriteDis    = 0x04 // WRDI
	OpReadStatus  = 0x05 // RDSR
	OpWriteEn     = 0x06 // WREN
	// Winbond W25Q80, sets all bits to 1.
	OpChipErase = 0xC7
)

// DefaultPageSize is the write granularity of the supported chips.
const DefaultPageSize = 256

// Status is a snapshot of the status register.
type Status byte

// Status register bits.
const (
	StatusBusy           Status = 1 << 0 // ~RDY
	StatusWriteEnabled   Status = 1 << 1 // WEL
	StatusBlockProtect0  Status = 1 << 2 // BP0
	StatusBlockProtect1  Status = 1 << 3 // BP1
	StatusLockInProgress Status = 1 << 4 // LIP
	StatusLockID         Status = 1 << 6 // IPL
	StatusWriteProtect   Status = 1 << 7 // WPEN
)

// Busy reports whether an internal write cycle is in progress.
func (s Status) Busy() bool { return s&StatusBusy != 0 }

// WriteEnabled reports whether the write-enable latch is set.
func (s Status) WriteEnabled() bool { return s&StatusWriteEnabled != 0 }

// WriteProtected reports whether the WP pin is honoured.
func (s Status) WriteProtected() bool { return s&StatusWriteProtect != 0 }

// BlockProtect returns the BP1:BP0 field.
func (s Status) BlockProtect() uint8 { return uint8(s>>2) & 0x03 }

func (s Status) String() string {
	b := byte(s)
	return fmt.Sprintf("status 0x%02X: WPEN:%d IPL:%d 0:%d LIP:%d BP:%d%d WEL:%d ~RDY:%d",
		b, b>>7&1, b>>6&1, b>>5&1, b>>4&1, b>>3&1, b>>2&1, b>>1&1, b&1)
}

// EEPROMConfig holds the configuration of the EEPROM command layer.
type EEPROMConfig struct {
	// PageSize is the write page size in bytes.
	// Defaults to 256 if not provided.
	PageSize int
	// SkipReadyPoll disables waiting for the write cycle to finish
	// after a page write, matching the behavior of the first tool
	// revisions. Only safe with slow transports.
	SkipReadyPoll bool
	// ReadyTimeout bounds the wait for the write cycle to finish.
	// Defaults to 100ms if not provided.
	ReadyTimeout time.Duration
	// Logger overrides the global logger.
	Logger Logger
}

// EEPROM drives an SPI EEPROM through a bit-banged bus.
type EEPROM struct {
	bus    *Bus
	config EEPROMConfig
	log    Logger
}

var _ Target = (*EEPROM)(nil)
var _ Eraser = (*EEPROM)(nil)

// NewEEPROM returns the command layer for the chip on bus.
func NewEEPROM(bus *Bus, c EEPROMConfig) *EEPROM {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 100 * time.Millisecond
	}
	return &EEPROM{bus: bus, config: c, log: loggerOr(c.Logger)}
}

// command runs one chip-select bracketed instruction sequence.
func (e *EEPROM) command(fn func() error) error {
	if err := e.bus.Select(); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return e.bus.Deselect()
}

func (e *EEPROM) send(bs ...byte) error {
	for _, b := range bs {
		if _, err := e.bus.Transfer(b); err != nil {
			return err
		}
	}
	return nil
}

func addrBytes(addr uint32) []byte {
	return []byte{byte(addr >> 16), byte(addr >> 8), byte(addr)}
}

// ReadStatus reads the status register.
func (e *EEPROM) ReadStatus() (Status, error) {
	var s byte
	err := e.command(func() error {
		if err := e.send(OpReadStatus); err != nil {
			return err
		}
		var err error
		s, err = e.bus.Transfer(0)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("read status: %w", err)
	}
	return Status(s), nil
}

// Status implements Target.
func (e *EEPROM) Status() (Status, error) { return e.ReadStatus() }

// WriteEnable sets the write-enable latch. It must precede every write.
func (e *EEPROM) WriteEnable() error {
	if err := e.command(func() error { return e.send(OpWriteEn) }); err != nil {
		return fmt.Errorf("write enable: %w", err)
	}
	return nil
}

// WriteDisable clears the write-enable latch.
func (e *EEPROM) WriteDisable() error {
	if err := e.command(func() error { return e.send(OpWriteDis) }); err != nil {
		return fmt.Errorf("write disable: %w", err)
	}
	return nil
}

// WriteStatus writes the status register.
func (e *EEPROM) WriteStatus(s Status) error {
	if err := e.WriteEnable(); err != nil {
		return err
	}
	if err := e.command(func() error { return e.send(OpWriteStatus, byte(s)) }); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return e.waitReady()
}

// ReadStream reads n bytes starting at addr under a single READ
// instruction; the chip increments the address itself.
func (e *EEPROM) ReadStream(addr uint32, n int, w io.ByteWriter) error {
	err := e.command(func() error {
		if err := e.send(OpRead); err != nil {
			return err
		}
		if err := e.send(addrBytes(addr)...); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			b, err := e.bus.Transfer(0)
			if err != nil {
				return err
			}
			if err := w.WriteByte(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("read 0x%06X+%d: %w", addr, n, err)
	}
	return nil
}

// Read returns n bytes starting at addr.
func (e *EEPROM) Read(addr uint32, n int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(n)
	if err := e.ReadStream(addr, n, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Segment is a part of a write that fits inside one page.
type Segment struct {
	Addr uint32
	Len  int
}

// PageSegments splits a write of n bytes at addr into page-aligned
// segments. The first one runs to the end of addr's page.
func PageSegments(addr uint32, n, pageSize int) []Segment {
	var segs []Segment
	for n > 0 {
		span := pageSize - int(addr%uint32(pageSize))
		if span > n {
			span = n
		}
		segs = append(segs, Segment{Addr: addr, Len: span})
		addr += uint32(span)
		n -= span
	}
	return segs
}

// Write stores data at addr, one WREN + WRITE sequence per page.
func (e *EEPROM) Write(addr uint32, data []byte) error {
	off := 0
	for _, seg := range PageSegments(addr, len(data), e.config.PageSize) {
		chunk := data[off : off+seg.Len]
		if err := e.writePage(seg.Addr, chunk); err != nil {
			return fmt.Errorf("write page 0x%06X+%d: %w", seg.Addr, seg.Len, err)
		}
		off += seg.Len
	}
	return nil
}

func (e *EEPROM) writePage(addr uint32, chunk []byte) error {
	if err := e.WriteEnable(); err != nil {
		return err
	}
	err := e.command(func() error {
		if err := e.send(OpWrite); err != nil {
			return err
		}
		if err := e.send(addrBytes(addr)...); err != nil {
			return err
		}
		return e.send(chunk...)
	})
	if err != nil {
		return err
	}
	return e.waitReady()
}

// ChipErase sets every bit of the chip to 1.
func (e *EEPROM) ChipErase() error {
	if err := e.WriteEnable(); err != nil {
		return err
	}
	if err := e.command(func() error { return e.send(OpChipErase) }); err != nil {
		return fmt.Errorf("chip erase: %w", err)
	}
	// a full erase takes far longer than a page write
	return e.waitReadyFor(100 * e.config.ReadyTimeout)
}

// Verify reads len(want) bytes at addr and counts the bytes that differ.
func (e *EEPROM) Verify(addr uint32, want []byte) (int, error) {
	c := &mismatchCounter{want: want}
	if err := e.ReadStream(addr, len(want), c); err != nil {
		return 0, err
	}
	return c.mismatches, nil
}

func (e *EEPROM) waitReady() error {
	return e.waitReadyFor(e.config.ReadyTimeout)
}

// waitReadyFor polls the status register until the write cycle ends.
func (e *EEPROM) waitReadyFor(timeout time.Duration) error {
	if e.config.SkipReadyPoll {
		return nil
	}
	deadline := time.Now().Add(timeout)
	for polls := 1; ; polls++ {
		s, err := e.ReadStatus()
		if err != nil {
			return err
		}
		if !s.Busy() {
			if polls > 1 {
				e.log.Debug(fmt.Sprintf("ready after %d status polls", polls))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %w", ErrPkg, ErrTimeout)
		}
	}
}

// mismatchCounter compares a byte stream against want.
type mismatchCounter struct {
	want       []byte
	i          int
	mismatches int
}

func (c *mismatchCounter) WriteByte(b byte) error {
	if c.i >= len(c.want) || c.want[c.i] != b {
		c.mismatches++
	}
	c.i++
	return nil
}
