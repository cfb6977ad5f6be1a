package eeprog

import (
	"fmt"
)

// BusConfig holds the configuration of a bit-banged SPI bus.
type BusConfig struct {
	// Pins maps the SPI signals onto the port byte.
	// Defaults to the "icsp" profile if zero.
	Pins PinMap
	// Debug logs every transferred byte at debug level.
	Debug bool
	// Logger overrides the global logger.
	Logger Logger
}

// Bus is an SPI master (mode 0, MSB first) built from GPIO reads and writes.
// It owns the port; it is not safe for concurrent use.
type Bus struct {
	port   PinPort
	pins   PinMap
	debug  bool
	log    Logger
	state  Pins // last pin state written or read
	cached bool // state reflects the port
}

// NewBus creates a bus on port and drives it to the idle state:
// chip deselected, clock low.
func NewBus(port PinPort, c BusConfig) (*Bus, error) {
	if port == nil {
		return nil, fmt.Errorf("pin port not configured")
	}
	if c.Pins == (PinMap{}) {
		c.Pins, _ = Profile(DefaultProfile)
	}
	if err := c.Pins.Validate(); err != nil {
		return nil, fmt.Errorf("pin map: %w", err)
	}

	b := &Bus{
		port:  port,
		pins:  c.Pins,
		debug: c.Debug,
		log:   loggerOr(c.Logger),
	}
	if err := b.writePins(Pins{ChipSelect: true}); err != nil {
		return nil, fmt.Errorf("set initial pin state: %w", err)
	}
	return b, nil
}

// Select asserts chip select.
func (b *Bus) Select() error {
	p, err := b.current()
	if err != nil {
		return err
	}
	p.ChipSelect = false
	return b.writePins(p)
}

// Deselect releases chip select.
func (b *Bus) Deselect() error {
	p, err := b.current()
	if err != nil {
		return err
	}
	p.ChipSelect = true
	return b.writePins(p)
}

// Transfer clocks out one byte on MOSI and returns the byte received on
// MISO at the same time. Chip select is left to the caller.
func (b *Bus) Transfer(out byte) (byte, error) {
	if b.debug {
		b.log.Debug(fmt.Sprintf("MOSI → 0x%02X 0b%08b", out, out))
	}
	data := out
	for i := 0; i < 8; i++ {
		// read MISO bit shifted out on the previous falling clock
		p, err := b.readPins()
		if err != nil {
			return 0, err
		}
		if p.Clock {
			b.cached = false
			return 0, &ProtocolError{Op: "spi transfer", Reason: "expected low clock"}
		}

		p.DataOut = data&0x80 != 0
		// shift written MOSI bit off the left, received MISO bit in on the right
		data <<= 1
		if p.DataIn {
			data |= 1
		}

		// data must be stable before the rising edge
		if err := b.writePins(p); err != nil {
			return 0, err
		}
		// device latches MOSI on the rising edge
		p.Clock = true
		if err := b.writePins(p); err != nil {
			return 0, err
		}
		// device shifts out its next bit on the falling edge
		p.Clock = false
		if err := b.writePins(p); err != nil {
			return 0, err
		}
	}
	if b.debug {
		b.log.Debug(fmt.Sprintf("MISO ← 0x%02X 0b%08b", data, data))
	}
	return data, nil
}

// current returns the last known pin state, reading the port if the
// cached state is stale.
func (b *Bus) current() (Pins, error) {
	if b.cached {
		return b.state, nil
	}
	return b.readPins()
}

func (b *Bus) readPins() (Pins, error) {
	raw, err := b.port.ReadPins()
	if err != nil {
		b.cached = false
		return Pins{}, &TransportError{Op: "read pins", Err: err}
	}
	b.state = b.pins.Decode(raw)
	b.cached = true
	return b.state, nil
}

func (b *Bus) writePins(p Pins) error {
	if err := b.port.WritePins(b.pins.Encode(p)); err != nil {
		b.cached = false
		return &TransportError{Op: "write pins", Err: err}
	}
	b.state = p
	b.cached = true
	return nil
}
