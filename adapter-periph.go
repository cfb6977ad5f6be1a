package eeprog

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// gpioPort packs up to eight periph.io pins into a PinPort.
// Index i of pins is bit i of the port byte.
type gpioPort struct {
	pins    [8]gpio.PinIO
	outputs byte
	last    byte
	written bool
}

func newGPIOPort(pins [8]gpio.PinIO, m PinMap) (*gpioPort, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	for name, o := range map[string]uint8{
		"clock": m.Clock, "data out": m.DataOut, "data in": m.DataIn, "chip select": m.ChipSelect,
	} {
		if pins[o] == nil {
			return nil, fmt.Errorf("no pin at offset %d for %s", o, name)
		}
	}
	p := &gpioPort{pins: pins, outputs: m.OutputMask()}
	if err := pins[m.DataIn].In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure data in pin: %w", err)
	}
	return p, nil
}

func (p *gpioPort) ReadPins() (byte, error) {
	var b byte
	for i, pin := range p.pins {
		if pin != nil && pin.Read() == gpio.High {
			b |= 1 << i
		}
	}
	return b, nil
}

// WritePins only drives the outputs whose level changed since the last write.
func (p *gpioPort) WritePins(b byte) error {
	for i, pin := range p.pins {
		mask := byte(1) << i
		if pin == nil || p.outputs&mask == 0 {
			continue
		}
		if p.written && (p.last^b)&mask == 0 {
			continue
		}
		if err := pin.Out(gpio.Level(b&mask != 0)); err != nil {
			p.written = false
			return fmt.Errorf("pin %s: %w", pin, err)
		}
	}
	p.last = b
	p.written = true
	return nil
}

// FTDIConfig selects the FTDI adapter used for bit-banging.
type FTDIConfig struct {
	// VendorID defaults to 0x0403 (FTDI).
	VendorID uint16 `toml:"vendor_id"`
	// ProductID defaults to 0x6001 (FT232R).
	ProductID uint16 `toml:"product_id"`
}

// OpenFTDI initializes periph.io and returns the D0-D7 bit-bang port of
// the first matching FT232R or FT232H adapter.
func OpenFTDI(c FTDIConfig, m PinMap) (PinPort, io.Closer, error) {
	if c.VendorID == 0 {
		c.VendorID = 0x0403
	}
	if c.ProductID == 0 {
		c.ProductID = 0x6001
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if info.VenID != c.VendorID || info.DevID != c.ProductID {
			continue
		}
		var pins [8]gpio.PinIO
		switch d := dev.(type) {
		case *ftdi.FT232R:
			pins = [8]gpio.PinIO{d.D0, d.D1, d.D2, d.D3, d.D4, d.D5, d.D6, d.D7}
		case *ftdi.FT232H:
			pins = [8]gpio.PinIO{d.D0, d.D1, d.D2, d.D3, d.D4, d.D5, d.D6, d.D7}
		default:
			return nil, nil, fmt.Errorf("FTDI device %s has no bit-bang support", info.Type)
		}
		globalLogger.Info("Connected to FTDI device: " + info.Type)
		port, err := newGPIOPort(pins, m)
		if err != nil {
			return nil, nil, err
		}
		return port, closerFunc(dev.Halt), nil
	}
	return nil, nil, fmt.Errorf("no FTDI device %04x:%04x found", c.VendorID, c.ProductID)
}

// GPIONames names the host GPIO pins wired to the chip, e.g. "GPIO11".
type GPIONames struct {
	Clock      string `toml:"clock"`
	DataOut    string `toml:"data_out"`
	DataIn     string `toml:"data_in"`
	ChipSelect string `toml:"chip_select"`
}

// OpenHostGPIO initializes periph.io and returns a port made of the named
// host pins, placed at the offsets of m.
func OpenHostGPIO(names GPIONames, m PinMap) (PinPort, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}
	var pins [8]gpio.PinIO
	for _, s := range []struct {
		name   string
		offset uint8
	}{
		{names.Clock, m.Clock},
		{names.DataOut, m.DataOut},
		{names.DataIn, m.DataIn},
		{names.ChipSelect, m.ChipSelect},
	} {
		if s.name == "" {
			return nil, fmt.Errorf("GPIO pin for offset %d not configured", s.offset)
		}
		p := gpioreg.ByName(s.name)
		if p == nil {
			return nil, fmt.Errorf("failed to open GPIO pin %s", s.name)
		}
		pins[s.offset] = p
	}
	return newGPIOPort(pins, m)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
