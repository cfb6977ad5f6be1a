package eeprog

import "io"

// PinPort represents a GPIO port whose pins are read and written as a
// single byte, such as an FTDI chip in bit-bang mode.
type PinPort interface {
	// ReadPins returns the current level of every pin, one bit per pin.
	ReadPins() (byte, error)
	// WritePins drives every output pin to the level of its bit.
	// Bits of input pins are ignored.
	WritePins(b byte) error
}

// Stream represents a character-oriented serial link.
type Stream interface {
	io.Reader
	io.Writer
	// Drain blocks until everything written has been transmitted.
	Drain() error
}

// Target is a programmable memory reached through one of the transports.
// Both EEPROM and SerialTransport implement it.
type Target interface {
	// Status reads the device status register.
	Status() (Status, error)
	// Write stores data starting at addr.
	Write(addr uint32, data []byte) error
	// ReadStream reads n bytes starting at addr, handing each byte to w
	// as soon as it is received.
	ReadStream(addr uint32, n int, w io.ByteWriter) error
	// Verify compares the memory starting at addr with want and returns
	// the number of differing bytes.
	Verify(addr uint32, want []byte) (int, error)
}

// Eraser is implemented by targets that can erase the whole chip.
type Eraser interface {
	ChipErase() error
}
