package eeprog

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialPortConfig selects the serial port of the proxy.
type SerialPortConfig struct {
	// Port is the device path, e.g. "/dev/ttyACM0".
	Port string `toml:"port"`
	// Baud defaults to 115200.
	Baud int `toml:"baud"`
	// ChunkSize is the payload chunk size, see SerialConfig.
	ChunkSize int `toml:"chunk_size"`
	// Markers overrides the proxy markers, see SerialConfig.
	Markers Markers `toml:"markers"`
}

// OpenSerial opens the proxy serial port, 8N1.
func OpenSerial(c SerialPortConfig) (serial.Port, error) {
	if c.Port == "" {
		return nil, fmt.Errorf("serial port not configured")
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}
	mode := &serial.Mode{
		BaudRate: c.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(c.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", c.Port, err)
	}
	globalLogger.Debug(fmt.Sprintf("opened %s at %d baud", c.Port, c.Baud))
	return p, nil
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
