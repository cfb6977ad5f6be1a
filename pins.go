package eeprog

import (
	"fmt"
	"sort"
)

// Pins is the state of the four SPI signals.
// ChipSelect is active-low: false selects the device.
type Pins struct {
	Clock      bool
	DataOut    bool
	DataIn     bool
	ChipSelect bool
}

func (p Pins) String() string {
	return fmt.Sprintf("CS:%d SCK:%d MOSI:%d MISO:%d",
		bit(p.ChipSelect), bit(p.Clock), bit(p.DataOut), bit(p.DataIn))
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PinMap assigns each SPI signal to a bit offset of the port byte.
type PinMap struct {
	Clock      uint8 `toml:"clock"`
	DataOut    uint8 `toml:"data_out"`
	DataIn     uint8 `toml:"data_in"`
	ChipSelect uint8 `toml:"chip_select"`
}

// FT230X/FT232R bit-bang bit offsets.
const (
	bitTX  = 0
	bitRX  = 1
	bitRTS = 2
	bitCTS = 3
)

var profiles = map[string]PinMap{
	// SPI EEPROM ICSP connections of the first adapter board.
	"icsp": {DataOut: bitTX, DataIn: bitRX, Clock: bitRTS, ChipSelect: bitCTS},
	// Second board revision, signals rerouted to ease the layout.
	"icsp-rev2": {Clock: bitTX, ChipSelect: bitRX, DataOut: bitRTS, DataIn: bitCTS},
}

// DefaultProfile is the wiring used when none is configured.
const DefaultProfile = "icsp"

// Profile returns the built-in wiring profile with the given name.
func Profile(name string) (PinMap, bool) {
	m, ok := profiles[name]
	return m, ok
}

// Profiles returns the names of the built-in wiring profiles.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every offset addresses a distinct bit of one byte.
func (m PinMap) Validate() error {
	offsets := []uint8{m.Clock, m.DataOut, m.DataIn, m.ChipSelect}
	var seen byte
	for _, o := range offsets {
		if o > 7 {
			return fmt.Errorf("pin offset %d out of range 0-7", o)
		}
		if seen&(1<<o) != 0 {
			return fmt.Errorf("pin offset %d assigned twice", o)
		}
		seen |= 1 << o
	}
	return nil
}

// OutputMask returns the bits driven by the host.
func (m PinMap) OutputMask() byte {
	return 1<<m.Clock | 1<<m.DataOut | 1<<m.ChipSelect
}

// Encode packs p into a port byte. Bits not assigned to a signal are zero.
func (m PinMap) Encode(p Pins) byte {
	var b byte
	if p.Clock {
		b |= 1 << m.Clock
	}
	if p.DataOut {
		b |= 1 << m.DataOut
	}
	if p.DataIn {
		b |= 1 << m.DataIn
	}
	if p.ChipSelect {
		b |= 1 << m.ChipSelect
	}
	return b
}

// Decode unpacks a port byte.
func (m PinMap) Decode(b byte) Pins {
	return Pins{
		Clock:      b&(1<<m.Clock) != 0,
		DataOut:    b&(1<<m.DataOut) != 0,
		DataIn:     b&(1<<m.DataIn) != 0,
		ChipSelect: b&(1<<m.ChipSelect) != 0,
	}
}
