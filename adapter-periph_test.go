package eeprog

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestPins() ([8]gpio.PinIO, [8]*gpiotest.Pin) {
	var pins [8]gpio.PinIO
	var mocks [8]*gpiotest.Pin
	for i := 0; i < 4; i++ {
		mocks[i] = &gpiotest.Pin{N: "D" + string(rune('0'+i)), Num: i}
		pins[i] = mocks[i]
	}
	return pins, mocks
}

func TestGPIOPortWritesOutputsOnly(t *testing.T) {
	m, _ := Profile("icsp")
	pins, mocks := newTestPins()
	port, err := newGPIOPort(pins, m)
	if err != nil {
		t.Fatalf("newGPIOPort failed: %v", err)
	}

	if err := port.WritePins(0x0F); err != nil {
		t.Fatalf("WritePins failed: %v", err)
	}
	for i, want := range []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.High} {
		if mocks[i].L != want {
			t.Errorf("D%d = %v, want %v", i, mocks[i].L, want)
		}
	}
}

func TestGPIOPortReadPins(t *testing.T) {
	m, _ := Profile("icsp")
	pins, mocks := newTestPins()
	port, err := newGPIOPort(pins, m)
	if err != nil {
		t.Fatalf("newGPIOPort failed: %v", err)
	}

	mocks[1].L = gpio.High
	mocks[3].L = gpio.High
	b, err := port.ReadPins()
	if err != nil {
		t.Fatalf("ReadPins failed: %v", err)
	}
	if b != 0x0A {
		t.Errorf("ReadPins() = 0x%02X, want 0x0A", b)
	}
}

func TestGPIOPortDrivesBus(t *testing.T) {
	m, _ := Profile("icsp")
	pins, mocks := newTestPins()
	port, err := newGPIOPort(pins, m)
	if err != nil {
		t.Fatalf("newGPIOPort failed: %v", err)
	}
	bus := newTestBus(t, port, m)

	if err := bus.Select(); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if mocks[m.ChipSelect].L != gpio.Low {
		t.Error("Expected chip select low after Select")
	}
	if _, err := bus.Transfer(0xFF); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if mocks[m.Clock].L != gpio.Low || mocks[m.DataOut].L != gpio.High {
		t.Errorf("Expected clock low and MOSI high after 0xFF, got %v %v", mocks[m.Clock].L, mocks[m.DataOut].L)
	}
}

func TestGPIOPortMissingPin(t *testing.T) {
	m := PinMap{Clock: 4, DataOut: 5, DataIn: 6, ChipSelect: 7}
	pins, _ := newTestPins()
	if _, err := newGPIOPort(pins, m); err == nil {
		t.Error("Expected an error for unconnected offsets")
	}
}
