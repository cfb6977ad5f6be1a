package eeprog

import (
	"errors"
	"testing"
)

func newTestBus(t *testing.T, port PinPort, m PinMap) *Bus {
	t.Helper()
	bus, err := NewBus(port, BusConfig{Pins: m, Logger: &nopLogger{}})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	return bus
}

func TestNewBusIdleState(t *testing.T) {
	port := &faultyPort{}
	m, _ := Profile("icsp")
	newTestBus(t, port, m)

	if len(port.writes) != 1 {
		t.Fatalf("Expected 1 pin write, got %d", len(port.writes))
	}
	got := m.Decode(port.writes[0])
	if got != (Pins{ChipSelect: true}) {
		t.Errorf("Expected deselected idle state, got %s", got)
	}
}

func TestNewBusDefaultsProfile(t *testing.T) {
	port := &faultyPort{}
	newTestBus(t, port, PinMap{})

	// icsp: chip select on bit 3
	if port.writes[0] != 0x08 {
		t.Errorf("Expected idle byte 0x08, got 0x%02X", port.writes[0])
	}
}

func TestNewBusRejectsBadPinMap(t *testing.T) {
	_, err := NewBus(&faultyPort{}, BusConfig{Pins: PinMap{Clock: 1, DataOut: 1, DataIn: 2, ChipSelect: 3}})
	if err == nil {
		t.Fatal("Expected error for duplicate pin offsets")
	}
	if _, err := NewBus(nil, BusConfig{}); err == nil {
		t.Fatal("Expected error for nil port")
	}
}

func TestTransferLoopback(t *testing.T) {
	for _, name := range Profiles() {
		t.Run(name, func(t *testing.T) {
			m, _ := Profile(name)
			reg := &shiftRegister{pins: m}
			bus := newTestBus(t, reg, m)

			prev := byte(0)
			for v := 0; v < 256; v++ {
				got, err := bus.Transfer(byte(v))
				if err != nil {
					t.Fatalf("Transfer(0x%02X) failed: %v", v, err)
				}
				if got != prev {
					t.Fatalf("Transfer(0x%02X) = 0x%02X, want previous byte 0x%02X", v, got, prev)
				}
				prev = byte(v)
			}
		})
	}
}

func TestTransferBitOrder(t *testing.T) {
	m, _ := Profile("icsp")
	port := &faultyPort{}
	bus := newTestBus(t, port, m)
	port.writes = nil

	if _, err := bus.Transfer(0xA5); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if len(port.writes) != 24 {
		t.Fatalf("Expected 3 pin writes per bit, got %d writes", len(port.writes))
	}

	var sent byte
	for i := 0; i < 8; i++ {
		setup := m.Decode(port.writes[3*i])
		rise := m.Decode(port.writes[3*i+1])
		fall := m.Decode(port.writes[3*i+2])
		if setup.Clock || !rise.Clock || fall.Clock {
			t.Fatalf("bit %d: expected clock low/high/low, got %v/%v/%v", i, setup.Clock, rise.Clock, fall.Clock)
		}
		if setup.DataOut != rise.DataOut {
			t.Fatalf("bit %d: MOSI changed on the rising edge", i)
		}
		sent <<= 1
		if rise.DataOut {
			sent |= 1
		}
	}
	if sent != 0xA5 {
		t.Errorf("Expected MSB first 0xA5 on MOSI, got 0x%02X", sent)
	}
}

func TestTransferClockHighIsProtocolError(t *testing.T) {
	m, _ := Profile("icsp")
	port := &faultyPort{stuck: m.Encode(Pins{Clock: true})}
	bus := newTestBus(t, port, m)

	_, err := bus.Transfer(0x00)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Expected ErrProtocol, got %v", err)
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ProtocolError, got %T", err)
	}
	if !IsDeviceError(err) {
		t.Error("Expected protocol errors to count as device errors")
	}
}

func TestTransportErrorInvalidatesCache(t *testing.T) {
	m, _ := Profile("icsp")
	port := &faultyPort{}
	bus := newTestBus(t, port, m)

	// cached state: Select needs no read
	if err := bus.Select(); err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if port.reads != 0 {
		t.Fatalf("Expected no pin reads with a cached state, got %d", port.reads)
	}

	port.failWrite = 1
	err := bus.Deselect()
	if !errors.Is(err, ErrTransport) || !errors.Is(err, errPort) {
		t.Fatalf("Expected transport error wrapping the port error, got %v", err)
	}

	// stale cache: the next write is preceded by a read
	if err := bus.Deselect(); err != nil {
		t.Fatalf("Deselect failed: %v", err)
	}
	if port.reads != 1 {
		t.Errorf("Expected 1 pin read after a failed write, got %d", port.reads)
	}
}

func TestTransferReadFailure(t *testing.T) {
	m, _ := Profile("icsp")
	port := &faultyPort{failRead: true}
	bus := newTestBus(t, port, m)

	_, err := bus.Transfer(0x42)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TransportError, got %v", err)
	}
	if te.Op != "read pins" {
		t.Errorf("Expected op %q, got %q", "read pins", te.Op)
	}
}

func TestTransferDebugLog(t *testing.T) {
	m, _ := Profile("icsp")
	log := &captureLogger{}
	bus, err := NewBus(&shiftRegister{pins: m}, BusConfig{Pins: m, Debug: true, Logger: log})
	if err != nil {
		t.Fatalf("NewBus failed: %v", err)
	}
	bus.Transfer(0xA5)
	bus.Transfer(0x00)

	if !log.contains("MOSI → 0xA5 0b10100101") {
		t.Errorf("Expected MOSI debug line, got %q", log.msgs)
	}
	if !log.contains("MISO ← 0xA5 0b10100101") {
		t.Errorf("Expected MISO debug line, got %q", log.msgs)
	}
}
