package eeprog

import (
	"errors"
	"fmt"
)

var (
	ErrPkg          = errors.New("eeprog")
	ErrTransport    = errors.New("transport failure")
	ErrProtocol     = errors.New("bus protocol violation")
	ErrTimeout      = errors.New("timeout waiting for device")
	ErrStreamClosed = errors.New("serial stream closed before marker")
	ErrUnsupported  = errors.New("operation not supported by target")
)

// TransportError reports a failed pin or stream operation.
// The device state is unknown afterwards.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError reports a violated bus invariant, which means the bus
// is out of sync with the device.
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }

// MismatchError reports that verification found differing bytes.
type MismatchError struct {
	Mismatches int
	Bytes      int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify failed: %d of %d bytes differ", e.Mismatches, e.Bytes)
}

// InputError reports an unusable argument or file.
type InputError struct {
	Arg string
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Arg, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err left the device in an unknown state.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocol) ||
		errors.Is(err, ErrStreamClosed) || errors.Is(err, ErrTimeout)
}
