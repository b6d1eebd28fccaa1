package frame

import (
	"fmt"

	"github.com/pkg/errors"
)

// HardwareError reports that a single frame could not be acquired.
type HardwareError struct {
	Op  string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware error during %s: %v", e.Op, e.Err)
}

func (e *HardwareError) Unwrap() error { return e.Err }

// InitializationError reports that a device could not be set up.
type InitializationError struct {
	Device string
	Err    error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("can not initialize %s: %v", e.Device, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// NewHardwareError wraps err as a *HardwareError.
func NewHardwareError(op string, err error) error {
	return &HardwareError{Op: op, Err: err}
}

// NewInitializationError wraps err as an *InitializationError.
func NewInitializationError(device string, err error) error {
	return &InitializationError{Device: device, Err: err}
}

// IsHardware reports whether err carries a *HardwareError.
func IsHardware(err error) bool {
	var he *HardwareError
	return errors.As(err, &he)
}

// IsInitialization reports whether err carries an *InitializationError.
func IsInitialization(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}
