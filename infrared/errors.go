package infrared

import (
	"context"
	"errors"
	"fmt"

	"github.com/mklimuk/irsensors"
)

var (
	// ErrInvalidArgument is returned for out of range addresses or unknown units.
	ErrInvalidArgument = errors.New("mlx90614: invalid argument")
	// ErrNotResponding is returned when no device answered within the bus timeout.
	ErrNotResponding = errors.New("mlx90614: device not responding")
	// ErrFailed is returned on protocol errors and device reported faults.
	ErrFailed = errors.New("mlx90614: operation failed")
	// ErrStale is reserved for sequencing issues and not returned by any operation yet.
	ErrStale = errors.New("mlx90614: stale state")

	ErrNotFound         = fmt.Errorf("%w: no device found in address range", ErrNotResponding)
	ErrDeviceErrorFlag  = fmt.Errorf("%w: device error flag set in reading", ErrFailed)
	ErrVerifyMismatch   = fmt.Errorf("%w: address cell read-back mismatch", ErrFailed)
	ErrChecksumMismatch = fmt.Errorf("%w: pec mismatch", ErrFailed)
)

// mapBusError translates a transport outcome into the driver error kinds.
// The transport error is kept in the chain.
func mapBusError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, irsensors.ErrBusBusy),
		errors.Is(err, irsensors.ErrBusTimeout),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrNotResponding, err)
	default:
		return fmt.Errorf("%w: %w", ErrFailed, err)
	}
}
