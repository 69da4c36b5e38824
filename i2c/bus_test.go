package i2c

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/irsensors"
	"github.com/mklimuk/irsensors/infrared"
)

// periphError and gobotError render an errno the way the host libraries do.
func periphError(errno syscall.Errno) error {
	return fmt.Errorf("sysfs-i2c: %v", errno)
}

func gobotError(errno syscall.Errno) error {
	return fmt.Errorf("%s failed with syscall.Errno %v", "Read", errno)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		given    error
		expected error
	}{
		{"wrapped busy", fmt.Errorf("ioctl: %w", syscall.EBUSY), irsensors.ErrBusBusy},
		{"wrapped nack", fmt.Errorf("ioctl: %w", syscall.ENXIO), irsensors.ErrBusTimeout},
		{"periph busy", periphError(syscall.EBUSY), irsensors.ErrBusBusy},
		{"periph again", periphError(syscall.EAGAIN), irsensors.ErrBusBusy},
		{"periph timeout", periphError(syscall.ETIMEDOUT), irsensors.ErrBusTimeout},
		{"periph nack", periphError(syscall.ENXIO), irsensors.ErrBusTimeout},
		{"periph io", periphError(syscall.EIO), irsensors.ErrBusTimeout},
		{"periph remote io", errors.New("sysfs-i2c: remote I/O error"), irsensors.ErrBusTimeout},
		{"gobot busy", gobotError(syscall.EBUSY), irsensors.ErrBusBusy},
		{"gobot timeout", gobotError(syscall.ETIMEDOUT), irsensors.ErrBusTimeout},
		{"gobot nack", gobotError(syscall.ENXIO), irsensors.ErrBusTimeout},
		{"gobot remote io", errors.New("Read failed with syscall.Errno remote I/O error"), irsensors.ErrBusTimeout},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := classify(test.given)
			assert.ErrorIs(t, err, test.expected)
			assert.ErrorIs(t, err, test.given)
		})
	}
	other := errors.New("sysfs-i2c: invalid argument")
	assert.Equal(t, other, classify(other))
}

type nackBus struct {
	err error
}

func (b *nackBus) String() string                  { return "nack" }
func (b *nackBus) Tx(uint16, []byte, []byte) error { return b.err }
func (b *nackBus) SetSpeed(physic.Frequency) error { return nil }
func (b *nackBus) Close() error                    { return nil }

func TestGenericBus_Nack(t *testing.T) {
	ctx := context.Background()
	bus := &GenericBus{bus: &nackBus{err: periphError(syscall.ENXIO)}}

	err := bus.Probe(ctx, 0x33)
	assert.ErrorIs(t, err, irsensors.ErrBusTimeout)

	_, err = infrared.New(ctx, bus, infrared.WithAddress(0x33))
	require.Error(t, err)
	assert.ErrorIs(t, err, infrared.ErrNotResponding)
}

func TestGenericBus_Busy(t *testing.T) {
	ctx := context.Background()
	bus := &GenericBus{bus: &nackBus{err: periphError(syscall.EBUSY)}}
	err := bus.Tx(ctx, 0x5A, []byte{0x07}, make([]byte, 2))
	assert.ErrorIs(t, err, irsensors.ErrBusBusy)
}
