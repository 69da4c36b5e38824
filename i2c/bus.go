package i2c

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"syscall"

	"github.com/mklimuk/irsensors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

var _ irsensors.SMBus = &GenericBus{}

// GenericBus is a host I2C bus (e.g. /dev/i2c-1) driven through periph.io.
type GenericBus struct {
	bus i2c.BusCloser
}

func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return &GenericBus{
		bus: bus,
	}, nil
}

func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.Tx(ctx, address, nil, buffer)
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.Tx(ctx, address, buffer, nil)
}

// Tx writes w and reads r in one transaction (repeated start in between).
func (b *GenericBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.bus.Tx(uint16(address), w, r)
	if err != nil {
		return fmt.Errorf("i2c transaction with %#x failed: %w", address, classify(err))
	}
	return nil
}

// Probe reads a single byte; only an acknowledging device completes it.
func (b *GenericBus) Probe(ctx context.Context, address byte) error {
	return b.Tx(ctx, address, nil, make([]byte, 1))
}

func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	return b.bus.SetSpeed(f)
}

func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}

// i2c-dev errno texts. periph and gobot format the errno with %v so only
// the message survives in the returned error.
var (
	busyErrnos    = []string{"device or resource busy", "resource temporarily unavailable"}
	timeoutErrnos = []string{"connection timed out", "no such device or address", "remote I/O error", "input/output error"}
)

// classify attaches the bus sentinels to errno values reported by i2c-dev.
func classify(err error) error {
	switch {
	case errors.Is(err, syscall.EBUSY), errors.Is(err, syscall.EAGAIN), matches(err, busyErrnos):
		return fmt.Errorf("%w: %w", irsensors.ErrBusBusy, err)
	case errors.Is(err, syscall.ETIMEDOUT), errors.Is(err, syscall.ENXIO), errors.Is(err, syscall.EIO), matches(err, timeoutErrnos):
		return fmt.Errorf("%w: %w", irsensors.ErrBusTimeout, err)
	default:
		return err
	}
}

func matches(err error, texts []string) bool {
	msg := err.Error()
	for _, t := range texts {
		if strings.Contains(msg, t) {
			return true
		}
	}
	return false
}
