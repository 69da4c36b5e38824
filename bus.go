package irsensors

import (
	"context"
	"fmt"
)

var ErrBusBusy = fmt.Errorf("I2C engine is busy (command not completed)")

// ErrBusTimeout is returned by transports when the addressed device did not
// acknowledge or answer within the transaction deadline.
var ErrBusTimeout = fmt.Errorf("I2C device did not answer in time")

type BusReader interface {
	Read(ctx context.Context, buffer []byte) error
}

type BusWriter interface {
	Write(ctx context.Context, buffer []byte) error
}

type AddressableReader interface {
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

type AddressableWriter interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	Release(ctx context.Context) error
}

// Prober checks whether a device acknowledges its 7-bit address.
// A nil error means the device is ready.
type Prober interface {
	Probe(ctx context.Context, address byte) error
}

// Transactor performs a combined write/read transaction with a repeated
// start between the two phases, as used by SMBus register reads.
type Transactor interface {
	Tx(ctx context.Context, address byte, w, r []byte) error
}

type I2CBus interface {
	AddressableReader
	AddressableWriter
}

// SMBus is the capability set register based devices need.
type SMBus interface {
	I2CBus
	Prober
	Transactor
}

type I2CDevice interface {
	BusReader
	BusWriter
}

// PowerSwitch controls the supply of a device, e.g. through a GPIO pin
// driving a load switch.
type PowerSwitch interface {
	SetPower(ctx context.Context, on bool) error
}
