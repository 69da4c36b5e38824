package gpio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mklimuk/irsensors"
)

const DefaultMCP23017Address = 0x21

// Port selects one of the two 8-bit I/O ports.
type Port int

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortB {
		return "B"
	}
	return "A"
}

// Register addresses with IOCON.BANK = 0 (power-on default). Port B
// registers follow their port A counterpart.
const (
	regIODIRA = 0x00
	regGPPUA  = 0x0C
	regGPIOA  = 0x12
	regOLATA  = 0x14
)

func register(base byte, p Port) byte {
	return base + byte(p)
}

/*
	Steps to drive an output:

1. Clear the pin bit in IODIR (0 = output)
2. Write the port value to OLAT
*/
type MCP23017 struct {
	mx         sync.Mutex
	transport  irsensors.I2CBus
	address    byte
	retryLimit int
}

func NewMCP23017(bus irsensors.I2CBus, address byte) *MCP23017 {
	return &MCP23017{retryLimit: 2, transport: bus, address: address}
}

// writeRegister retries on a busy bus, releasing it in between.
func (m *MCP23017) writeRegister(ctx context.Context, reg, value byte) error {
	var err error
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{reg, value})
		if err == nil {
			return nil
		}
		if !errors.Is(err, irsensors.ErrBusBusy) {
			return fmt.Errorf("could not write register %#x: %w", reg, err)
		}
		// try to release the bus
		_ = m.transport.Release(ctx)
	}
	return fmt.Errorf("could not write register %#x (retry limit reached): %w", reg, err)
}

func (m *MCP23017) readRegister(ctx context.Context, reg byte) (byte, error) {
	var err error
	buf := make([]byte, 1)
	for i := m.retryLimit; i > 0; i-- {
		err = m.transport.WriteToAddr(ctx, m.address, []byte{reg})
		if err == nil {
			err = m.transport.ReadFromAddr(ctx, m.address, buf)
		}
		if err == nil {
			return buf[0], nil
		}
		if !errors.Is(err, irsensors.ErrBusBusy) {
			return 0, fmt.Errorf("could not read register %#x: %w", reg, err)
		}
		_ = m.transport.Release(ctx)
	}
	return 0, fmt.Errorf("could not read register %#x (retry limit reached): %w", reg, err)
}

// PullUp enables pull up resistors on the port.
func (m *MCP23017) PullUp(ctx context.Context, p Port, settings byte) error {
	m.mx.Lock()
	defer m.mx.Unlock()
	if err := m.writeRegister(ctx, register(regGPPUA, p), settings); err != nil {
		return fmt.Errorf("could not set pull-up on port %s: %w", p, err)
	}
	return nil
}

// Read returns the logic levels of the port pins.
func (m *MCP23017) Read(ctx context.Context, p Port) (byte, error) {
	m.mx.Lock()
	defer m.mx.Unlock()
	v, err := m.readRegister(ctx, register(regGPIOA, p))
	if err != nil {
		return 0, fmt.Errorf("could not read port %s: %w", p, err)
	}
	return v, nil
}

// SetPin drives a single output pin leaving the other latches untouched.
func (m *MCP23017) SetPin(ctx context.Context, p Port, pin int, high bool) error {
	if pin < 0 || pin > 7 {
		return fmt.Errorf("invalid pin %d", pin)
	}
	m.mx.Lock()
	defer m.mx.Unlock()
	dir, err := m.readRegister(ctx, register(regIODIRA, p))
	if err != nil {
		return fmt.Errorf("could not read direction of port %s: %w", p, err)
	}
	latch, err := m.readRegister(ctx, register(regOLATA, p))
	if err != nil {
		return fmt.Errorf("could not read latch of port %s: %w", p, err)
	}
	mask := byte(1) << pin
	if high {
		latch |= mask
	} else {
		latch &^= mask
	}
	if err := m.writeRegister(ctx, register(regOLATA, p), latch); err != nil {
		return fmt.Errorf("could not set pin %s%d: %w", p, pin, err)
	}
	if dir&mask != 0 {
		if err := m.writeRegister(ctx, register(regIODIRA, p), dir&^mask); err != nil {
			return fmt.Errorf("could not make pin %s%d an output: %w", p, pin, err)
		}
	}
	return nil
}

// PowerPin drives a sensor load switch from an expander pin.
type PowerPin struct {
	expander  *MCP23017
	port      Port
	pin       int
	activeLow bool
}

var _ irsensors.PowerSwitch = &PowerPin{}

func (m *MCP23017) PowerPin(p Port, pin int, activeLow bool) *PowerPin {
	return &PowerPin{expander: m, port: p, pin: pin, activeLow: activeLow}
}

func (p *PowerPin) SetPower(ctx context.Context, on bool) error {
	return p.expander.SetPin(ctx, p.port, p.pin, on != p.activeLow)
}
