package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/mklimuk/irsensors"
	gobot "gobot.io/x/gobot/v2/drivers/i2c"
)

var _ irsensors.SMBus = &GobotBus{}

// GobotBus adapts a gobot board adaptor (e.g. nanopi.NewNeoAdaptor()) to the
// bus interfaces. Connections are opened lazily per device address.
type GobotBus struct {
	mx        sync.Mutex
	connector gobot.Connector
	busNr     int
	conns     map[byte]gobot.Connection
}

// NewGobotBus uses the given bus number; a negative number selects the
// adaptor default.
func NewGobotBus(connector gobot.Connector, busNr int) *GobotBus {
	if busNr < 0 {
		busNr = connector.DefaultI2cBus()
	}
	return &GobotBus{
		connector: connector,
		busNr:     busNr,
		conns:     make(map[byte]gobot.Connection),
	}
}

func (b *GobotBus) conn(address byte) (gobot.Connection, error) {
	if c, ok := b.conns[address]; ok {
		return c, nil
	}
	c, err := b.connector.GetI2cConnection(int(address), b.busNr)
	if err != nil {
		return nil, fmt.Errorf("could not open connection to %#x on bus %d: %w", address, b.busNr, err)
	}
	b.conns[address] = c
	return c, nil
}

func (b *GobotBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.Tx(ctx, address, nil, buffer)
}

func (b *GobotBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.Tx(ctx, address, buffer, nil)
}

// Tx supports plain reads, plain writes and single byte register reads,
// which map to SMBus block reads.
func (b *GobotBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	switch {
	case len(w) == 0 && len(r) > 0:
		_, err = c.Read(r)
	case len(r) == 0:
		err = c.WriteBytes(w)
	case len(w) == 1:
		err = c.ReadBlockData(w[0], r)
	default:
		return fmt.Errorf("unsupported transaction: %d byte register address", len(w))
	}
	if err != nil {
		return fmt.Errorf("i2c transaction with %#x failed: %w", address, classify(err))
	}
	return nil
}

func (b *GobotBus) Probe(ctx context.Context, address byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mx.Lock()
	defer b.mx.Unlock()
	c, err := b.conn(address)
	if err != nil {
		return err
	}
	if _, err := c.ReadByte(); err != nil {
		return fmt.Errorf("no answer from %#x: %w", address, classify(err))
	}
	return nil
}

func (b *GobotBus) Release(ctx context.Context) error {
	return nil
}

// Close closes all opened device connections.
func (b *GobotBus) Close() error {
	b.mx.Lock()
	defer b.mx.Unlock()
	var firstErr error
	for addr, c := range b.conns {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("could not close connection to %#x: %w", addr, err)
		}
		delete(b.conns, addr)
	}
	return firstErr
}
