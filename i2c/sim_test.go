package i2c

import (
	"context"
	"testing"

	"github.com/sigurn/crc8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/irsensors"
)

func pec(data ...byte) byte {
	return crc8.Checksum(data, simPEC)
}

func TestSimBus_Probe(t *testing.T) {
	ctx := context.Background()
	bus := NewSimBus(NewSimDevice(0x5A))
	assert.NoError(t, bus.Probe(ctx, 0x5A))
	assert.NoError(t, bus.Probe(ctx, 0x00))
	assert.ErrorIs(t, bus.Probe(ctx, 0x5B), irsensors.ErrBusTimeout)

	bus.Busy = true
	assert.ErrorIs(t, bus.Probe(ctx, 0x5A), irsensors.ErrBusBusy)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, NewSimBus(NewSimDevice(0x5A)).Probe(cctx, 0x5A), context.Canceled)
}

func TestSimBus_ReadWord(t *testing.T) {
	ctx := context.Background()
	dev := NewSimDevice(0x5A)
	dev.SetRaw(0x07, 0x3AA2)
	bus := NewSimBus(dev)

	r := make([]byte, 3)
	require.NoError(t, bus.Tx(ctx, 0x5A, []byte{0x07}, r))
	assert.Equal(t, []byte{0xA2, 0x3A, pec(0xB4, 0x07, 0xB5, 0xA2, 0x3A)}, r)

	r = make([]byte, 2)
	require.NoError(t, bus.Tx(ctx, 0x5A, []byte{0x2E}, r))
	assert.Equal(t, []byte{0x5A, 0xBE}, r)

	assert.Error(t, bus.Tx(ctx, 0x5A, []byte{0x07}, make([]byte, 4)))
	assert.Error(t, bus.Tx(ctx, 0x5A, []byte{0xF0}, make([]byte, 2)))
}

func TestSimBus_WriteEEPROM(t *testing.T) {
	ctx := context.Background()
	dev := NewSimDevice(0x5A)
	bus := NewSimBus(dev)

	err := bus.WriteToAddr(ctx, 0x5A, []byte{0x2E, 0x10, 0xBE, 0x00})
	assert.Error(t, err, "wrong pec must be rejected")
	assert.Equal(t, uint16(0xBE5A), dev.Cell(0x0E))

	assert.Error(t, bus.WriteToAddr(ctx, 0x5A, []byte{0x07, 0x00, 0x00, pec(0xB4, 0x07, 0x00, 0x00)}), "RAM is read only")

	require.NoError(t, bus.WriteToAddr(ctx, 0x5A, []byte{0x2E, 0x10, 0xBE, pec(0xB4, 0x2E, 0x10, 0xBE)}))
	assert.Equal(t, uint16(0xBE10), dev.Cell(0x0E))
	assert.Len(t, bus.Writes(), 3)

	// the address is only reloaded on power up
	assert.NoError(t, bus.Probe(ctx, 0x5A))
	require.NoError(t, bus.SetPower(ctx, false))
	assert.ErrorIs(t, bus.Probe(ctx, 0x5A), irsensors.ErrBusTimeout)
	require.NoError(t, bus.SetPower(ctx, true))
	assert.NoError(t, bus.Probe(ctx, 0x10))
	assert.ErrorIs(t, bus.Probe(ctx, 0x5A), irsensors.ErrBusTimeout)
}

func TestSimBus_UniversalAddress(t *testing.T) {
	ctx := context.Background()
	first, second := NewSimDevice(0x10), NewSimDevice(0x20)
	bus := NewSimBus(first, second)
	require.NoError(t, bus.WriteToAddr(ctx, 0x00, []byte{0x2E, 0x00, 0x00, pec(0x00, 0x2E, 0x00, 0x00)}))
	assert.Equal(t, uint16(0), first.Cell(0x0E))
	assert.Equal(t, uint16(0xBE20), second.Cell(0x0E))
}
