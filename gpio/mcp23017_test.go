package gpio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/irsensors"
)

// MockI2CBus is a mock implementation of irsensors.I2CBus using testify/mock
type MockI2CBus struct {
	mock.Mock
}

func (m *MockI2CBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockI2CBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockI2CBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestMCP23017_SetPin(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x00}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0xFF}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x14}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0x01}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x14, 0x09}).Return(nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x00, 0xF7}).Return(nil).Once()

	exp := NewMCP23017(bus, DefaultMCP23017Address)
	require.NoError(t, exp.SetPin(ctx, PortA, 3, true))
	bus.AssertExpectations(t)
}

func TestMCP23017_SetPinAlreadyOutput(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x20), []byte{0x01}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x20), mock.Anything).Return([]byte{0x00}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x20), []byte{0x15}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x20), mock.Anything).Return([]byte{0xFF}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x20), []byte{0x15, 0x7F}).Return(nil).Once()

	pin := NewMCP23017(bus, 0x20).PowerPin(PortB, 7, false)
	require.NoError(t, pin.SetPower(ctx, false))
	bus.AssertExpectations(t)
}

func TestMCP23017_PowerPinActiveLow(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x00}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0x00}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x14}).Return(nil).Once()
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return([]byte{0x01}, nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x14, 0x00}).Return(nil).Once()

	pin := NewMCP23017(bus, 0x21).PowerPin(PortA, 0, true)
	require.NoError(t, pin.SetPower(ctx, true))
	bus.AssertExpectations(t)
}

func TestMCP23017_InvalidPin(t *testing.T) {
	bus := &MockI2CBus{}
	err := NewMCP23017(bus, 0x21).SetPin(context.Background(), PortA, 8, true)
	assert.Error(t, err)
	assert.Empty(t, bus.Calls)
}

func TestMCP23017_RetryOnBusy(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x0D, 0xFF}).Return(irsensors.ErrBusBusy).Once()
	bus.On("Release", ctx).Return(nil).Once()
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x0D, 0xFF}).Return(nil).Once()

	exp := NewMCP23017(bus, 0x21)
	require.NoError(t, exp.PullUp(ctx, PortB, 0xFF))
	bus.AssertExpectations(t)
}

func TestMCP23017_RetryLimit(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x13}).Return(irsensors.ErrBusBusy)
	bus.On("Release", ctx).Return(nil)

	_, err := NewMCP23017(bus, 0x21).Read(ctx, PortB)
	assert.ErrorIs(t, err, irsensors.ErrBusBusy)
	bus.AssertNumberOfCalls(t, "WriteToAddr", 2)
	bus.AssertNumberOfCalls(t, "Release", 2)
}

func TestMCP23017_ReadError(t *testing.T) {
	ctx := context.Background()
	bus := &MockI2CBus{}
	bus.On("WriteToAddr", ctx, byte(0x21), []byte{0x12}).Return(nil)
	bus.On("ReadFromAddr", ctx, byte(0x21), mock.Anything).Return(nil, errors.New("nack"))

	_, err := NewMCP23017(bus, 0x21).Read(ctx, PortA)
	assert.Error(t, err)
	bus.AssertNotCalled(t, "Release", ctx)
}
