package infrared

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockBus is a mock implementation of irsensors.SMBus using testify/mock
type MockBus struct {
	mock.Mock
}

func (m *MockBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	return args.Error(0)
}

func (m *MockBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	args := m.Called(ctx, address, buffer)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(buffer) {
		copy(buffer, data)
	}
	return args.Error(1)
}

func (m *MockBus) Tx(ctx context.Context, address byte, w, r []byte) error {
	args := m.Called(ctx, address, w, r)
	if data, ok := args.Get(0).([]byte); ok && len(data) <= len(r) {
		copy(r, data)
	}
	return args.Error(1)
}

func (m *MockBus) Probe(ctx context.Context, address byte) error {
	args := m.Called(ctx, address)
	return args.Error(0)
}

func (m *MockBus) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// word returns a little endian register response.
func word(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// newMocked returns a driver believing DefaultAddress without touching the bus.
func newMocked(bus *MockBus, opts ...Opt) *MLX90614 {
	s, err := New(context.Background(), bus, opts...)
	if err != nil {
		panic(err)
	}
	s.sleep = func(time.Duration) {}
	return s
}
