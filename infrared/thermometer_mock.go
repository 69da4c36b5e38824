package infrared

import (
	"context"
	"errors"
)

// Thermometer is the read side of MLX90614, for code that only consumes
// temperatures.
type Thermometer interface {
	Read(ctx context.Context, ch Channel) (float32, error)
	ReadAll(ctx context.Context) (Reading, error)
}

var _ Thermometer = &MLX90614{}
var _ Thermometer = &MockThermometer{}

// ThermometerBehaviorFunc defines the function signature for channel reads.
type ThermometerBehaviorFunc func(ctx context.Context, ch Channel) (float32, error)

// MockThermometer is a mock implementation of Thermometer that uses a behavior
// function to produce results without requiring any hardware.
type MockThermometer struct {
	unit     Unit
	behavior ThermometerBehaviorFunc
}

// NewMockThermometer creates a new mock thermometer reporting in unit.
//
// Example usage:
//
//	t := NewMockThermometer(Celsius, func(ctx context.Context, ch Channel) (float32, error) { return 21.5, nil })
func NewMockThermometer(unit Unit, behavior ThermometerBehaviorFunc) *MockThermometer {
	return &MockThermometer{unit: unit, behavior: behavior}
}

func (m *MockThermometer) Read(ctx context.Context, ch Channel) (float32, error) {
	return m.behavior(ctx, ch)
}

// ReadAll follows MLX90614.ReadAll: a flagged object2 channel is left out.
func (m *MockThermometer) ReadAll(ctx context.Context) (Reading, error) {
	res := Reading{Unit: m.unit}
	var err error
	if res.Ambient, err = m.behavior(ctx, Ambient); err != nil {
		return res, err
	}
	if res.Object1, err = m.behavior(ctx, Object1); err != nil {
		return res, err
	}
	obj2, err := m.behavior(ctx, Object2)
	switch {
	case err == nil:
		res.Object2 = &obj2
	case errors.Is(err, ErrDeviceErrorFlag):
	default:
		return res, err
	}
	return res, nil
}
