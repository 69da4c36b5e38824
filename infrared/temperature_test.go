package infrared

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/irsensors"
	"github.com/mklimuk/irsensors/i2c"
)

func TestUnit_Convert(t *testing.T) {
	tests := []struct {
		raw      uint16
		unit     Unit
		expected float32
		delta    float64
	}{
		{13807, Kelvin, 276.14, 1e-3},
		{13807, Celsius, 2.99, 1e-3},
		{13807, Fahrenheit, 37.382, 1e-2},
		{13658, Celsius, 0.01, 1e-3},
		{13658, Fahrenheit, 32.018, 1e-2},
		{0, Kelvin, 0, 0},
		{0, Celsius, -273.15, 1e-3},
		{0x7FFF, Kelvin, 655.34, 1e-2},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d %s", test.raw, test.unit), func(t *testing.T) {
			assert.InDelta(t, test.expected, test.unit.Convert(test.raw), test.delta)
		})
	}
}

func TestParseUnit(t *testing.T) {
	for given, expected := range map[string]Unit{"K": Kelvin, "c": Celsius, "Fahrenheit": Fahrenheit, " f ": Fahrenheit} {
		u, err := ParseUnit(given)
		require.NoError(t, err)
		assert.Equal(t, expected, u)
	}
	_, err := ParseUnit("rankine")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseChannel(t *testing.T) {
	ch, err := ParseChannel("Object2")
	require.NoError(t, err)
	assert.Equal(t, Object2, ch)
	_, err = ParseChannel("object3")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	dev := i2c.NewSimDevice(0x5A)
	dev.SetRaw(byte(Ambient), 14860)
	dev.SetRaw(byte(Object1), 13807)
	dev.SetRaw(byte(Object2), 13658)
	s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A))
	require.NoError(t, err)

	ambient, err := s.Ambient(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 24.05, ambient, 1e-3)
	obj1, err := s.Object1(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.99, obj1, 1e-3)
	obj2, err := s.Object2(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, obj2, 1e-3)

	require.NoError(t, s.SetUnit(Kelvin))
	obj1, err = s.Object1(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 276.14, obj1, 1e-3)

	temp, err := s.Sense(ctx, Object1)
	require.NoError(t, err)
	assert.Equal(t, 276140*physic.MilliKelvin, temp)
}

func TestSetUnit_InvalidKeepsUnit(t *testing.T) {
	ctx := context.Background()
	dev := i2c.NewSimDevice(0x5A)
	dev.SetRaw(byte(Object1), 13807)
	s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A), WithUnit(Kelvin))
	require.NoError(t, err)

	err = s.SetUnit(Unit(3))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, Kelvin, s.Unit())
	v, err := s.Object1(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 276.14, v, 1e-3)
}

func TestRead_ErrorFlag(t *testing.T) {
	ctx := context.Background()
	for _, raw := range []uint16{0x8000, 0x8001, 0xFFFF} {
		dev := i2c.NewSimDevice(0x5A)
		for _, ch := range []Channel{Ambient, Object1, Object2} {
			dev.SetRaw(byte(ch), raw)
		}
		s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A))
		require.NoError(t, err)
		for _, unit := range []Unit{Kelvin, Celsius, Fahrenheit} {
			require.NoError(t, s.SetUnit(unit))
			for _, ch := range []Channel{Ambient, Object1, Object2} {
				t.Run(fmt.Sprintf("%#x %s %s", raw, unit, ch), func(t *testing.T) {
					v, err := s.Read(ctx, ch)
					assert.ErrorIs(t, err, ErrDeviceErrorFlag)
					assert.ErrorIs(t, err, ErrFailed)
					assert.Zero(t, v)
				})
			}
		}
	}
}

func TestRead_BusErrors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		given    error
		expected error
	}{
		{"timeout", irsensors.ErrBusTimeout, ErrNotResponding},
		{"busy", irsensors.ErrBusBusy, ErrNotResponding},
		{"protocol", fmt.Errorf("arbitration lost"), ErrFailed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			bus := &MockBus{}
			bus.On("Tx", mock.Anything, byte(0x5A), []byte{0x06}, mock.Anything).Return(nil, test.given)
			s := newMocked(bus)
			_, err := s.Ambient(ctx)
			assert.ErrorIs(t, err, test.expected)
			assert.ErrorIs(t, err, test.given)
		})
	}
}

func TestReadAll(t *testing.T) {
	ctx := context.Background()
	t.Run("dual zone", func(t *testing.T) {
		dev := i2c.NewSimDevice(0x5A)
		dev.SetRaw(byte(Ambient), 14860)
		dev.SetRaw(byte(Object1), 15010)
		dev.SetRaw(byte(Object2), 15000)
		s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A))
		require.NoError(t, err)
		r, err := s.ReadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, Celsius, r.Unit)
		assert.InDelta(t, 24.05, r.Ambient, 1e-3)
		assert.InDelta(t, 27.05, r.Object1, 1e-3)
		require.NotNil(t, r.Object2)
		assert.InDelta(t, 26.85, *r.Object2, 1e-3)
	})
	t.Run("single zone", func(t *testing.T) {
		dev := i2c.NewSimDevice(0x5A)
		dev.SetRaw(byte(Ambient), 14860)
		dev.SetRaw(byte(Object1), 15010)
		dev.SetRaw(byte(Object2), 0x8000)
		s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A))
		require.NoError(t, err)
		r, err := s.ReadAll(ctx)
		require.NoError(t, err)
		assert.Nil(t, r.Object2)

		out, err := yaml.Marshal(r)
		require.NoError(t, err)
		assert.Contains(t, string(out), "unit: °C")
		assert.NotContains(t, string(out), "object2")
	})
	t.Run("ambient flagged", func(t *testing.T) {
		dev := i2c.NewSimDevice(0x5A)
		dev.SetRaw(byte(Ambient), 0x8000)
		s, err := New(ctx, i2c.NewSimBus(dev), WithAddress(0x5A))
		require.NoError(t, err)
		_, err = s.ReadAll(ctx)
		assert.ErrorIs(t, err, ErrDeviceErrorFlag)
	})
}
