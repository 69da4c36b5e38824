package infrared

import (
	"context"
	"errors"
	"testing"
)

func TestMockThermometer_StaticValues(t *testing.T) {
	m := NewMockThermometer(Celsius, func(ctx context.Context, ch Channel) (float32, error) {
		switch ch {
		case Ambient:
			return 21.5, nil
		case Object1:
			return 36.6, nil
		default:
			return 0, ErrDeviceErrorFlag
		}
	})
	ctx := context.Background()

	v, err := m.Read(ctx, Object1)
	if err != nil {
		t.Fatalf("Read: unexpected error: %v", err)
	}
	if v != 36.6 {
		t.Errorf("expected 36.6, got %f", v)
	}

	r, err := m.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: unexpected error: %v", err)
	}
	if r.Ambient != 21.5 || r.Object1 != 36.6 || r.Object2 != nil || r.Unit != Celsius {
		t.Errorf("unexpected reading: %+v", r)
	}
}

func TestMockThermometer_Error(t *testing.T) {
	m := NewMockThermometer(Kelvin, func(ctx context.Context, ch Channel) (float32, error) {
		return 0, ErrNotResponding
	})
	_, err := m.ReadAll(context.Background())
	if !errors.Is(err, ErrNotResponding) {
		t.Errorf("expected ErrNotResponding, got %v", err)
	}
}
