package infrared

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"periph.io/x/conn/v3/physic"
)

// Unit selects the scale temperature readings are converted to.
type Unit int

const (
	Kelvin Unit = iota
	Celsius
	Fahrenheit
)

func (u Unit) Valid() bool {
	return u >= Kelvin && u <= Fahrenheit
}

func (u Unit) String() string {
	switch u {
	case Kelvin:
		return "K"
	case Celsius:
		return "°C"
	case Fahrenheit:
		return "°F"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// ParseUnit accepts k, c, f or the full unit names in any case.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "k", "kelvin":
		return Kelvin, nil
	case "c", "celsius":
		return Celsius, nil
	case "f", "fahrenheit":
		return Fahrenheit, nil
	}
	return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidArgument, s)
}

// MarshalYAML lets readings render their unit symbol.
func (u Unit) MarshalYAML() (interface{}, error) {
	return u.String(), nil
}

// Convert turns a raw reading (0.02 K per LSB) into the unit.
func (u Unit) Convert(raw uint16) float32 {
	kelvin := float32(raw) / 50.0
	switch u {
	case Celsius:
		return kelvin - 273.15
	case Fahrenheit:
		return (kelvin-273.15)*1.8 + 32.0
	default:
		return kelvin
	}
}

// Channel is a temperature source of the sensor, identified by its RAM command.
type Channel byte

const (
	Ambient Channel = Channel(regAmbient)
	Object1 Channel = Channel(regObject1)
	Object2 Channel = Channel(regObject2)
)

func (c Channel) String() string {
	switch c {
	case Ambient:
		return "ambient"
	case Object1:
		return "object1"
	case Object2:
		return "object2"
	default:
		return fmt.Sprintf("Channel(%#x)", byte(c))
	}
}

// ParseChannel accepts the names returned by Channel.String.
func ParseChannel(s string) (Channel, error) {
	for _, c := range []Channel{Ambient, Object1, Object2} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown channel %q", ErrInvalidArgument, s)
}

// errorFlag marks readings the sensor could not produce.
const errorFlag = 0x8000

// Reading holds all channels converted to Unit. Object2 is nil on single
// zone parts, which flag the second channel as unavailable.
type Reading struct {
	Ambient float32  `yaml:"ambient"`
	Object1 float32  `yaml:"object1"`
	Object2 *float32 `yaml:"object2,omitempty"`
	Unit    Unit     `yaml:"unit"`
}

func (s *MLX90614) Unit() Unit {
	return s.unit
}

// SetUnit changes the unit of subsequent readings. An unknown unit is
// rejected and the previous one is kept.
func (s *MLX90614) SetUnit(unit Unit) error {
	if !unit.Valid() {
		return fmt.Errorf("%w: unknown unit %d", ErrInvalidArgument, unit)
	}
	s.unit = unit
	return nil
}

// ReadRaw returns the raw 16-bit value of the channel. Values with the error
// flag set are rejected with ErrDeviceErrorFlag.
func (s *MLX90614) ReadRaw(ctx context.Context, ch Channel) (uint16, error) {
	raw, err := s.readWord(ctx, s.address, byte(ch))
	if err != nil {
		return 0, fmt.Errorf("mlx90614: could not read %s temperature: %w", ch, err)
	}
	if raw&errorFlag != 0 {
		return 0, fmt.Errorf("mlx90614: %s temperature %#04x: %w", ch, raw, ErrDeviceErrorFlag)
	}
	return raw, nil
}

// Read returns the channel temperature in the selected unit.
func (s *MLX90614) Read(ctx context.Context, ch Channel) (float32, error) {
	raw, err := s.ReadRaw(ctx, ch)
	if err != nil {
		return 0, err
	}
	return s.unit.Convert(raw), nil
}

func (s *MLX90614) Ambient(ctx context.Context) (float32, error) {
	return s.Read(ctx, Ambient)
}

func (s *MLX90614) Object1(ctx context.Context) (float32, error) {
	return s.Read(ctx, Object1)
}

// Object2 is only meaningful on dual zone sensors; single zone parts usually
// report the error flag.
func (s *MLX90614) Object2(ctx context.Context) (float32, error) {
	return s.Read(ctx, Object2)
}

// ReadAll reads every channel and stops at the first error other than a
// flagged second object channel.
func (s *MLX90614) ReadAll(ctx context.Context) (Reading, error) {
	res := Reading{Unit: s.unit}
	var err error
	if res.Ambient, err = s.Ambient(ctx); err != nil {
		return res, err
	}
	if res.Object1, err = s.Object1(ctx); err != nil {
		return res, err
	}
	obj2, err := s.Object2(ctx)
	switch {
	case err == nil:
		res.Object2 = &obj2
	case errors.Is(err, ErrDeviceErrorFlag):
	default:
		return res, err
	}
	return res, nil
}

// Sense returns the channel temperature independently of the selected unit.
func (s *MLX90614) Sense(ctx context.Context, ch Channel) (physic.Temperature, error) {
	raw, err := s.ReadRaw(ctx, ch)
	if err != nil {
		return 0, err
	}
	return physic.Temperature(raw) * 20 * physic.MilliKelvin, nil
}
