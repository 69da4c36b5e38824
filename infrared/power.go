package infrared

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// time from power-on reset to valid data
const powerUpTime = 250 * time.Millisecond

var ErrNoPowerSwitch = errors.New("mlx90614: no power switch configured")

// PowerCycle switches the sensor supply off and on again and checks that it
// answers at the believed address. It is needed after RewriteDeviceAddress.
func (s *MLX90614) PowerCycle(ctx context.Context) error {
	sw := s.config.PowerSwitch
	if sw == nil {
		return ErrNoPowerSwitch
	}
	if err := sw.SetPower(ctx, false); err != nil {
		return fmt.Errorf("mlx90614: could not switch power off: %w", err)
	}
	s.sleep(s.config.PowerOffTime)
	if err := sw.SetPower(ctx, true); err != nil {
		return fmt.Errorf("mlx90614: could not switch power on: %w", err)
	}
	s.sleep(powerUpTime)
	if err := s.probe(ctx, s.address); err != nil {
		return fmt.Errorf("mlx90614: no answer at %#x after power cycle: %w", s.address, err)
	}
	s.log.Info("device answered after power cycle", "address", fmt.Sprintf("%#x", s.address))
	return nil
}
