package infrared

import (
	"context"
	"fmt"
)

// Address returns the address the driver currently believes the sensor has.
func (s *MLX90614) Address() byte {
	return s.address
}

// WireAddress returns the believed address in its on-the-wire form.
func (s *MLX90614) WireAddress() byte {
	return WireAddress(s.address)
}

// SetAddress points the driver at another address. The device must answer
// there; on any error the believed address is left unchanged.
func (s *MLX90614) SetAddress(ctx context.Context, address byte) error {
	if !validAddress(address) {
		return fmt.Errorf("%w: address %#x out of range", ErrInvalidArgument, address)
	}
	if err := s.probe(ctx, address); err != nil {
		return fmt.Errorf("mlx90614: no answer at %#x: %w", address, err)
	}
	s.address = address
	return nil
}

// Discover probes every address from MinAddress to MaxAddress and adopts the
// first one that answers. It costs up to one bus timeout per address.
func (s *MLX90614) Discover(ctx context.Context) error {
	for address := MinAddress; address <= MaxAddress; address++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("mlx90614: discovery interrupted at %#x: %w", address, err)
		}
		if err := s.probe(ctx, address); err != nil {
			continue
		}
		s.log.Debug("device found", "address", fmt.Sprintf("%#x", address))
		s.address = address
		return nil
	}
	return ErrNotFound
}

// Scan returns every address in range that acknowledged a probe. The
// believed address is not modified.
func (s *MLX90614) Scan(ctx context.Context) ([]byte, error) {
	var found []byte
	for address := MinAddress; address <= MaxAddress; address++ {
		if err := ctx.Err(); err != nil {
			return found, fmt.Errorf("mlx90614: scan interrupted at %#x: %w", address, err)
		}
		if s.probe(ctx, address) == nil {
			found = append(found, address)
		}
	}
	return found, nil
}

func (s *MLX90614) eepromTarget() byte {
	if s.config.TargetedRewrite {
		return s.address
	}
	return UniversalAddress
}

// DeviceAddressCell returns the raw content of the EEPROM address cell. The
// low byte holds the SMBus address; the high byte is undocumented.
func (s *MLX90614) DeviceAddressCell(ctx context.Context) (uint16, error) {
	cell, err := s.readWord(ctx, s.eepromTarget(), regEEPROMAddrCell)
	if err != nil {
		return 0, fmt.Errorf("mlx90614: could not read address cell: %w", err)
	}
	return cell, nil
}

// RewriteDeviceAddress stores a new SMBus address in the sensor EEPROM.
//
// The cell is read first so its high byte can be written back unchanged, then
// erased and written, each step followed by the settle time. The believed
// address is updated once the write went through; the sensor only answers at
// the new address after a power cycle (see PowerCycle).
//
// This sequence is known not to work on every sensor revision. Every
// transport failure aborts it and is returned as is.
func (s *MLX90614) RewriteDeviceAddress(ctx context.Context, address byte) error {
	if !validAddress(address) {
		return fmt.Errorf("%w: address %#x out of range", ErrInvalidArgument, address)
	}
	target := s.eepromTarget()
	log := s.log.With("target", fmt.Sprintf("%#x", target), "new_address", fmt.Sprintf("%#x", address))

	cell, err := s.readWord(ctx, target, regEEPROMAddrCell)
	if err != nil {
		return fmt.Errorf("mlx90614: could not read address cell: %w", err)
	}
	high := byte(cell >> 8)
	log.Warn("rewriting device address", "cell", fmt.Sprintf("%#04x", cell))

	if err := s.writeWord(ctx, target, regEEPROMAddrCell, 0x00, 0x00); err != nil {
		return fmt.Errorf("mlx90614: could not erase address cell: %w", err)
	}
	// a cancelled caller must not leave the cell erased
	ctx = context.WithoutCancel(ctx)
	s.sleep(s.config.SettleTime)

	if err := s.writeWord(ctx, target, regEEPROMAddrCell, address, high); err != nil {
		return fmt.Errorf("mlx90614: could not write address cell: %w", err)
	}
	s.sleep(s.config.SettleTime)

	if s.config.VerifyRewrite {
		cell, err := s.readWord(ctx, target, regEEPROMAddrCell)
		if err != nil {
			return fmt.Errorf("mlx90614: could not read back address cell: %w", err)
		}
		if byte(cell) != address {
			return fmt.Errorf("%w: expected %#x, got %#x", ErrVerifyMismatch, address, byte(cell))
		}
	}
	s.address = address
	log.Info("device address written, power cycle required")
	return nil
}
