// Package infrared provides a driver for the Melexis MLX90614 infrared
// thermometer on an SMBus compatible bus.
//
// Typical usage:
//
//	s, err := infrared.New(ctx, bus, infrared.WithUnit(infrared.Celsius))
//	t, err := s.Object1(ctx)
//
// The driver is not safe for concurrent use. A single owner is expected to
// serialize all calls on a bus.
package infrared

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/irsensors"
)

const (
	// DefaultAddress is the factory programmed SMBus address.
	DefaultAddress byte = 0x5A
	// UniversalAddress is answered by every MLX90614 on the bus. It is never
	// probed during discovery since any device would acknowledge it.
	UniversalAddress byte = 0x00
	MinAddress       byte = 0x01
	MaxAddress       byte = 0x7F

	DefaultBusTimeout  = 100 * time.Millisecond
	DefaultSettleTime  = 1000 * time.Millisecond
	DefaultProbeTrials = 1
	DefaultPowerOff    = 500 * time.Millisecond
)

// RAM and EEPROM commands
const (
	regAmbient        byte = 0x06
	regObject1        byte = 0x07
	regObject2        byte = 0x08
	regEEPROMAddrCell byte = 0x2E
)

type Opts struct {
	Address         byte
	Unit            Unit
	BusTimeout      time.Duration
	SettleTime      time.Duration
	ProbeTrials     int
	ReadPEC         bool
	VerifyRewrite   bool
	TargetedRewrite bool
	PowerSwitch     irsensors.PowerSwitch
	PowerOffTime    time.Duration
	Logger          *slog.Logger
}

type Opt func(*Opts)

// WithAddress sets the address the driver talks to. Zero keeps DefaultAddress.
func WithAddress(address byte) Opt {
	return func(o *Opts) {
		o.Address = address
	}
}

func WithUnit(unit Unit) Opt {
	return func(o *Opts) {
		o.Unit = unit
	}
}

func WithBusTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.BusTimeout = timeout
	}
}

// WithSettleTime sets the wait after each EEPROM erase or write.
func WithSettleTime(settle time.Duration) Opt {
	return func(o *Opts) {
		o.SettleTime = settle
	}
}

func WithProbeTrials(trials int) Opt {
	return func(o *Opts) {
		o.ProbeTrials = trials
	}
}

// WithReadPEC makes register reads fetch and check the PEC byte sent by the device.
func WithReadPEC() Opt {
	return func(o *Opts) {
		o.ReadPEC = true
	}
}

// WithRewriteVerification reads the address cell back after a rewrite.
func WithRewriteVerification() Opt {
	return func(o *Opts) {
		o.VerifyRewrite = true
	}
}

// WithTargetedRewrite sends EEPROM transactions to the believed address
// instead of the universal address. Use it when more than one MLX90614
// shares the bus.
func WithTargetedRewrite() Opt {
	return func(o *Opts) {
		o.TargetedRewrite = true
	}
}

// WithPowerSwitch enables PowerCycle using the given switch. The supply stays
// off for offTime; zero selects DefaultPowerOff.
func WithPowerSwitch(sw irsensors.PowerSwitch, offTime time.Duration) Opt {
	return func(o *Opts) {
		o.PowerSwitch = sw
		o.PowerOffTime = offTime
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Opts) {
		o.Logger = logger
	}
}

// MLX90614 represents Melexis MLX90614 infrared thermometer.
// See: https://www.melexis.com/en/documents/documentation/datasheets/datasheet-mlx90614
type MLX90614 struct {
	transport irsensors.SMBus
	config    Opts
	log       *slog.Logger

	address byte
	unit    Unit

	sleep func(time.Duration)
}

// New initializes the driver. A non-zero address is probed and must answer,
// otherwise ErrNotResponding is returned. An address above MaxAddress or an
// unknown unit yields ErrInvalidArgument.
func New(ctx context.Context, trans irsensors.SMBus, opts ...Opt) (*MLX90614, error) {
	config := Opts{
		Unit:        Celsius,
		BusTimeout:  DefaultBusTimeout,
		SettleTime:  DefaultSettleTime,
		ProbeTrials: DefaultProbeTrials,
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Address > MaxAddress {
		return nil, fmt.Errorf("%w: address %#x out of range", ErrInvalidArgument, config.Address)
	}
	if !config.Unit.Valid() {
		return nil, fmt.Errorf("%w: unknown unit %d", ErrInvalidArgument, config.Unit)
	}
	if config.ProbeTrials < 1 {
		config.ProbeTrials = 1
	}
	if config.PowerOffTime <= 0 {
		config.PowerOffTime = DefaultPowerOff
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &MLX90614{
		transport: trans,
		config:    config,
		log:       config.Logger.With("device", "mlx90614"),
		address:   DefaultAddress,
		unit:      config.Unit,
		sleep:     time.Sleep,
	}
	if config.Address != 0 {
		if err := s.probe(ctx, config.Address); err != nil {
			return nil, fmt.Errorf("mlx90614: no answer at %#x: %w", config.Address, err)
		}
		s.address = config.Address
	}
	return s, nil
}

// WireAddress returns the 8-bit on-the-wire form of a 7-bit address with the
// direction bit cleared.
func WireAddress(address byte) byte {
	return address << 1
}

func validAddress(address byte) bool {
	return address >= MinAddress && address <= MaxAddress
}

// probe tries the address up to ProbeTrials times.
func (s *MLX90614) probe(ctx context.Context, address byte) error {
	var err error
	for range s.config.ProbeTrials {
		tctx, cancel := context.WithTimeout(ctx, s.config.BusTimeout)
		err = s.transport.Probe(tctx, address)
		cancel()
		if err == nil {
			return nil
		}
	}
	return mapBusError(err)
}

// readWord reads a 16-bit little endian word from a RAM or EEPROM command.
func (s *MLX90614) readWord(ctx context.Context, address, cmd byte) (uint16, error) {
	size := 2
	if s.config.ReadPEC {
		size = 3
	}
	buf := make([]byte, size)
	tctx, cancel := context.WithTimeout(ctx, s.config.BusTimeout)
	defer cancel()
	if err := mapBusError(s.transport.Tx(tctx, address, []byte{cmd}, buf)); err != nil {
		return 0, err
	}
	if s.config.ReadPEC {
		expected := PEC(WireAddress(address), cmd, WireAddress(address)|0x01, buf[0], buf[1])
		if expected != buf[2] {
			return 0, fmt.Errorf("%w: command %#x: expected %#x, got %#x", ErrChecksumMismatch, cmd, expected, buf[2])
		}
	}
	return uint16(buf[1])<<8 | uint16(buf[0]), nil
}

// writeWord writes a 16-bit little endian word followed by its PEC.
func (s *MLX90614) writeWord(ctx context.Context, address, cmd byte, lo, hi byte) error {
	pec := PEC(WireAddress(address), cmd, lo, hi)
	tctx, cancel := context.WithTimeout(ctx, s.config.BusTimeout)
	defer cancel()
	return mapBusError(s.transport.WriteToAddr(tctx, address, []byte{cmd, lo, hi, pec}))
}
