package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/irsensors"
	"github.com/mklimuk/irsensors/adapter"
	"github.com/mklimuk/irsensors/config"
	"github.com/mklimuk/irsensors/gpio"
	"github.com/mklimuk/irsensors/i2c"
	"github.com/mklimuk/irsensors/infrared"
	"github.com/mklimuk/irsensors/snsctx"
)

// loadConfig merges the config file with flags set on the command line.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.Path("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return cfg, err
		}
	}
	if c.IsSet("adapter") {
		cfg.Adapter = c.String("adapter")
		if !c.IsSet("bus-timeout") {
			cfg.BusTimeout = cfg.DefaultBusTimeout()
		}
	}
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("bus") {
		cfg.Bus = c.Int("bus")
	}
	if c.IsSet("address") {
		a, err := parseAddress(c.String("address"))
		if err != nil {
			return cfg, err
		}
		cfg.Address = a
	}
	if c.IsSet("unit") {
		cfg.Unit = c.String("unit")
	}
	if c.IsSet("bus-timeout") {
		cfg.BusTimeout = c.Duration("bus-timeout")
	}
	if c.IsSet("pec") {
		cfg.ReadPEC = c.Bool("pec")
	}
	return cfg, cfg.Validate()
}

func parseAddress(s string) (byte, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 8)
	if err != nil {
		return 0, fmt.Errorf("could not parse address %q: %w", s, err)
	}
	return byte(v), nil
}

type closer func()

// openBus returns the transport selected in cfg.
func openBus(ctx context.Context, cfg config.Config) (irsensors.SMBus, closer, error) {
	switch cfg.Adapter {
	case config.AdapterMCP2221:
		d := adapter.NewMCP2221()
		if err := d.Init(ctx, cfg.SpeedHz); err != nil {
			return nil, nil, fmt.Errorf("adapter initialization error: %w", err)
		}
		return d, func() {}, nil
	case config.AdapterGeneric:
		b, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		if err := b.SetSpeed(physic.Frequency(cfg.SpeedHz) * physic.Hertz); err != nil {
			slog.Warn("could not set bus speed", "error", err)
		}
		return b, func() { _ = b.Close() }, nil
	case config.AdapterNanoPi:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		b := i2c.NewGobotBus(npi, cfg.Bus)
		return b, func() {
			_ = b.Close()
			_ = npi.I2cBusAdaptor.Finalize()
		}, nil
	case config.AdapterSim:
		address := cfg.Address
		if address == 0 {
			address = infrared.DefaultAddress
		}
		d := i2c.NewSimDevice(address)
		d.SetRaw(byte(infrared.Ambient), 14860)
		d.SetRaw(byte(infrared.Object1), 15010)
		d.SetRaw(byte(infrared.Object2), 0x8000)
		return i2c.NewSimBus(d), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
}

func powerSwitch(bus irsensors.SMBus, p *config.Power) (irsensors.PowerSwitch, error) {
	switch p.Switch {
	case "mcp2221":
		d, ok := bus.(*adapter.MCP2221)
		if !ok {
			return nil, fmt.Errorf("mcp2221 power pin requires the mcp2221 adapter")
		}
		return d.PowerPin(p.Pin, p.ActiveLow), nil
	case "mcp23017":
		addr := p.Expander
		if addr == 0 {
			addr = gpio.DefaultMCP23017Address
		}
		port := gpio.PortA
		if p.Port == "B" {
			port = gpio.PortB
		}
		return gpio.NewMCP23017(bus, addr).PowerPin(port, p.Pin, p.ActiveLow), nil
	}
	return nil, fmt.Errorf("unknown power switch %q", p.Switch)
}

// sensorOpts translates the configuration into driver options.
func sensorOpts(bus irsensors.SMBus, cfg config.Config) ([]infrared.Opt, error) {
	unit, err := infrared.ParseUnit(cfg.Unit)
	if err != nil {
		return nil, err
	}
	opts := []infrared.Opt{
		infrared.WithUnit(unit),
		infrared.WithBusTimeout(cfg.BusTimeout),
		infrared.WithSettleTime(cfg.SettleTime),
		infrared.WithProbeTrials(cfg.ProbeTrials),
	}
	if cfg.ReadPEC {
		opts = append(opts, infrared.WithReadPEC())
	}
	if cfg.Verify {
		opts = append(opts, infrared.WithRewriteVerification())
	}
	if cfg.Targeted {
		opts = append(opts, infrared.WithTargetedRewrite())
	}
	if cfg.Power != nil {
		sw, err := powerSwitch(bus, cfg.Power)
		if err != nil {
			return nil, err
		}
		opts = append(opts, infrared.WithPowerSwitch(sw, cfg.Power.OffTime))
	}
	return opts, nil
}

// openSensor creates a driver at the configured address. With probe unset
// nothing is probed and the driver believes DefaultAddress until Discover or
// SetAddress finds the sensor.
func openSensor(ctx context.Context, c *cli.Context, probe bool, extra ...infrared.Opt) (*infrared.MLX90614, closer, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	bus, done, err := openBus(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := sensorOpts(bus, cfg)
	if err != nil {
		done()
		return nil, nil, err
	}
	address := cfg.Address
	if !probe {
		address = 0
	}
	opts = append(opts, infrared.WithLogger(snsctx.Logger(ctx)))
	opts = append(opts, extra...)
	s, err := infrared.New(ctx, bus, append(opts, infrared.WithAddress(address))...)
	if err != nil {
		done()
		return nil, nil, err
	}
	return s, done, nil
}
