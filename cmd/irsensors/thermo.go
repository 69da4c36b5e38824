package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/irsensors/cmd/irsensors/console"
	"github.com/mklimuk/irsensors/infrared"
	"github.com/mklimuk/irsensors/snsctx"
)

var thermoCmd = cli.Command{
	Name:    "thermo",
	Aliases: []string{"ir"},
	Usage:   "MLX90614 infrared thermometer",
	Subcommands: []*cli.Command{
		&thermoReadCmd,
		&thermoDiscoverCmd,
		&thermoScanCmd,
		&thermoAddressCmd,
		&thermoPowerCycleCmd,
	},
}

func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = snsctx.WithLogger(ctx, slog.Default().With("cmd", c.Command.FullName()))
	return snsctx.SetVerbose(ctx, c.Bool("verbose")), cancel
}

var thermoReadCmd = cli.Command{
	Name:    "read",
	Aliases: []string{"rd"},
	Usage:   "read temperatures",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "channel",
			Usage: "ambient, object1, object2 or all",
			Value: "all",
		},
		&cli.BoolFlag{Name: "raw", Usage: "print raw register values"},
		&cli.BoolFlag{Name: "yaml", Usage: "print the reading as YAML"},
	},
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		s, done, err := openSensor(ctx, c, true)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()

		if c.String("channel") == "all" && !c.Bool("raw") {
			r, err := s.ReadAll(ctx)
			if err != nil {
				return console.Fail("error reading temperatures", err)
			}
			if c.Bool("yaml") {
				if err := yaml.NewEncoder(os.Stdout).Encode(r); err != nil {
					return console.Fail("encoding error", err)
				}
				return nil
			}
			console.Printf("%s  ambient %s\n", console.PictoHouse, console.White(format(r.Ambient, r.Unit)))
			console.Printf("%s  object1 %s\n", console.PictoThermometer, console.White(format(r.Object1, r.Unit)))
			if r.Object2 != nil {
				console.Printf("%s  object2 %s\n", console.PictoThermometer, console.White(format(*r.Object2, r.Unit)))
			}
			return nil
		}

		channels := []infrared.Channel{infrared.Ambient, infrared.Object1, infrared.Object2}
		if c.String("channel") != "all" {
			ch, err := infrared.ParseChannel(c.String("channel"))
			if err != nil {
				return console.Fail("", err)
			}
			channels = []infrared.Channel{ch}
		}
		if c.Bool("raw") {
			if err := printRaw(ctx, s, channels); err != nil {
				return console.Fail("no channel could be read", err)
			}
			return nil
		}
		for _, ch := range channels {
			t, err := s.Read(ctx, ch)
			if err != nil {
				return console.Fail("error reading temperature", err)
			}
			console.Printf("%s  %-8s %s\n", console.PictoThermometer, ch, console.White(format(t, s.Unit())))
		}
		return nil
	},
}

type rawReader interface {
	ReadRaw(ctx context.Context, ch infrared.Channel) (uint16, error)
}

// printRaw prints every readable channel and reports the channels that
// failed. It returns the last error when no channel could be read.
func printRaw(ctx context.Context, r rawReader, channels []infrared.Channel) error {
	var last error
	read := 0
	for _, ch := range channels {
		raw, err := r.ReadRaw(ctx, ch)
		if err != nil {
			console.Errorf("%s: %s", ch, err)
			last = err
			continue
		}
		read++
		console.Printf("%s  %-8s %s\n", console.PictoThermometer, ch, console.White(fmt.Sprintf("%#04x", raw)))
	}
	if read == 0 {
		return last
	}
	return nil
}

func format(t float32, u infrared.Unit) string {
	return fmt.Sprintf("%.2f %s", t, u)
}

var thermoDiscoverCmd = cli.Command{
	Name:  "discover",
	Usage: "find the first address a sensor answers at",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		s, done, err := openSensor(ctx, c, false)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()
		console.Info("probing addresses 0x01-0x7f")
		if err := s.Discover(ctx); err != nil {
			return console.Fail("discovery failed", err)
		}
		console.PInfof(console.PictoPin, "sensor found at %s", console.Addr(s.Address()))
		return nil
	},
}

var thermoScanCmd = cli.Command{
	Name:  "scan",
	Usage: "list every responding address",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		s, done, err := openSensor(ctx, c, false)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()
		found, err := s.Scan(ctx)
		if err != nil {
			return console.Fail("scan failed", err)
		}
		if len(found) == 0 {
			console.Warn("no device answered")
			return nil
		}
		addrs := make([]string, 0, len(found))
		for _, a := range found {
			addrs = append(addrs, fmt.Sprintf("%#x", a))
		}
		console.PInfof(console.PictoPin, "%s", console.White(strings.Join(addrs, " ")))
		return nil
	},
}

var thermoAddressCmd = cli.Command{
	Name:  "address",
	Usage: "inspect or change the sensor address",
	Subcommands: []*cli.Command{
		&thermoAddressGetCmd,
		&thermoAddressSetCmd,
		&thermoAddressWriteCmd,
	},
}

var thermoAddressGetCmd = cli.Command{
	Name:  "get",
	Usage: "print the address stored in the sensor EEPROM",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "targeted", Usage: "address the configured sensor instead of the universal address"},
	},
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		var extra []infrared.Opt
		if c.Bool("targeted") {
			extra = append(extra, infrared.WithTargetedRewrite())
		}
		s, done, err := openSensor(ctx, c, c.Bool("targeted"), extra...)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()
		cell, err := s.DeviceAddressCell(ctx)
		if err != nil {
			return console.Fail("could not read address cell", err)
		}
		console.PInfof(console.PictoKey, "address %s (cell %s)", console.Addr(byte(cell)), console.White(fmt.Sprintf("%#04x", cell)))
		return nil
	},
}

var thermoAddressSetCmd = cli.Command{
	Name:      "set",
	Usage:     "check that a sensor answers at the given address",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		a, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Fail("", err)
		}
		ctx, cancel := commandContext(c)
		defer cancel()
		s, done, err := openSensor(ctx, c, false)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()
		if err := s.SetAddress(ctx, a); err != nil {
			return console.Fail("", err)
		}
		console.PInfof(console.PictoPin, "sensor answers at %s", console.Addr(s.Address()))
		return nil
	},
}

var thermoAddressWriteCmd = cli.Command{
	Name:      "write",
	Usage:     "store a new address in the sensor EEPROM",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
		&cli.BoolFlag{Name: "verify", Usage: "read the cell back after writing"},
		&cli.BoolFlag{Name: "targeted", Usage: "address the configured sensor instead of the universal address"},
		&cli.BoolFlag{Name: "power-cycle", Usage: "power cycle the sensor afterwards (needs a power switch)"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		a, err := parseAddress(c.Args().Get(0))
		if err != nil {
			return console.Fail("", err)
		}
		cfg, err := loadConfig(c)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		cfg.Verify = cfg.Verify || c.Bool("verify")
		cfg.Targeted = cfg.Targeted || c.Bool("targeted")
		if !cfg.Targeted {
			console.Warn("the universal address reaches every sensor on the bus, keep only one connected")
		}
		if !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("write address %#x to the sensor EEPROM?", a))
			if err != nil {
				return console.Fail("prompt error", err)
			}
			if !ok {
				console.PInfof(console.PictoStop, "aborted")
				return nil
			}
		}

		ctx, cancel := commandContext(c)
		defer cancel()
		bus, done, err := openBus(ctx, cfg)
		if err != nil {
			return console.Fail("", err)
		}
		defer done()
		opts, err := sensorOpts(bus, cfg)
		if err != nil {
			return console.Fail("configuration error", err)
		}
		if cfg.Targeted {
			opts = append(opts, infrared.WithAddress(cfg.Address))
		}
		s, err := infrared.New(ctx, bus, opts...)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		if err := s.RewriteDeviceAddress(ctx, a); err != nil {
			return console.Fail("address rewrite failed", err)
		}
		console.PInfof(console.PictoKey, "address %s written", console.Addr(a))
		if !c.Bool("power-cycle") {
			console.Info("power cycle the sensor to apply the new address")
			return nil
		}
		if err := s.PowerCycle(ctx); err != nil {
			return console.Fail("power cycle failed", err)
		}
		console.PInfof(console.PictoFinish, "sensor answers at %s", console.Addr(s.Address()))
		return nil
	},
}

var thermoPowerCycleCmd = cli.Command{
	Name:  "power-cycle",
	Usage: "switch the sensor supply off and on",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		s, done, err := openSensor(ctx, c, true)
		if err != nil {
			return console.Fail("sensor initialization error", err)
		}
		defer done()
		if err := s.PowerCycle(ctx); err != nil {
			return console.Fail("power cycle failed", err)
		}
		console.PInfof(console.PictoFinish, "sensor answers at %s", console.Addr(s.Address()))
		return nil
	},
}
