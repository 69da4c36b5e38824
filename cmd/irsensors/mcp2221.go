package main

import (
	"os"
	"strconv"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/irsensors/adapter"
	"github.com/mklimuk/irsensors/cmd/irsensors/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "USB to I2C bridge maintenance",
	Subcommands: []*cli.Command{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
		&mcp2221GPIOCmd,
		&mcp2221PowerPinCmd,
	},
}

func printYAML(v any) error {
	enc := yaml.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		return console.Fail("encoding error", err)
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name: "status",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		status, err := adapter.NewMCP2221().Status(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the current I2C transfer and free the bus",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		status, err := adapter.NewMCP2221().ReleaseBus(ctx)
		if err != nil {
			return console.Fail("adapter communication error", err)
		}
		return printYAML(status)
	},
}

var mcp2221GPIOCmd = cli.Command{
	Name:  "gpio",
	Usage: "print GP pin settings and values",
	Action: func(c *cli.Context) error {
		ctx, cancel := commandContext(c)
		defer cancel()
		d := adapter.NewMCP2221()
		params, err := d.GetGPIOParameters(ctx)
		if err != nil {
			return console.Fail("could not read GP settings", err)
		}
		values, err := d.ReadGPIO(ctx)
		if err != nil {
			return console.Fail("could not read GP values", err)
		}
		return printYAML(map[string]any{"settings": params, "values": values})
	},
}

var mcp2221PowerPinCmd = cli.Command{
	Name:      "power-pin",
	Usage:     "configure a GP pin as a GPIO output driving the sensor supply",
	ArgsUsage: "<pin>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		pin, err := strconv.Atoi(c.Args().Get(0))
		if err != nil || pin < 0 || pin >= adapter.GPIOPinCount {
			return console.Exit(1, "invalid pin %q", c.Args().Get(0))
		}
		ctx, cancel := commandContext(c)
		defer cancel()
		d := adapter.NewMCP2221()
		params, err := d.GetGPIOParameters(ctx)
		if err != nil {
			return console.Fail("could not read GP settings", err)
		}
		params.SetPin(pin, adapter.GPIOModeOut, adapter.GPIOOperation)
		if err := d.SetGPIOParameters(ctx, params); err != nil {
			return console.Fail("could not write GP settings", err)
		}
		console.PInfof(console.PictoPin, "GP%d is now a GPIO output (applied after the next reset)", pin)
		return nil
	},
}
