package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/irsensors/cmd/irsensors/console"
	"github.com/mklimuk/irsensors/gpio"
)

var gpioCmd = cli.Command{
	Name:  "gpio",
	Usage: "MCP23017 expander driving sensor supplies",
	Subcommands: []*cli.Command{
		&gpioReadCmd,
		&gpioPullCmd,
		&gpioPinCmd,
	},
}

func parsePort(s string) (gpio.Port, error) {
	switch strings.ToUpper(s) {
	case "A":
		return gpio.PortA, nil
	case "B":
		return gpio.PortB, nil
	}
	return 0, fmt.Errorf("unknown port %q", s)
}

// expander opens the configured bus and addresses the expander at the hex
// address given as the first argument.
func expander(ctx context.Context, c *cli.Context) (*gpio.MCP23017, closer, error) {
	addr, err := hex.DecodeString(c.Args().Get(0))
	if err != nil || len(addr) != 1 {
		return nil, nil, fmt.Errorf("could not decode address %q", c.Args().Get(0))
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	bus, done, err := openBus(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return gpio.NewMCP23017(bus, addr[0]), done, nil
}

var gpioReadCmd = cli.Command{
	Name:      "read",
	ArgsUsage: "<address>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected 1 argument, got %d", c.NArg())
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exp, done, err := expander(ctx, c)
		if err != nil {
			return console.Fail("", err)
		}
		defer done()
		for _, p := range []gpio.Port{gpio.PortA, gpio.PortB} {
			v, err := exp.Read(ctx, p)
			if err != nil {
				return console.Exit(1, "could not read gpio %s: %v", p, err)
			}
			fmt.Printf("I/O %s: %#X\n", p, v)
		}
		return nil
	},
}

var gpioPullCmd = cli.Command{
	Name:      "pull",
	ArgsUsage: "<address> <port> <hex mask>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 3 {
			return console.Exit(1, "expected 3 arguments, got %d", c.NArg())
		}
		port, err := parsePort(c.Args().Get(1))
		if err != nil {
			return console.Fail("", err)
		}
		data, err := hex.DecodeString(c.Args().Get(2))
		if err != nil || len(data) != 1 {
			return console.Exit(1, "could not decode mask %q", c.Args().Get(2))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exp, done, err := expander(ctx, c)
		if err != nil {
			return console.Fail("", err)
		}
		defer done()
		if err := exp.PullUp(ctx, port, data[0]); err != nil {
			return console.Exit(1, "could not write pull up settings: %v", err)
		}
		fmt.Printf("Wrote GPPU%s content: %#X\n", port, data[0])
		return nil
	},
}

var gpioPinCmd = cli.Command{
	Name:      "pin",
	Usage:     "drive an output pin",
	ArgsUsage: "<address> <port> <pin> <on|off>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 4 {
			return console.Exit(1, "expected 4 arguments, got %d", c.NArg())
		}
		port, err := parsePort(c.Args().Get(1))
		if err != nil {
			return console.Fail("", err)
		}
		pin, err := strconv.Atoi(c.Args().Get(2))
		if err != nil {
			return console.Exit(1, "invalid pin %q", c.Args().Get(2))
		}
		var high bool
		switch c.Args().Get(3) {
		case "on", "1":
			high = true
		case "off", "0":
		default:
			return console.Exit(1, "invalid level %q", c.Args().Get(3))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		exp, done, err := expander(ctx, c)
		if err != nil {
			return console.Fail("", err)
		}
		defer done()
		if err := exp.SetPin(ctx, port, pin, high); err != nil {
			return console.Exit(1, "could not set pin: %v", err)
		}
		return nil
	},
}
