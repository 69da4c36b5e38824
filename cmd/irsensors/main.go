package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/irsensors/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	app := cli.NewApp()
	app.Name = "irsensors"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", config.Version, config.Date, config.Commit)
	app.Usage = "infrared thermometer cli"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable verbose logging and frame dumps",
		},
		&cli.PathFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file",
			EnvVars: []string{"IRSENSORS_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "adapter",
			Aliases: []string{"a"},
			Usage:   "bus adapter: mcp2221, generic, nanopi or sim",
		},
		&cli.StringFlag{
			Name:  "device",
			Usage: "host i2c device for the generic adapter",
		},
		&cli.IntFlag{
			Name:  "bus",
			Usage: "i2c bus number for the nanopi adapter",
		},
		&cli.StringFlag{
			Name:  "address",
			Usage: "believed sensor address (hex)",
		},
		&cli.StringFlag{
			Name:    "unit",
			Aliases: []string{"u"},
			Usage:   "temperature unit: K, C or F",
		},
		&cli.DurationFlag{
			Name:  "bus-timeout",
			Usage: "timeout of a single bus transaction",
		},
		&cli.BoolFlag{
			Name:  "pec",
			Usage: "verify the checksum of every register read",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stdout, chlog.Options{
			ReportCaller:    true,
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		&thermoCmd,
		&usbCmd,
		&mcp2221Cmd,
		&gpioCmd,
	}
	err := app.Run(os.Args)
	if err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			log.Printf("unexpected error: %v", err)
			return exerr.ExitCode()
		}
		log.Printf("unexpected error: %v", err)
		return 1
	}
	return 0
}
