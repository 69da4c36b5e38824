package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// build metadata, injected at link time
var (
	Version = "latest"
	Commit  string
	Date    string
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"
)

var ErrInvalid = errors.New("invalid configuration")

type Power struct {
	// Switch is "mcp2221" (GP pin of the bridge) or "mcp23017" (expander pin).
	Switch    string        `yaml:"switch"`
	Pin       int           `yaml:"pin"`
	Port      string        `yaml:"port,omitempty"`
	Expander  byte          `yaml:"expander,omitempty"`
	ActiveLow bool          `yaml:"active_low"`
	OffTime   time.Duration `yaml:"off_time"`
}

type Config struct {
	Adapter     string        `yaml:"adapter"`
	Device      string        `yaml:"device"`
	Bus         int           `yaml:"bus"`
	SpeedHz     int           `yaml:"speed_hz"`
	Address     byte          `yaml:"address"`
	Unit        string        `yaml:"unit"`
	BusTimeout  time.Duration `yaml:"bus_timeout"`
	SettleTime  time.Duration `yaml:"settle_time"`
	ProbeTrials int           `yaml:"probe_trials"`
	ReadPEC     bool          `yaml:"read_pec"`
	Verify      bool          `yaml:"verify"`
	Targeted    bool          `yaml:"targeted"`
	Power       *Power        `yaml:"power,omitempty"`
}

func Default() Config {
	c := Config{
		Adapter:     AdapterMCP2221,
		Device:      "/dev/i2c-1",
		Bus:         -1,
		SpeedHz:     100000,
		Address:     0x5A,
		Unit:        "C",
		SettleTime:  time.Second,
		ProbeTrials: 1,
	}
	c.BusTimeout = c.DefaultBusTimeout()
	return c
}

// Load reads a YAML file on top of the defaults. The MCP2221 needs a few
// HID round trips per bus transaction so its default bus timeout is larger.
func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("could not open config file: %w", err)
	}
	defer func() { _ = f.Close() }()
	cfg.BusTimeout = 0
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("could not decode config file %s: %w", path, err)
	}
	if cfg.BusTimeout == 0 {
		cfg.BusTimeout = cfg.DefaultBusTimeout()
	}
	return cfg, cfg.Validate()
}

// DefaultBusTimeout depends on the adapter.
func (c Config) DefaultBusTimeout() time.Duration {
	if c.Adapter == AdapterMCP2221 {
		return 500 * time.Millisecond
	}
	return 100 * time.Millisecond
}

func (c Config) Validate() error {
	switch c.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterNanoPi, AdapterSim:
	default:
		return fmt.Errorf("%w: unknown adapter %q", ErrInvalid, c.Adapter)
	}
	if c.Address > 0x7F {
		return fmt.Errorf("%w: address %#x out of range", ErrInvalid, c.Address)
	}
	if c.BusTimeout <= 0 {
		return fmt.Errorf("%w: bus timeout must be positive", ErrInvalid)
	}
	if c.SettleTime < 0 {
		return fmt.Errorf("%w: negative settle time", ErrInvalid)
	}
	if c.ProbeTrials < 1 {
		return fmt.Errorf("%w: at least one probe trial is required", ErrInvalid)
	}
	if c.Power != nil {
		switch c.Power.Switch {
		case "mcp2221":
			if c.Power.Pin < 0 || c.Power.Pin > 3 {
				return fmt.Errorf("%w: mcp2221 has no GP%d", ErrInvalid, c.Power.Pin)
			}
		case "mcp23017":
			if c.Power.Pin < 0 || c.Power.Pin > 7 {
				return fmt.Errorf("%w: mcp23017 port has no pin %d", ErrInvalid, c.Power.Pin)
			}
			if c.Power.Port != "" && c.Power.Port != "A" && c.Power.Port != "B" {
				return fmt.Errorf("%w: unknown mcp23017 port %q", ErrInvalid, c.Power.Port)
			}
		default:
			return fmt.Errorf("%w: unknown power switch %q", ErrInvalid, c.Power.Switch)
		}
		if c.Power.OffTime < 0 {
			return fmt.Errorf("%w: negative power off time", ErrInvalid)
		}
	}
	return nil
}
