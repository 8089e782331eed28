// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package config provides the gpioplex configuration.
//
// Configuration is layered. Defaults are overridden by a YAML or TOML file,
// then by GPIOPLEX_ environment variables, then by command line flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/warthog618/gpioplex/app"
	"github.com/warthog618/gpioplex/charlie"
	"gopkg.in/yaml.v3"
)

// Config is the complete gpioplex configuration.
type Config struct {
	// Dir is the directory watched for joysticks.
	Dir string `yaml:"dir" toml:"dir"`

	// Workers is the number of reactor workers. Zero selects one per CPU.
	Workers int `yaml:"workers" toml:"workers"`

	GPIO     GPIOConfig     `yaml:"gpio" toml:"gpio"`
	Joystick JoystickConfig `yaml:"joystick" toml:"joystick"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
	Relay    RelayConfig    `yaml:"relay" toml:"relay"`
}

// GPIOConfig locates the LED matrix and input lines.
type GPIOConfig struct {
	// Chip is the chip name or path. Empty disables GPIO.
	Chip     string `yaml:"chip" toml:"chip"`
	Consumer string `yaml:"consumer" toml:"consumer"`
	Inputs   []int  `yaml:"inputs" toml:"inputs"`

	// Edges is one of both, rising or falling.
	Edges string `yaml:"edges" toml:"edges"`

	// Bias is one of pull-up, pull-down, disabled or as-is.
	Bias            string `yaml:"bias" toml:"bias"`
	ActiveLow       bool   `yaml:"active_low" toml:"active_low"`
	EventBufferSize int    `yaml:"event_buffer_size" toml:"event_buffer_size"`

	Outputs []int        `yaml:"outputs" toml:"outputs"`
	Pairs   []PairConfig `yaml:"pairs" toml:"pairs"`
}

// PairConfig locates an LED by the indices of its lines within the outputs.
type PairConfig struct {
	Anode   int `yaml:"anode" toml:"anode"`
	Cathode int `yaml:"cathode" toml:"cathode"`
}

// JoystickConfig maps joystick events onto LEDs.
type JoystickConfig struct {
	Buttons []ButtonConfig `yaml:"buttons" toml:"buttons"`
	Axes    []AxisConfig   `yaml:"axes" toml:"axes"`
}

// ButtonConfig binds a button to the LED lit while it is pressed.
type ButtonConfig struct {
	Button int `yaml:"button" toml:"button"`
	LED    int `yaml:"led" toml:"led"`
}

// AxisConfig binds the odd or even axes to LED ranges.
//
// Ranges are given as [first, last], inclusive.
type AxisConfig struct {
	Parity   string `yaml:"parity" toml:"parity"`
	Negative []int  `yaml:"negative" toml:"negative"`
	Positive []int  `yaml:"positive" toml:"positive"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn or error.
	Level string `yaml:"level" toml:"level"`

	// Format is text or json.
	Format string `yaml:"format" toml:"format"`

	// Journal sends logs to the systemd journal, if available.
	Journal bool `yaml:"journal" toml:"journal"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address to serve metrics on. Empty disables metrics.
	Listen string `yaml:"listen" toml:"listen"`
}

// RelayConfig controls mirroring of the LEDs to a Modbus relay bank.
type RelayConfig struct {
	// Endpoint is the host:port of the Modbus TCP server. Empty disables
	// the relay.
	Endpoint string `yaml:"endpoint" toml:"endpoint"`

	// Unit is the Modbus unit identifier.
	Unit int `yaml:"unit" toml:"unit"`

	// Address is the coil mirroring the first LED.
	Address int `yaml:"address" toml:"address"`

	// IntervalMS is the period between updates.
	IntervalMS int `yaml:"interval_ms" toml:"interval_ms"`

	// TimeoutMS bounds each Modbus transaction.
	TimeoutMS int `yaml:"timeout_ms" toml:"timeout_ms"`
}

var (
	// ErrInvalid indicates a configuration value is out of range.
	ErrInvalid = errors.New("invalid configuration")

	// ErrUnknownFormat indicates the file extension is not a supported
	// format.
	ErrUnknownFormat = errors.New("unknown configuration format")
)

// Default returns the default configuration.
func Default() Config {
	ac := app.DefaultConfig()
	c := Config{
		Dir:     ac.Dir,
		Workers: ac.Workers,
		GPIO: GPIOConfig{
			Chip:     ac.Chip,
			Consumer: ac.Consumer,
			Inputs:   ac.Inputs,
			Edges:    ac.Edges,
			Bias:     ac.Bias,
			Outputs:  ac.Outputs,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Relay: RelayConfig{
			Unit:       1,
			IntervalMS: 100,
			TimeoutMS:  1000,
		},
	}
	for _, p := range ac.Pairs {
		c.GPIO.Pairs = append(c.GPIO.Pairs, PairConfig{p.Anode, p.Cathode})
	}
	for b := range 256 {
		if led, ok := ac.Bindings.Buttons[uint8(b)]; ok {
			c.Joystick.Buttons = append(c.Joystick.Buttons, ButtonConfig{b, led})
		}
	}
	for _, ab := range ac.Bindings.Axes {
		parity := "even"
		if ab.Odd {
			parity = "odd"
		}
		c.Joystick.Axes = append(c.Joystick.Axes, AxisConfig{
			Parity:   parity,
			Negative: []int{ab.Negative.First, ab.Negative.Last},
			Positive: []int{ab.Positive.First, ab.Positive.Last},
		})
	}
	return c
}

// Load reads the configuration file at path over the defaults.
//
// The format is selected by extension, .yaml or .yml for YAML and .toml for
// TOML. Unknown fields are rejected.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	c := Default()
	// lists in the file replace the defaults rather than merging with them
	c.GPIO.Pairs = nil
	c.Joystick = JoystickConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err = dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(b)).DisallowUnknownFields()
		if err = dec.Decode(&c); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	d := Default()
	if c.GPIO.Pairs == nil {
		c.GPIO.Pairs = d.GPIO.Pairs
	}
	if c.Joystick.Buttons == nil && c.Joystick.Axes == nil {
		c.Joystick = d.Joystick
	}
	return c, nil
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if _, err := c.App(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging format %q: %w", c.Logging.Format, ErrInvalid)
	}
	if c.Relay.Endpoint != "" {
		if c.Relay.Unit < 0 || c.Relay.Unit > 247 {
			return fmt.Errorf("relay unit %d: %w", c.Relay.Unit, ErrInvalid)
		}
		if c.Relay.Address < 0 || c.Relay.Address > 0xffff {
			return fmt.Errorf("relay address %d: %w", c.Relay.Address, ErrInvalid)
		}
		if c.Relay.IntervalMS <= 0 {
			return fmt.Errorf("relay interval %dms: %w", c.Relay.IntervalMS, ErrInvalid)
		}
	}
	return nil
}

// App returns the controller configuration.
func (c Config) App() (app.Config, error) {
	ac := app.Config{
		Dir:      c.Dir,
		Chip:     c.GPIO.Chip,
		Consumer: c.GPIO.Consumer,
		Inputs:   c.GPIO.Inputs,
		Outputs:  c.GPIO.Outputs,
		Workers:  c.Workers,
		Bindings: app.Bindings{Buttons: map[uint8]int{}},

		Edges:           c.GPIO.Edges,
		Bias:            c.GPIO.Bias,
		ActiveLow:       c.GPIO.ActiveLow,
		EventBufferSize: c.GPIO.EventBufferSize,
	}
	for _, p := range c.GPIO.Pairs {
		ac.Pairs = append(ac.Pairs, charlie.Pair{Anode: p.Anode, Cathode: p.Cathode})
	}
	for _, b := range c.Joystick.Buttons {
		if b.Button < 0 || b.Button > 255 {
			return ac, fmt.Errorf("button %d: %w", b.Button, ErrInvalid)
		}
		ac.Bindings.Buttons[uint8(b.Button)] = b.LED
	}
	for i, a := range c.Joystick.Axes {
		var ab app.AxisBinding
		switch a.Parity {
		case "odd":
			ab.Odd = true
		case "even":
		default:
			return ac, fmt.Errorf("axis binding %d parity %q: %w", i, a.Parity, ErrInvalid)
		}
		var err error
		if ab.Negative, err = toRange(a.Negative); err != nil {
			return ac, fmt.Errorf("axis binding %d negative: %w", i, err)
		}
		if ab.Positive, err = toRange(a.Positive); err != nil {
			return ac, fmt.Errorf("axis binding %d positive: %w", i, err)
		}
		ac.Bindings.Axes = append(ac.Bindings.Axes, ab)
	}
	return ac, ac.Validate()
}

func toRange(r []int) (app.Range, error) {
	if len(r) != 2 {
		return app.Range{}, fmt.Errorf("range %v: %w", r, ErrInvalid)
	}
	return app.Range{First: r[0], Last: r[1]}, nil
}
