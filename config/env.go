// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strconv"

	"github.com/warthog618/config"
	"github.com/warthog618/config/env"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration, e.g. GPIOPLEX_LOGGING_LEVEL.
const EnvPrefix = "GPIOPLEX_"

// ApplyEnv overrides scalar fields from environment variables with the given
// prefix.
//
// Variable names map onto keys by dropping the prefix, lowering the case and
// replacing underscores with dots, so GPIOPLEX_GPIO_CHIP sets gpio.chip.
func (c *Config) ApplyEnv(prefix string) error {
	cfg := config.New(env.New(env.WithEnvPrefix(prefix)))
	strs := map[string]*string{
		"dir":            &c.Dir,
		"gpio.chip":      &c.GPIO.Chip,
		"gpio.consumer":  &c.GPIO.Consumer,
		"gpio.edges":     &c.GPIO.Edges,
		"gpio.bias":      &c.GPIO.Bias,
		"logging.level":  &c.Logging.Level,
		"logging.format": &c.Logging.Format,
		"metrics.listen": &c.Metrics.Listen,
		"relay.endpoint": &c.Relay.Endpoint,
	}
	for k, p := range strs {
		if v, err := cfg.Get(k); err == nil {
			*p = v.String()
		}
	}
	ints := map[string]*int{
		"workers":       &c.Workers,
		"relay.unit":    &c.Relay.Unit,
		"relay.address": &c.Relay.Address,
	}
	for k, p := range ints {
		v, err := cfg.Get(k)
		if err != nil {
			continue
		}
		n, err := strconv.Atoi(v.String())
		if err != nil {
			return fmt.Errorf("%s: %w", k, ErrInvalid)
		}
		*p = n
	}
	if v, err := cfg.Get("logging.journal"); err == nil {
		b, err := strconv.ParseBool(v.String())
		if err != nil {
			return fmt.Errorf("logging.journal: %w", ErrInvalid)
		}
		c.Logging.Journal = b
	}
	return nil
}
