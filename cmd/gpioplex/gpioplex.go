// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// A controller driving a Charlieplexed LED matrix from joysticks and GPIO
// inputs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/gpioplex/app"
	"github.com/warthog618/gpioplex/config"
	"github.com/warthog618/gpioplex/events"
	"github.com/warthog618/gpioplex/logging"
	"github.com/warthog618/gpioplex/metrics"
	"github.com/warthog618/gpioplex/relay"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "configuration file (.yaml, .yml or .toml)")
	pf.String("chip", "", "GPIO chip driving the LEDs, or \"none\" to disable GPIO")
	ff := rootCmd.Flags()
	ff.String("log-level", "", "log level (debug, info, warn or error)")
	ff.String("dir", "", "directory watched for joysticks")
	ff.Int("workers", runtime.NumCPU(), "number of reactor workers")
	ff.String("metrics", "", "address to serve Prometheus metrics on, e.g. :9100")
	rootCmd.SetHelpTemplate(rootCmd.HelpTemplate() + extendedHelp)
}

var extendedHelp = `
Configuration is read from the file, if any, then overridden by GPIOPLEX_
environment variables, e.g. GPIOPLEX_LOGGING_LEVEL=debug, then by flags.
`

var rootCmd = &cobra.Command{
	Use:           "gpioplex [flags]",
	Short:         "gpioplex drives a Charlieplexed LED matrix from joysticks and GPIO inputs",
	Args:          cobra.NoArgs,
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gpioplex: %s\n", err)
		os.Exit(1)
	}
}

func loadConfig(ff *pflag.FlagSet) (config.Config, error) {
	c := config.Default()
	path, _ := ff.GetString("config")
	if path != "" {
		var err error
		if c, err = config.Load(path); err != nil {
			return c, err
		}
	}
	if err := c.ApplyEnv(config.EnvPrefix); err != nil {
		return c, err
	}
	applyFlags(ff, &c)
	return c, c.Validate()
}

// applyFlags overrides the configuration with any flags explicitly set.
func applyFlags(ff *pflag.FlagSet, c *config.Config) {
	if ff.Changed("log-level") {
		c.Logging.Level, _ = ff.GetString("log-level")
	}
	if ff.Changed("chip") {
		c.GPIO.Chip, _ = ff.GetString("chip")
		if c.GPIO.Chip == "none" {
			c.GPIO.Chip = ""
		}
	}
	if ff.Changed("dir") {
		c.Dir, _ = ff.GetString("dir")
	}
	if w, err := ff.GetInt("workers"); err == nil && (ff.Changed("workers") || c.Workers == 0) {
		c.Workers = w
	}
	if ff.Changed("metrics") {
		c.Metrics.Listen, _ = ff.GetString("metrics")
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	logger, level, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Journal: cfg.Logging.Journal,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	ac, err := cfg.App()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.New()
	defer bus.Close()
	m := metrics.New()
	m.Attach(bus)
	defer m.Detach()

	a, err := app.New(ac, app.WithLogger(logger), app.WithBus(bus), app.WithMetrics(m))
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Metrics.Listen != "" {
		srv := serveMetrics(cfg.Metrics.Listen, m, logger)
		defer srv.Close()
	}
	rctx, rcancel := context.WithCancel(ctx)
	rdone := startRelay(rctx, cfg.Relay, bus, logger)
	defer func() {
		rcancel()
		<-rdone
	}()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		err = config.Watch(ctx, path, config.DefaultDebounce, logger, func(c config.Config) {
			if err := logging.SetLevel(level, c.Logging.Level); err != nil {
				logger.Warn("log level unchanged", "err", err)
			}
		})
		if err != nil {
			logger.Warn("config file will not be reloaded", "path", path, "err", err)
		}
	}

	daemon.SdNotify(false, daemon.SdNotifyReady)
	err = a.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

// startRelay mirrors the LEDs onto the relay bank, if one is configured,
// returning a channel closed once the relay has released its coils.
//
// The relay is optional, so failing to reach it is not fatal.
func startRelay(ctx context.Context, rc config.RelayConfig, bus *events.Bus, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if rc.Endpoint == "" {
		close(done)
		return done
	}
	conn, err := relay.Dial(relay.Config{
		Endpoint: rc.Endpoint,
		Unit:     uint8(rc.Unit),
		Timeout:  time.Duration(rc.TimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Warn("relay unavailable", "endpoint", rc.Endpoint, "err", err)
		close(done)
		return done
	}
	r := relay.New(conn, uint16(rc.Address), time.Duration(rc.IntervalMS)*time.Millisecond, logger)
	r.Attach(bus)
	go func() {
		defer close(done)
		defer conn.Close()
		r.Run(ctx)
	}()
	logger.Info("relay connected", "endpoint", rc.Endpoint, "address", rc.Address)
	return done
}
