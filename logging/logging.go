// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package logging builds the structured loggers used by gpioplex.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// Options controls the construction of a logger.
type Options struct {
	// Level is one of debug, info, warn or error.
	Level string

	// Format is text or json.
	Format string

	// Journal sends records to the systemd journal if it is available, in
	// place of Output.
	Journal bool

	// Output receives text or json records. Defaults to stderr.
	Output io.Writer

	// Identifier is the journal SYSLOG_IDENTIFIER.
	Identifier string
}

// ErrInvalidLevel indicates a level name is not recognised.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%q: %w", name, ErrInvalidLevel)
}

// New creates a logger, and the LevelVar controlling it so the level may be
// changed later.
func New(o Options) (*slog.Logger, *slog.LevelVar, error) {
	level, err := ParseLevel(o.Level)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	if o.Journal && journal.Enabled() {
		id := o.Identifier
		if id == "" {
			id = "gpioplex"
		}
		return slog.New(NewJournalHandler(lv, id)), lv, nil
	}
	w := o.Output
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: lv}
	switch o.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, ho)), lv, nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, ho)), lv, nil
	}
	return nil, nil, fmt.Errorf("log format %q not supported", o.Format)
}

// SetLevel updates lv from a level name, leaving it unchanged if the name is
// invalid.
func SetLevel(lv *slog.LevelVar, name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	lv.Set(level)
	return nil
}
