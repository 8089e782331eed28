// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/config"
	"github.com/warthog618/gpioplex/uapi"
	"golang.org/x/sys/unix"
)

func flagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	ff := pflag.NewFlagSet("test", pflag.ContinueOnError)
	ff.AddFlagSet(rootCmd.Flags())
	ff.AddFlagSet(rootCmd.PersistentFlags())
	// flags are shared with rootCmd, so reset any state from earlier tests
	ff.VisitAll(func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	})
	require.Nil(t, ff.Parse(args))
	return ff
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig(flagSet(t))
	require.Nil(t, err)
	xc := config.Default()
	xc.Workers = runtime.NumCPU()
	assert.Equal(t, xc, c)
}

func TestLoadConfigFlags(t *testing.T) {
	c, err := loadConfig(flagSet(t,
		"--log-level", "debug",
		"--chip", "none",
		"--dir", "/tmp/input",
		"--workers", "3",
		"--metrics", ":9100"))
	require.Nil(t, err)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Empty(t, c.GPIO.Chip)
	assert.Equal(t, "/tmp/input", c.Dir)
	assert.Equal(t, 3, c.Workers)
	assert.Equal(t, ":9100", c.Metrics.Listen)
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpioplex.yaml")
	require.Nil(t, os.WriteFile(path, []byte("dir: /file\nworkers: 2\nlogging:\n  level: warn\n"), 0o644))
	t.Setenv("GPIOPLEX_DIR", "/env")

	c, err := loadConfig(flagSet(t, "-c", path))
	require.Nil(t, err)
	assert.Equal(t, "/env", c.Dir)
	assert.Equal(t, 2, c.Workers)
	assert.Equal(t, "warn", c.Logging.Level)

	c, err = loadConfig(flagSet(t, "-c", path, "--dir", "/flag"))
	require.Nil(t, err)
	assert.Equal(t, "/flag", c.Dir)

	_, err = loadConfig(flagSet(t, "-c", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.NotNil(t, err)

	_, err = loadConfig(flagSet(t, "--dir", ""))
	assert.NotNil(t, err)
}

func TestParseOffsets(t *testing.T) {
	oo, err := parseOffsets([]string{"3", "17", "0"})
	require.Nil(t, err)
	assert.Equal(t, []int{3, 17, 0}, oo)

	_, err = parseOffsets([]string{"3", "-1"})
	assert.NotNil(t, err)
	_, err = parseOffsets([]string{"gpio17"})
	assert.NotNil(t, err)
}

func TestLineInfoString(t *testing.T) {
	patterns := []struct {
		name string
		li   gpioplex.LineInfo
		x    string
	}{
		{
			"unused",
			gpioplex.LineInfo{Offset: 3, Flags: uapi.LineFlagInput},
			"\tline   3:     unnamed      unused   input  active-high",
		},
		{
			"matrix",
			gpioplex.LineInfo{
				Offset:   13,
				Name:     "GPIO13",
				Consumer: "gpioplex",
				Flags:    uapi.LineFlagUsed | uapi.LineFlagOutput,
			},
			"\tline  13:      GPIO13    gpioplex  output  active-high[used]",
		},
		{
			"input",
			gpioplex.LineInfo{
				Offset:   17,
				Name:     "GPIO17",
				Consumer: "my app",
				Flags: uapi.LineFlagUsed | uapi.LineFlagInput | uapi.LineFlagActiveLow |
					uapi.LineFlagBiasPullUp | uapi.LineFlagEdgeBoth,
			},
			"\tline  17:      GPIO17    \"my app\"   input   active-low[used pull-up rising-edge falling-edge]",
		},
		{
			"kernel",
			gpioplex.LineInfo{Offset: 1, Flags: uapi.LineFlagUsed},
			"\tline   1:     unnamed      kernel   input  active-high[used]",
		},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			assert.Equal(t, p.x, lineInfoString(p.li))
		}
		t.Run(p.name, tf)
	}
}

// failingInfo is a line info stream that fails on the first read.
type failingInfo struct {
	err error
}

func (f failingInfo) AsyncReadInfoChanges(r gpioplex.AsyncReader, buf []byte, h func(gpioplex.InfoChanges, error)) error {
	go h(gpioplex.InfoChanges{}, f.err)
	return nil
}

func TestWatchReadError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan infoChange, 1)
	errs := make(chan error, 1)
	require.Nil(t, readInfoChanges(ctx, nil, failingInfo{unix.EIO}, changes, errs))

	done := make(chan error, 1)
	go func() { done <- printChanges(ctx, changes, errs, 0, false) }()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, unix.EIO)
	case <-time.After(time.Second):
		require.Fail(t, "watch did not return")
	}
}

func TestWatchLimit(t *testing.T) {
	changes := make(chan infoChange, 2)
	changes <- infoChange{info: gpioplex.LineInfo{Offset: 3}, typ: uapi.LineChangedReleased}
	changes <- infoChange{info: gpioplex.LineInfo{Offset: 4}, typ: uapi.LineChangedRequested}
	err := printChanges(context.Background(), changes, nil, 2, false)
	assert.Nil(t, err)
	assert.Empty(t, changes)
}
