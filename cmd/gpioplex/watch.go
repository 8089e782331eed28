// SPDX-FileCopyrightText: 2019 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/reactor"
	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/uapi"
)

func init() {
	watchCmd.Flags().UintP("num-events", "n", 0, "exit after n events")
	watchCmd.Flags().BoolP("verbose", "v", false, "display complete line info")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [flags] [offset]...",
	Short: "Watch lines for changes to the line info",
	Long: `Wait for changes to info on the GPIO lines used by gpioplex, or the specified
lines, and print them to standard output.

A running gpioplex reconfigures the matrix lines continuously, so watching them
shows the Charlieplex scan.`,
	RunE:                  watch,
	DisableFlagsInUseLine: true,
}

// infoChange is a copy of a change, detached from the read buffer.
type infoChange struct {
	info      gpioplex.LineInfo
	typ       uapi.ChangeType
	timestamp time.Duration
}

func watch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.GPIO.Chip == "" {
		return errNoChip
	}
	verbose, _ := cmd.Flags().GetBool("verbose")
	limit, _ := cmd.Flags().GetUint("num-events")

	c, err := gpioplex.OpenChip(cfg.GPIO.Chip)
	if err != nil {
		return err
	}
	defer c.Close()
	oo, err := selectOffsets(cmd, cfg, c, args)
	if err != nil {
		return err
	}
	for _, o := range oo {
		li, err := c.WatchLineInfo(o)
		if err != nil {
			return fmt.Errorf("error requesting watch on line %d: %w", o, err)
		}
		if verbose {
			fmt.Println(lineInfoString(li))
		}
	}

	r, err := reactor.New()
	if err != nil {
		return err
	}
	defer r.Close()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	changes := make(chan infoChange, 16)
	errs := make(chan error, 1)
	if err = readInfoChanges(ctx, r, c, changes, errs); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- r.Run(1)
	}()
	defer func() {
		// release any handler blocked on changes before stopping
		stop()
		r.Stop()
		<-done
	}()
	return printChanges(ctx, changes, errs, limit, verbose)
}

// printChanges prints changes until ctx is done, the limit is reached, or
// the stream fails.
func printChanges(ctx context.Context, changes <-chan infoChange, errs <-chan error, limit uint, verbose bool) error {
	count := uint(0)
	for {
		select {
		case ch := <-changes:
			fmt.Printf("event:%3d %-12s %s (%s)\n",
				ch.info.Offset,
				ch.typ,
				time.Now().Format(time.RFC3339Nano),
				ch.timestamp)
			if verbose {
				fmt.Println(lineInfoString(ch.info))
			}
			count++
			if limit > 0 && count >= limit {
				return nil
			}
		case err := <-errs:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// infoReader is a stream of line info changes.
//
// It is satisfied by *gpioplex.Chip.
type infoReader interface {
	AsyncReadInfoChanges(r gpioplex.AsyncReader, buf []byte, h func(gpioplex.InfoChanges, error)) error
}

// readInfoChanges forwards the changes read from c to changes until ctx is
// done or the stream fails, in which case the error is sent to errs.
func readInfoChanges(ctx context.Context, r gpioplex.AsyncReader, c infoReader, changes chan<- infoChange, errs chan<- error) error {
	buf := record.NewBuffer(16 * uapi.SizeofLineInfoChanged)
	report := func(err error) {
		select {
		case errs <- fmt.Errorf("error reading line info: %w", err):
		default:
		}
	}
	var read func() error
	read = func() error {
		return c.AsyncReadInfoChanges(r, buf, func(w gpioplex.InfoChanges, err error) {
			if err != nil {
				if !errors.Is(err, reactor.ErrCanceled) {
					report(err)
				}
				return
			}
			for lic := range w.All() {
				select {
				case changes <- infoChange{
					info:      gpioplex.NewLineInfo(&lic.Info),
					typ:       lic.Type,
					timestamp: time.Duration(lic.Timestamp),
				}:
				case <-ctx.Done():
					return
				}
			}
			if err := read(); err != nil && !errors.Is(err, gpioplex.ErrClosed) {
				report(err)
			}
		})
	}
	return read()
}
