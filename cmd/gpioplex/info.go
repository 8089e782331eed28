// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/config"
	"github.com/warthog618/gpioplex/uapi"
)

func init() {
	infoCmd.Flags().BoolP("all", "a", false, "report all lines of the chip, not only those configured")
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info [flags] [offset]...",
	Short: "Info about the configured lines",
	Long: `Print information about the GPIO lines used by gpioplex, or the specified lines,
including the consumer of any line that is in use.`,
	RunE:                  info,
	DisableFlagsInUseLine: true,
}

// errNoChip indicates GPIO is disabled in the configuration.
var errNoChip = errors.New("no GPIO chip configured")

func info(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.GPIO.Chip == "" {
		return errNoChip
	}
	c, err := gpioplex.OpenChip(cfg.GPIO.Chip)
	if err != nil {
		return err
	}
	defer c.Close()
	oo, err := selectOffsets(cmd, cfg, c, args)
	if err != nil {
		return err
	}
	fmt.Printf("%s [%s] - %d lines:\n", c.Name, c.Label, c.Lines())
	for _, o := range oo {
		li, err := c.LineInfo(o)
		if err != nil {
			return fmt.Errorf("line %d: %w", o, err)
		}
		fmt.Println(lineInfoString(li))
	}
	return nil
}

// selectOffsets returns the lines named in args, else all the lines of the
// chip if --all is set, else the lines in the configuration.
func selectOffsets(cmd *cobra.Command, cfg config.Config, c *gpioplex.Chip, args []string) ([]int, error) {
	if len(args) > 0 {
		return parseOffsets(args)
	}
	if all, _ := cmd.Flags().GetBool("all"); all {
		oo := make([]int, c.Lines())
		for i := range oo {
			oo[i] = i
		}
		return oo, nil
	}
	oo := append([]int(nil), cfg.GPIO.Inputs...)
	return append(oo, cfg.GPIO.Outputs...), nil
}

func parseOffsets(args []string) ([]int, error) {
	oo := make([]int, 0, len(args))
	for _, arg := range args {
		o, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("can't parse offset '%s'", arg)
		}
		oo = append(oo, int(o))
	}
	return oo, nil
}

func lineInfoString(li gpioplex.LineInfo) string {
	if len(li.Name) == 0 {
		li.Name = "unnamed"
	}
	if li.Flags.IsUsed() {
		if len(li.Consumer) == 0 {
			li.Consumer = "kernel"
		}
		if strings.Contains(li.Consumer, " ") {
			li.Consumer = "\"" + li.Consumer + "\""
		}
	} else {
		li.Consumer = "unused"
	}
	dirn := "input"
	if li.Flags.IsOutput() {
		dirn = "output"
	}
	active := "active-high"
	if li.Flags.IsActiveLow() {
		active = "active-low"
	}
	flags := []string(nil)
	for _, f := range lineFlagNames {
		if li.Flags&f.flag == f.flag {
			flags = append(flags, f.name)
		}
	}
	flstr := ""
	if len(flags) > 0 {
		flstr = "[" + strings.Join(flags, " ") + "]"
	}
	return fmt.Sprintf("\tline %3d:%12s%12s%8s%13s%s",
		li.Offset, li.Name, li.Consumer, dirn, active, flstr)
}

var lineFlagNames = []struct {
	flag uapi.LineFlag
	name string
}{
	{uapi.LineFlagUsed, "used"},
	{uapi.LineFlagOpenDrain, "open-drain"},
	{uapi.LineFlagOpenSource, "open-source"},
	{uapi.LineFlagBiasPullUp, "pull-up"},
	{uapi.LineFlagBiasPullDown, "pull-down"},
	{uapi.LineFlagBiasDisabled, "bias-disabled"},
	{uapi.LineFlagEdgeRising, "rising-edge"},
	{uapi.LineFlagEdgeFalling, "falling-edge"},
}
