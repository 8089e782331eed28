// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package gpioplex

import "github.com/warthog618/gpioplex/uapi"

// ChipOption defines the interface required to provide a Chip option.
type ChipOption interface {
	applyChipOption(*ChipOptions)
}

// ChipOptions contains the options for a Chip.
type ChipOptions struct {
	consumer string
}

// ConsumerOption defines the consumer label for a line.
type ConsumerOption string

// WithConsumer provides the consumer label for the line.
//
// When applied to a chip it provides the default consumer label for all lines
// requested by the chip.
func WithConsumer(consumer string) ConsumerOption {
	return ConsumerOption(consumer)
}

func (o ConsumerOption) applyChipOption(c *ChipOptions) {
	c.consumer = string(o)
}

func (o ConsumerOption) applyLineOption(l *LineOptions) {
	l.consumer = string(o)
}

// LineOption defines the interface required to provide an option for Lines.
type LineOption interface {
	applyLineOption(*LineOptions)
}

// LineOptions contains the options for a set of Lines.
type LineOptions struct {
	consumer        string
	flags           uapi.LineFlag
	eventBufferSize int
}

// FlagOption sets line flags, replacing any conflicting flags.
type FlagOption struct {
	set   uapi.LineFlag
	clear uapi.LineFlag
}

func (o FlagOption) applyLineOption(l *LineOptions) {
	l.flags &^= o.clear
	l.flags |= o.set
}

const (
	directionFlags = uapi.LineFlagInput | uapi.LineFlagOutput
	biasFlags      = uapi.LineFlagBiasPullUp | uapi.LineFlagBiasPullDown | uapi.LineFlagBiasDisabled
)

var (
	// AsInput indicates that the lines be requested as inputs.
	AsInput = FlagOption{set: uapi.LineFlagInput, clear: directionFlags}

	// WithRisingEdge enables edge detection on rising edges.
	WithRisingEdge = FlagOption{set: uapi.LineFlagInput | uapi.LineFlagEdgeRising, clear: uapi.LineFlagOutput}

	// WithFallingEdge enables edge detection on falling edges.
	WithFallingEdge = FlagOption{set: uapi.LineFlagInput | uapi.LineFlagEdgeFalling, clear: uapi.LineFlagOutput}

	// WithBothEdges enables edge detection on both edges.
	WithBothEdges = FlagOption{set: uapi.LineFlagInput | uapi.LineFlagEdgeBoth, clear: uapi.LineFlagOutput}

	// WithPullUp enables a pull-up bias on the lines.
	WithPullUp = FlagOption{set: uapi.LineFlagBiasPullUp, clear: biasFlags}

	// WithPullDown enables a pull-down bias on the lines.
	WithPullDown = FlagOption{set: uapi.LineFlagBiasPullDown, clear: biasFlags}

	// WithBiasDisabled disables bias on the lines.
	WithBiasDisabled = FlagOption{set: uapi.LineFlagBiasDisabled, clear: biasFlags}

	// AsActiveLow inverts the logical value of the lines.
	AsActiveLow = FlagOption{set: uapi.LineFlagActiveLow}
)

// EventBufferSizeOption sets the kernel event buffer size.
type EventBufferSizeOption int

// WithEventBufferSize suggests the number of events the kernel buffers for
// the request. Zero selects the kernel default.
func WithEventBufferSize(size int) EventBufferSizeOption {
	return EventBufferSizeOption(size)
}

func (o EventBufferSizeOption) applyLineOption(l *LineOptions) {
	l.eventBufferSize = int(o)
}
