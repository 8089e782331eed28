// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package charlie multiplexes a Charlieplexed LED matrix.
//
// A Charlieplexed matrix of N lines drives up to N(N-1) LEDs, each connected
// between an ordered pair of lines. Only one pair may be driven at a time or
// LEDs sharing a line ghost, so the scheduler pulses each lit LED in turn,
// returning every line to high impedance between pulses, and relies on
// persistence of vision for the display.
package charlie

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/warthog618/gpioplex/uapi"
)

// Pair identifies the lines an LED is connected between, as indices into the
// requested output lines.
type Pair struct {
	Anode   int
	Cathode int
}

// DefaultPairs is the LED ordering of a 20 LED matrix on 5 lines.
var DefaultPairs = []Pair{
	{0, 1}, {0, 2}, {0, 3}, {0, 4}, {1, 2},
	{1, 0}, {2, 0}, {3, 0}, {4, 0}, {2, 1},
	{1, 3}, {1, 4}, {2, 3}, {2, 4}, {3, 4},
	{3, 1}, {4, 1}, {3, 2}, {4, 2}, {4, 3},
}

// ErrInvalidPair indicates a pair is not usable on the matrix.
var ErrInvalidPair = errors.New("invalid LED pair")

// Validate checks the pairs are distinct lines within a matrix of n lines.
func Validate(pairs []Pair, lines int) error {
	for i, p := range pairs {
		if p.Anode < 0 || p.Anode >= lines || p.Cathode < 0 || p.Cathode >= lines || p.Anode == p.Cathode {
			return fmt.Errorf("LED %d %v on %d lines: %w", i, p, lines, ErrInvalidPair)
		}
	}
	return nil
}

// Array is the desired state of a set of LEDs.
//
// The pairs are fixed at construction, only the lit state changes. Array is
// not safe for concurrent use.
type Array struct {
	pairs []Pair
	lit   []bool
}

// NewArray creates an Array with all LEDs off.
func NewArray(pairs []Pair) *Array {
	return &Array{
		pairs: append([]Pair(nil), pairs...),
		lit:   make([]bool, len(pairs)),
	}
}

// Len returns the number of LEDs.
func (a *Array) Len() int {
	return len(a.pairs)
}

// Pair returns the pair of the nth LED.
func (a *Array) Pair(n int) Pair {
	return a.pairs[n]
}

// Lit returns true if the nth LED is desired lit.
func (a *Array) Lit(n int) bool {
	return a.lit[n]
}

// Set sets the desired state of the nth LED.
//
// Out of range LEDs are ignored.
func (a *Array) Set(n int, lit bool) {
	if n >= 0 && n < len(a.lit) {
		a.lit[n] = lit
	}
}

// SetRange sets the desired state of LEDs first to last inclusive.
func (a *Array) SetRange(first, last int, lit bool) {
	for n := first; n <= last; n++ {
		a.Set(n, lit)
	}
}

// Snapshot returns a copy of the desired states.
func (a *Array) Snapshot() []bool {
	return append([]bool(nil), a.lit...)
}

// Matrix is the set of lines the LEDs are connected to.
//
// It is satisfied by *gpioplex.Lines.
type Matrix interface {
	Reconfigure(*uapi.LineConfig) error
	SetValues(uapi.LineValues) error
}

// EnableConfig returns the config that makes the anode and cathode of p
// outputs and leaves every other line an input.
func EnableConfig(p Pair) uapi.LineConfig {
	lc := uapi.LineConfig{Flags: uapi.LineFlagOutput}
	lc.AddAttribute(uapi.LineConfigAttribute{
		Attr: uapi.LineFlagInput.Encode(),
		Mask: ^uapi.NewLineBits(p.Anode, p.Cathode),
	})
	return lc
}

// EnableValues returns the values that drive the anode of p high and the
// cathode low.
func EnableValues(p Pair) uapi.LineValues {
	return uapi.LineValues{
		Bits: uapi.NewLineBits(p.Anode),
		Mask: uapi.NewLineBits(p.Anode, p.Cathode),
	}
}

// DisableConfig returns the config that returns every line to an input.
func DisableConfig() uapi.LineConfig {
	return uapi.LineConfig{Flags: uapi.LineFlagInput}
}

// Dispatcher serializes tasks.
//
// It is satisfied by *reactor.Strand.
type Dispatcher interface {
	Dispatch(func())
}

// Scheduler pulses the lit LEDs of an Array on a Matrix.
//
// The Array must only be modified from the same Dispatcher the Scheduler
// runs on.
type Scheduler struct {
	leds    *Array
	m       Matrix
	strand  Dispatcher
	fatal   func(error)
	onPass  func(pulses int)
	enable  []uapi.LineConfig
	values  []uapi.LineValues
	disable uapi.LineConfig
	stopped atomic.Bool
}

// NewScheduler creates a Scheduler for the LEDs on m.
//
// fatal is called, from the Dispatcher, if the matrix cannot be driven. The
// scheduler stops after reporting an error.
func NewScheduler(leds *Array, m Matrix, strand Dispatcher, fatal func(error), options ...Option) *Scheduler {
	so := Options{}
	for _, o := range options {
		o.applyOption(&so)
	}
	s := Scheduler{
		leds:    leds,
		m:       m,
		strand:  strand,
		fatal:   fatal,
		onPass:  so.onPass,
		enable:  make([]uapi.LineConfig, leds.Len()),
		values:  make([]uapi.LineValues, leds.Len()),
		disable: DisableConfig(),
	}
	for i := range s.enable {
		s.enable[i] = EnableConfig(leds.Pair(i))
		s.values[i] = EnableValues(leds.Pair(i))
	}
	return &s
}

// Pass pulses each lit LED once, in Array order, returning the number of
// LEDs pulsed.
//
// Every pulse is followed by a return to high impedance, so at most one pair
// is ever driven.
func (s *Scheduler) Pass() (int, error) {
	pulses := 0
	for i := range s.enable {
		if !s.leds.Lit(i) {
			continue
		}
		if err := s.pulse(i); err != nil {
			return pulses, err
		}
		pulses++
	}
	if s.onPass != nil {
		s.onPass(pulses)
	}
	return pulses, nil
}

func (s *Scheduler) pulse(i int) error {
	if err := s.m.Reconfigure(&s.enable[i]); err != nil {
		return fmt.Errorf("enable LED %d: %w", i, err)
	}
	err := s.m.SetValues(s.values[i])
	// always attempt to release the pair, even if driving it failed
	if derr := s.m.Reconfigure(&s.disable); derr != nil && err == nil {
		err = derr
	}
	if err != nil {
		return fmt.Errorf("pulse LED %d: %w", i, err)
	}
	return nil
}

// Start begins running a pass on every turn of the Dispatcher.
func (s *Scheduler) Start() {
	s.strand.Dispatch(s.run)
}

// Stop prevents further passes.
//
// A pass in progress completes.
func (s *Scheduler) Stop() {
	s.stopped.Store(true)
}

func (s *Scheduler) run() {
	if s.stopped.Load() {
		return
	}
	if _, err := s.Pass(); err != nil {
		s.stopped.Store(true)
		s.fatal(err)
		return
	}
	s.strand.Dispatch(s.run)
}

// Option defines the interface required to provide a Scheduler option.
type Option interface {
	applyOption(*Options)
}

// Options contains the options for a Scheduler.
type Options struct {
	onPass func(int)
}

// PassHookOption is called after every pass with the number of pulses.
type PassHookOption func(int)

// WithPassHook provides a function called after every pass with the number
// of LEDs pulsed.
func WithPassHook(fn func(pulses int)) PassHookOption {
	return PassHookOption(fn)
}

func (o PassHookOption) applyOption(so *Options) {
	so.onPass = o
}
