// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package app

import (
	"errors"
	"fmt"

	"github.com/warthog618/gpioplex/charlie"
	"github.com/warthog618/gpioplex/uapi"
)

// Range is an inclusive range of LED indices.
type Range struct {
	First int
	Last  int
}

// AxisBinding maps the sign of an axis position onto ranges of LEDs.
//
// The Negative range is lit while the axis is below centre and the Positive
// range while it is above.
type AxisBinding struct {
	// Odd selects the odd numbered axes, else the even numbered axes.
	Odd bool

	Negative Range
	Positive Range
}

// Bindings map joystick events onto LED states.
type Bindings struct {
	// Buttons maps a button number to the LED lit while it is pressed.
	Buttons map[uint8]int

	Axes []AxisBinding
}

// ErrInvalidBinding indicates a binding refers to a non-existent LED.
var ErrInvalidBinding = errors.New("invalid binding")

// DefaultBindings returns the bindings for the 20 LED matrix.
func DefaultBindings() Bindings {
	return Bindings{
		Buttons: map[uint8]int{0: 5, 1: 10, 3: 0, 4: 15},
		Axes: []AxisBinding{
			{Odd: true, Negative: Range{0, 4}, Positive: Range{10, 14}},
			{Odd: false, Negative: Range{15, 19}, Positive: Range{5, 9}},
		},
	}
}

// Validate checks that all bound LEDs exist in an array of the given length.
func (b Bindings) Validate(leds int) error {
	for btn, n := range b.Buttons {
		if n < 0 || n >= leds {
			return fmt.Errorf("button %d: LED %d: %w", btn, n, ErrInvalidBinding)
		}
	}
	for i, ab := range b.Axes {
		for _, r := range []Range{ab.Negative, ab.Positive} {
			if r.First < 0 || r.Last < r.First || r.Last >= leds {
				return fmt.Errorf("axis binding %d: LEDs %d-%d: %w", i, r.First, r.Last, ErrInvalidBinding)
			}
		}
	}
	return nil
}

// Apply updates the LEDs to reflect the event, returning true if any LED
// changed state.
//
// Events reporting initial state are applied like any other, so callers that
// want to ignore them must filter them out.
func (b Bindings) Apply(leds *charlie.Array, e *uapi.JSEvent) bool {
	switch e.Type.Kind() {
	case uapi.JSEventButton:
		n, ok := b.Buttons[e.Number]
		if !ok {
			return false
		}
		return setRange(leds, Range{n, n}, e.Value != 0)
	case uapi.JSEventAxis:
		odd := e.Number%2 == 1
		changed := false
		for _, ab := range b.Axes {
			if ab.Odd != odd {
				continue
			}
			if setRange(leds, ab.Negative, e.Value < 0) {
				changed = true
			}
			if setRange(leds, ab.Positive, e.Value > 0) {
				changed = true
			}
		}
		return changed
	}
	return false
}

func setRange(leds *charlie.Array, r Range, lit bool) bool {
	changed := false
	for n := r.First; n <= r.Last && n < leds.Len(); n++ {
		if leds.Lit(n) != lit {
			leds.Set(n, lit)
			changed = true
		}
	}
	return changed
}
