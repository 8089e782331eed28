// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warthog618/gpioplex/app"
	"github.com/warthog618/gpioplex/charlie"
	"github.com/warthog618/gpioplex/uapi"
)

func lit(leds *charlie.Array) []int {
	var ll []int
	for n := 0; n < leds.Len(); n++ {
		if leds.Lit(n) {
			ll = append(ll, n)
		}
	}
	return ll
}

func TestBindingsButton(t *testing.T) {
	b := app.DefaultBindings()
	leds := charlie.NewArray(charlie.DefaultPairs)

	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: 0, Value: 1}))
	assert.Equal(t, []int{5}, lit(leds))
	// repeated press changes nothing
	assert.False(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: 0, Value: 1}))

	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: 0, Value: 0}))
	assert.Empty(t, lit(leds))

	patterns := []struct {
		button uint8
		led    int
	}{
		{0, 5},
		{1, 10},
		{3, 0},
		{4, 15},
	}
	for _, p := range patterns {
		b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: p.button, Value: 1})
		assert.Equal(t, []int{p.led}, lit(leds), p.button)
		b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: p.button, Value: 0})
	}

	// unbound button
	assert.False(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventButton, Number: 2, Value: 1}))
	assert.Empty(t, lit(leds))
}

func TestBindingsAxis(t *testing.T) {
	b := app.DefaultBindings()
	leds := charlie.NewArray(charlie.DefaultPairs)
	for n := 5; n < 10; n++ {
		leds.Set(n, true)
	}
	leds.Set(15, true)
	leds.Set(12, true)

	// odd axis, negative
	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 1, Value: -1200}))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 15}, lit(leds))

	// odd axis, positive
	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 3, Value: 1}))
	assert.Equal(t, []int{5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, lit(leds))

	// odd axis, centred
	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 1, Value: 0}))
	assert.Equal(t, []int{5, 6, 7, 8, 9, 15}, lit(leds))

	// even axis, negative
	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 0, Value: -5}))
	assert.Equal(t, []int{15, 16, 17, 18, 19}, lit(leds))

	// even axis, positive
	assert.True(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 2, Value: 32767}))
	assert.Equal(t, []int{5, 6, 7, 8, 9}, lit(leds))
	assert.False(t, b.Apply(leds, &uapi.JSEvent{Type: uapi.JSEventAxis, Number: 2, Value: 100}))
}

func TestBindingsUnknownType(t *testing.T) {
	b := app.DefaultBindings()
	leds := charlie.NewArray(charlie.DefaultPairs)
	assert.False(t, b.Apply(leds, &uapi.JSEvent{Type: 0x04, Number: 0, Value: 1}))
	assert.Empty(t, lit(leds))
}

func TestBindingsValidate(t *testing.T) {
	assert.Nil(t, app.DefaultBindings().Validate(20))
	assert.ErrorIs(t, app.DefaultBindings().Validate(19), app.ErrInvalidBinding)

	b := app.Bindings{Buttons: map[uint8]int{0: -1}}
	assert.ErrorIs(t, b.Validate(20), app.ErrInvalidBinding)

	b = app.Bindings{Axes: []app.AxisBinding{{Negative: app.Range{3, 2}, Positive: app.Range{0, 0}}}}
	assert.ErrorIs(t, b.Validate(20), app.ErrInvalidBinding)
}
