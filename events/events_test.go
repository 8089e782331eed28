// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package events_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpioplex/events"
)

func TestPublishSubscribe(t *testing.T) {
	bus := events.New()
	defer bus.Close()
	connected := make(chan events.DeviceConnected, 1)
	unsub := events.Subscribe(bus, func(e events.DeviceConnected) {
		connected <- e
	})
	defer unsub()
	resynced := make(chan events.Resynced, 1)
	unsub2 := events.Subscribe(bus, func(e events.Resynced) {
		resynced <- e
	})
	defer unsub2()

	xev := events.DeviceConnected{Key: "5:1234", Path: "/dev/input/js0"}
	events.Publish(bus, xev)
	select {
	case ev := <-connected:
		assert.Equal(t, xev, ev)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for event")
	}
	// other types are not delivered to this subscriber
	select {
	case <-resynced:
		assert.Fail(t, "unexpected event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := events.New()
	defer bus.Close()
	ch := make(chan events.LEDsChanged, 2)
	unsub := events.Subscribe(bus, func(e events.LEDsChanged) {
		ch <- e
	})
	events.Publish(bus, events.LEDsChanged{States: []bool{true}})
	select {
	case ev := <-ch:
		assert.Equal(t, []bool{true}, ev.States)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for event")
	}
	unsub()
	events.Publish(bus, events.LEDsChanged{States: []bool{false}})
	select {
	case <-ch:
		assert.Fail(t, "event delivered after unsubscribe")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestNilBus(t *testing.T) {
	var bus *events.Bus
	assert.NotPanics(t, func() {
		events.Publish(bus, events.Resynced{Dir: "/dev/input"})
	})
}

func TestTypes(t *testing.T) {
	patterns := []struct {
		name string
		ev   events.Event
		typ  uint32
	}{
		{"connected", events.DeviceConnected{}, events.TypeDeviceConnected},
		{"disconnected", events.DeviceDisconnected{}, events.TypeDeviceDisconnected},
		{"resynced", events.Resynced{}, events.TypeResynced},
		{"edge", events.EdgeReceived{}, events.TypeEdgeReceived},
		{"leds", events.LEDsChanged{}, events.TypeLEDsChanged},
	}
	for _, p := range patterns {
		tf := func(t *testing.T) {
			assert.Equal(t, p.typ, p.ev.Type())
		}
		t.Run(p.name, tf)
	}
}
