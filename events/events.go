// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package events broadcasts controller lifecycle notifications to observers
// such as metrics and the relay mirror.
//
// Delivery is asynchronous and never feeds back into control flow.
package events

import (
	"github.com/kelindar/event"
)

// Event types.
const (
	TypeDeviceConnected uint32 = iota + 1
	TypeDeviceDisconnected
	TypeResynced
	TypeEdgeReceived
	TypeLEDsChanged
)

// DeviceConnected is published when a joystick is registered.
type DeviceConnected struct {
	Key  string
	Path string
}

// Type returns the event type.
func (e DeviceConnected) Type() uint32 { return TypeDeviceConnected }

// DeviceDisconnected is published when a joystick is deregistered.
type DeviceDisconnected struct {
	Key  string
	Path string
}

// Type returns the event type.
func (e DeviceDisconnected) Type() uint32 { return TypeDeviceDisconnected }

// Resynced is published after each full scan of the device directory.
type Resynced struct {
	Dir string
}

// Type returns the event type.
func (e Resynced) Type() uint32 { return TypeResynced }

// EdgeReceived is published for each GPIO edge event.
type EdgeReceived struct {
	Offset int
	Rising bool
}

// Type returns the event type.
func (e EdgeReceived) Type() uint32 { return TypeEdgeReceived }

// LEDsChanged is published with the desired LED states whenever they change.
type LEDsChanged struct {
	States []bool
}

// Type returns the event type.
func (e LEDsChanged) Type() uint32 { return TypeLEDsChanged }

// Event is implemented by all published events.
type Event interface {
	Type() uint32
}

// Bus wraps a kelindar/event dispatcher.
type Bus struct {
	d *event.Dispatcher
}

// New creates a Bus.
func New() *Bus {
	return &Bus{d: event.NewDispatcher()}
}

// Close stops delivery to all subscribers.
func (b *Bus) Close() error {
	return b.d.Close()
}

// Publish delivers ev to all subscribers of its type.
//
// A nil Bus discards the event.
func Publish[T Event](b *Bus, ev T) {
	if b == nil {
		return
	}
	event.Publish(b.d, ev)
}

// Subscribe registers h for events of type T, returning a function that
// cancels the subscription.
func Subscribe[T Event](b *Bus, h func(T)) func() {
	return event.Subscribe(b.d, h)
}
