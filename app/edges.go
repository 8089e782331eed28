// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package app

import (
	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/events"
	"github.com/warthog618/gpioplex/metrics"
	"github.com/warthog618/gpioplex/uapi"
)

// EdgeHook is called for an actionable edge event.
type EdgeHook func(e *uapi.LineEvent)

// EdgeDispatcher routes GPIO edge events to hooks by line offset.
//
// Only rising edges are actionable. Falling edges, and edges on lines
// without a hook, are counted and otherwise ignored.
type EdgeDispatcher struct {
	rising  map[uint32]EdgeHook
	bus     *events.Bus
	metrics *metrics.Metrics
}

// NewEdgeDispatcher creates a dispatcher calling the hooks on rising edges
// of the corresponding line offsets.
//
// bus and m may be nil.
func NewEdgeDispatcher(rising map[int]EdgeHook, bus *events.Bus, m *metrics.Metrics) *EdgeDispatcher {
	d := EdgeDispatcher{
		rising:  make(map[uint32]EdgeHook, len(rising)),
		bus:     bus,
		metrics: m,
	}
	for offset, h := range rising {
		d.rising[uint32(offset)] = h
	}
	return &d
}

// Dispatch handles a window of edge events in order, returning the number of
// hooks called.
func (d *EdgeDispatcher) Dispatch(evts gpioplex.EdgeEvents) int {
	called := 0
	for e := range evts.All() {
		rising := e.ID == uapi.LineEventRisingEdge
		d.metrics.Edge(rising)
		events.Publish(d.bus, events.EdgeReceived{Offset: int(e.Offset), Rising: rising})
		if !rising {
			continue
		}
		if h, ok := d.rising[e.Offset]; ok {
			h(e)
			called++
		}
	}
	return called
}
