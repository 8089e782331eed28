// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package metrics exposes controller counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warthog618/gpioplex/events"
)

const namespace = "gpioplex"

// Record stream labels.
const (
	StreamJoystick = "joystick"
	StreamGPIO     = "gpio"
)

// Metrics holds the controller collectors.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	records       *prometheus.CounterVec
	connects      prometheus.Counter
	disconnects   prometheus.Counter
	connected     prometheus.Gauge
	resyncs       prometheus.Counter
	passes        prometheus.Counter
	pulses        prometheus.Counter
	edges         *prometheus.CounterVec
	unsubscribers []func()
}

// New creates the collectors and registers them with a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Records parsed from event streams",
		}, []string{"stream"}),
		connects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "joystick",
			Name:      "connects_total",
			Help:      "Joysticks registered",
		}),
		disconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "joystick",
			Name:      "disconnects_total",
			Help:      "Joysticks deregistered",
		}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "joystick",
			Name:      "connected",
			Help:      "Joysticks currently registered",
		}),
		resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hotplug",
			Name:      "resyncs_total",
			Help:      "Full scans of the device directory",
		}),
		passes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "passes_total",
			Help:      "Charlieplex scan passes",
		}),
		pulses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "pulses_total",
			Help:      "LED pulses driven",
		}),
		edges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gpio",
			Name:      "edges_total",
			Help:      "GPIO edge events received",
		}, []string{"edge"}),
	}
}

// Handler returns an HTTP handler serving the collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Gatherer returns the registry holding the collectors.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

// Attach subscribes the lifecycle collectors to the bus.
func (m *Metrics) Attach(bus *events.Bus) {
	m.unsubscribers = append(m.unsubscribers,
		events.Subscribe(bus, func(events.DeviceConnected) {
			m.connects.Inc()
			m.connected.Inc()
		}),
		events.Subscribe(bus, func(events.DeviceDisconnected) {
			m.disconnects.Inc()
			m.connected.Dec()
		}),
		events.Subscribe(bus, func(events.Resynced) {
			m.resyncs.Inc()
		}),
	)
}

// Detach cancels any bus subscriptions.
func (m *Metrics) Detach() {
	for _, u := range m.unsubscribers {
		u()
	}
	m.unsubscribers = nil
}

// Records counts n records parsed from the named stream.
func (m *Metrics) Records(stream string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.records.WithLabelValues(stream).Add(float64(n))
}

// Pass counts a completed scan pass that drove the given number of pulses.
func (m *Metrics) Pass(pulses int) {
	if m == nil {
		return
	}
	m.passes.Inc()
	m.pulses.Add(float64(pulses))
}

// Edge counts a GPIO edge event.
func (m *Metrics) Edge(rising bool) {
	if m == nil {
		return
	}
	if rising {
		m.edges.WithLabelValues("rising").Inc()
		return
	}
	m.edges.WithLabelValues("falling").Inc()
}
