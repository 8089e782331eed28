// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package app

import (
	"log/slog"

	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/events"
	"github.com/warthog618/gpioplex/hotplug"
	"github.com/warthog618/gpioplex/metrics"
)

// Option defines the interface required to provide an App option.
type Option interface {
	applyOption(*Options)
}

// Options contains the options for an App.
type Options struct {
	logger  *slog.Logger
	bus     *events.Bus
	metrics *metrics.Metrics
	open    Opener
	hotplug []hotplug.Option

	// edgeReader wraps the reader of the input line events
	edgeReader func(gpioplex.AsyncReader) gpioplex.AsyncReader
}

// LoggerOption specifies the logger used by the App.
type LoggerOption struct {
	l *slog.Logger
}

// WithLogger specifies the logger used by the App and its components.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyOption(ao *Options) {
	ao.logger = o.l
}

// BusOption specifies the bus lifecycle events are published to.
type BusOption struct {
	b *events.Bus
}

// WithBus specifies the bus lifecycle events are published to.
func WithBus(b *events.Bus) BusOption {
	return BusOption{b}
}

func (o BusOption) applyOption(ao *Options) {
	ao.bus = o.b
}

// MetricsOption specifies the collectors updated by the App.
type MetricsOption struct {
	m *metrics.Metrics
}

// WithMetrics specifies the collectors updated by the App.
func WithMetrics(m *metrics.Metrics) MetricsOption {
	return MetricsOption{m}
}

func (o MetricsOption) applyOption(ao *Options) {
	ao.metrics = o.m
}

// OpenerOption replaces the function used to open joysticks.
type OpenerOption Opener

// WithOpener replaces the function used to open joysticks.
func WithOpener(open Opener) OpenerOption {
	return OpenerOption(open)
}

func (o OpenerOption) applyOption(ao *Options) {
	ao.open = Opener(o)
}

// HotplugOption passes options through to the hot-plug watcher.
type HotplugOption []hotplug.Option

// WithHotplugOptions passes options through to the hot-plug watcher.
func WithHotplugOptions(options ...hotplug.Option) HotplugOption {
	return HotplugOption(options)
}

func (o HotplugOption) applyOption(ao *Options) {
	ao.hotplug = append(ao.hotplug, o...)
}
