// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package registry tracks open hot-pluggable devices by the identity of their
// device node.
//
// A Registry is not safe for concurrent use. Confine it to a single strand.
package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sys/unix"
)

// Key identifies a device node by the device and inode numbers of the node,
// so the same node reached by different paths collides.
type Key struct {
	Dev uint64
	Ino uint64
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Dev, k.Ino)
}

func (k Key) compare(o Key) int {
	if k.Dev != o.Dev {
		if k.Dev < o.Dev {
			return -1
		}
		return 1
	}
	switch {
	case k.Ino < o.Ino:
		return -1
	case k.Ino > o.Ino:
		return 1
	}
	return 0
}

// KeyOf returns the Key of the node at path.
func KeyOf(path string) (Key, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Key{}, err
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}

// KeyOfFd returns the Key of the node open as fd.
func KeyOfFd(fd int) (Key, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return Key{}, err
	}
	return Key{Dev: uint64(st.Dev), Ino: uint64(st.Ino)}, nil
}

// Handle is an open device owned by a Registry.
//
// The LogValue of the handle is used to report connection and disconnection.
type Handle interface {
	slog.LogValuer
	Close() error
}

// Observer is notified of changes in registry membership.
type Observer interface {
	Connected(k Key, h Handle)
	Disconnected(k Key, h Handle)
}

// Registry maps device keys to open handles.
type Registry[H Handle] struct {
	entries   map[Key]H
	logger    *slog.Logger
	observers []Observer
}

// New creates an empty Registry.
func New[H Handle](options ...Option) *Registry[H] {
	ro := Options{logger: slog.Default()}
	for _, o := range options {
		o.applyOption(&ro)
	}
	return &Registry[H]{
		entries:   make(map[Key]H),
		logger:    ro.logger,
		observers: ro.observers,
	}
}

// LookupOrRegister returns the handle registered for k, opening and
// registering it if k is not yet present.
//
// The returned bool is true if the handle was newly registered. open is not
// called if k is already registered. If open fails nothing is registered and
// the error is returned.
func (r *Registry[H]) LookupOrRegister(k Key, open func() (H, error)) (H, bool, error) {
	if h, ok := r.entries[k]; ok {
		return h, false, nil
	}
	h, err := open()
	if err != nil {
		var zero H
		return zero, false, err
	}
	r.entries[k] = h
	r.logger.Info("connected", "key", k, "device", h)
	for _, o := range r.observers {
		o.Connected(k, h)
	}
	return h, true, nil
}

// Get returns the handle registered for k.
func (r *Registry[H]) Get(k Key) (H, bool) {
	h, ok := r.entries[k]
	return h, ok
}

// Remove deregisters and closes the handle for k.
//
// Removing an absent key is a no-op.
func (r *Registry[H]) Remove(k Key) {
	h, ok := r.entries[k]
	if !ok {
		return
	}
	delete(r.entries, k)
	h.Close()
	r.logger.Info("disconnected", "key", k, "device", h)
	for _, o := range r.observers {
		o.Disconnected(k, h)
	}
}

// Len returns the number of registered handles.
func (r *Registry[H]) Len() int {
	return len(r.entries)
}

// Keys returns the registered keys in ascending order.
func (r *Registry[H]) Keys() []Key {
	kk := make([]Key, 0, len(r.entries))
	for k := range r.entries {
		kk = append(kk, k)
	}
	slices.SortFunc(kk, Key.compare)
	return kk
}

// Close removes all registered handles.
func (r *Registry[H]) Close() {
	for _, k := range r.Keys() {
		r.Remove(k)
	}
}

// Option defines the interface required to provide a Registry option.
type Option interface {
	applyOption(*Options)
}

// Options contains the options for a Registry.
type Options struct {
	logger    *slog.Logger
	observers []Observer
}

// LoggerOption specifies the logger used to report membership changes.
type LoggerOption struct {
	l *slog.Logger
}

// WithLogger specifies the logger used to report membership changes.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyOption(ro *Options) {
	ro.logger = o.l
}

// ObserverOption adds an Observer to the Registry.
type ObserverOption struct {
	o Observer
}

// WithObserver adds an Observer to be notified of membership changes.
func WithObserver(o Observer) ObserverOption {
	return ObserverOption{o}
}

func (o ObserverOption) applyOption(ro *Options) {
	ro.observers = append(ro.observers, o.o)
}
