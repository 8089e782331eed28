// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

// Package relay mirrors the LED states onto the coils of a Modbus relay bank.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/warthog618/gpioplex/events"
)

// CoilWriter writes a run of coils.
//
// It is satisfied by modbus.Client.
type CoilWriter interface {
	WriteMultipleCoils(address, quantity uint16, value []byte) ([]byte, error)
}

// Config locates the relay bank.
type Config struct {
	Endpoint string
	Unit     uint8
	Timeout  time.Duration
}

// ErrNoEndpoint indicates the relay has no endpoint configured.
var ErrNoEndpoint = errors.New("relay endpoint required")

// Conn is a Modbus TCP connection to a relay bank.
type Conn struct {
	modbus.Client
	h *modbus.TCPClientHandler
}

// Dial connects to the relay bank.
func Dial(cfg Config) (*Conn, error) {
	if cfg.Endpoint == "" {
		return nil, ErrNoEndpoint
	}
	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.Unit
	if err := h.Connect(); err != nil {
		return nil, err
	}
	return &Conn{Client: modbus.NewClient(h), h: h}, nil
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.h.Close()
}

// Relay writes the most recent LED states to consecutive coils.
//
// States are written at most once per interval, and only if they have
// changed. Failed writes are retried on the next interval.
type Relay struct {
	w        CoilWriter
	address  uint16
	interval time.Duration
	logger   *slog.Logger
	unsub    func()

	// mu covers fields that follow
	mu     sync.Mutex
	states []bool
	dirty  bool
}

// New creates a Relay writing to the coils starting at address.
func New(w CoilWriter, address uint16, interval time.Duration, logger *slog.Logger) *Relay {
	return &Relay{
		w:        w,
		address:  address,
		interval: interval,
		logger:   logger,
	}
}

// Attach follows the LED states published on the bus.
func (r *Relay) Attach(bus *events.Bus) {
	r.unsub = events.Subscribe(bus, func(e events.LEDsChanged) {
		r.Update(e.States)
	})
}

// Update records the states to be written.
func (r *Relay) Update(states []bool) {
	r.mu.Lock()
	r.states = append(r.states[:0], states...)
	r.dirty = true
	r.mu.Unlock()
}

// Flush writes the states if they have changed since the last write.
func (r *Relay) Flush() error {
	r.mu.Lock()
	if !r.dirty || len(r.states) == 0 {
		r.mu.Unlock()
		return nil
	}
	n := len(r.states)
	payload := packBits(r.states)
	r.dirty = false
	r.mu.Unlock()
	if _, err := r.w.WriteMultipleCoils(r.address, uint16(n), payload); err != nil {
		r.mu.Lock()
		r.dirty = true
		r.mu.Unlock()
		return err
	}
	return nil
}

// Run flushes the states every interval until ctx is done, then turns all
// the coils off.
func (r *Relay) Run(ctx context.Context) {
	if r.unsub != nil {
		defer r.unsub()
	}
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			off := make([]bool, len(r.states))
			r.mu.Unlock()
			r.Update(off)
			if err := r.Flush(); err != nil {
				r.logger.Warn("relay release failed", "err", err)
			}
			return
		case <-t.C:
			if err := r.Flush(); err != nil {
				r.logger.Warn("relay write failed", "err", err)
			}
		}
	}
}

// packBits packs the states into bytes, least significant bit first, as
// required for a coil write.
func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, v := range bits {
		if v {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
