// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux

package gpioplex

import (
	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/uapi"
)

// EdgeEvents is the window of edge events returned by one read of a line
// request.
type EdgeEvents = record.Window[uapi.LineEvent, record.Fixed[uapi.LineEvent]]

// Lines represents a collection of requested lines.
type Lines struct {
	baseFd

	offsets []int
	chip    string
}

// Chip returns the name of the chip from which the lines were requested.
func (l *Lines) Chip() string {
	return l.chip
}

// Offsets returns the offsets of the lines, in request order.
//
// Bit n of LineValues and config masks corresponds to Offsets()[n].
func (l *Lines) Offsets() []int {
	return append([]int(nil), l.offsets...)
}

// Reconfigure replaces the configuration of the lines.
func (l *Lines) Reconfigure(cfg *uapi.LineConfig) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	return uapi.SetLineConfig(uintptr(l.fd), cfg)
}

// SetValues sets the values of the lines identified by lv.Mask.
func (l *Lines) SetValues(lv uapi.LineValues) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	return uapi.SetLineValues(uintptr(l.fd), lv)
}

// Values returns the values of all the lines.
func (l *Lines) Values() (uapi.LineValues, error) {
	if err := l.checkOpen(); err != nil {
		return uapi.LineValues{}, err
	}
	lv := uapi.LineValues{Mask: uapi.NewLineBitMask(len(l.offsets))}
	err := uapi.GetLineValues(uintptr(l.fd), &lv)
	return lv, err
}

// AsyncReadEvents reads the next batch of edge events into buf.
//
// h is called once with the window of events read, or an error. buf must
// be aligned for uapi.LineEvent, as returned by record.NewBuffer, and must
// not be reused until h is called.
func (l *Lines) AsyncReadEvents(r AsyncReader, buf []byte, h func(EdgeEvents, error)) error {
	return l.asyncRead(r, buf, func(n int, err error) {
		if err != nil {
			h(EdgeEvents{}, err)
			return
		}
		h(record.NewFixedWindow[uapi.LineEvent](buf[:n]), nil)
	})
}
