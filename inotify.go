// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package gpioplex

import (
	"github.com/warthog618/gpioplex/record"
	"github.com/warthog618/gpioplex/uapi"
	"golang.org/x/sys/unix"
)

// InotifyEvents is the window of events returned by one read of an inotify
// instance.
type InotifyEvents = record.Window[uapi.InotifyEvent, record.Var[uapi.InotifyEvent]]

// InotifyBufferSize is a buffer size sufficient for at least one event with
// a maximal name.
const InotifyBufferSize = 4096

// Inotify is a non-blocking inotify instance.
type Inotify struct {
	baseFd
}

// NewInotify creates an inotify instance.
func NewInotify() (*Inotify, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Inotify{baseFd{fd: fd}}, nil
}

// AddWatch watches path for the events in mask, returning the watch
// descriptor.
func (i *Inotify) AddWatch(path string, mask uint32) (int, error) {
	return unix.InotifyAddWatch(i.fd, path, mask)
}

// AsyncReadEvents reads the next batch of inotify events into buf.
//
// buf must be at least InotifyBufferSize, aligned for uapi.InotifyEvent,
// and must not be reused until h is called.
func (i *Inotify) AsyncReadEvents(r AsyncReader, buf []byte, h func(InotifyEvents, error)) error {
	return i.asyncRead(r, buf, func(n int, err error) {
		if err != nil {
			h(InotifyEvents{}, err)
			return
		}
		h(record.NewVarWindow[uapi.InotifyEvent](buf[:n]), nil)
	})
}
