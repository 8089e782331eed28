// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package gpioplex

import (
	"sync"

	"github.com/warthog618/gpioplex/reactor"
	"golang.org/x/sys/unix"
)

// AsyncReader performs asynchronous reads on non-blocking fds.
//
// It is satisfied by *reactor.Reactor.
type AsyncReader interface {
	AsyncRead(fd int, buf []byte, h reactor.ReadHandler) error
	Cancel(fd int)
}

// baseFd is a non-blocking kernel fd that may have a read pending on a
// reactor.
type baseFd struct {
	fd int

	// mu covers all that follow
	mu     sync.Mutex
	r      AsyncReader
	closed bool
}

// Fd returns the underlying file descriptor.
func (b *baseFd) Fd() int {
	return b.fd
}

func (b *baseFd) asyncRead(r AsyncReader, buf []byte, h reactor.ReadHandler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.r = r
	b.mu.Unlock()
	return r.AsyncRead(b.fd, buf, h)
}

func (b *baseFd) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	return nil
}

// Close cancels any pending read and closes the fd.
func (b *baseFd) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.closed = true
	r := b.r
	b.mu.Unlock()
	if r != nil {
		r.Cancel(b.fd)
	}
	return unix.Close(b.fd)
}
