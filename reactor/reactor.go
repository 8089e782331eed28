// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package reactor provides an epoll based event loop pumped by a pool of
// worker goroutines.
//
// The reactor runs posted tasks and completes one-shot asynchronous reads on
// non-blocking file descriptors. Completion handlers may run on any worker,
// concurrently with each other. Use a Strand to serialize handlers that share
// state.
package reactor

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"
)

var (
	// ErrCanceled indicates an asynchronous operation was canceled before it
	// completed, either explicitly or because the reactor was stopped.
	//
	// Handlers receiving ErrCanceled must not reissue the operation.
	ErrCanceled = errors.New("operation canceled")

	// ErrBusy indicates a read is already pending on the fd.
	ErrBusy = errors.New("read already pending")
)

// ReadHandler is called when an asynchronous read completes.
//
// On success n is the number of bytes read into the buffer. An fd that
// returns end of file completes with io.EOF.
type ReadHandler func(n int, err error)

// Reactor is an epoll event loop.
type Reactor struct {
	epfd int

	// eventfd used to wake workers blocked in epoll_wait
	wakefd int

	mu      sync.Mutex
	tasks   *queue.Queue
	reads   map[int]*pendingRead
	armed   map[int]bool
	stopped bool
}

type pendingRead struct {
	fd  int
	buf []byte
	h   ReadHandler
}

// New creates a Reactor.
func New() (r *Reactor, err error) {
	var epfd int
	epfd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			unix.Close(epfd)
		}
	}()
	var wakefd int
	wakefd, err = unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return
	}
	epv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	err = unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &epv)
	if err != nil {
		unix.Close(wakefd)
		return
	}
	r = &Reactor{
		epfd:   epfd,
		wakefd: wakefd,
		tasks:  queue.New(),
		reads:  make(map[int]*pendingRead),
		armed:  make(map[int]bool),
	}
	return
}

// Post queues fn to be run by a worker.
//
// Tasks are started in the order they are posted. Tasks posted after the
// reactor is stopped are discarded.
func (r *Reactor) Post(fn func()) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.tasks.Add(fn)
	r.mu.Unlock()
	r.wake()
}

// AsyncRead reads from fd into buf once fd is readable, and passes the result
// to h.
//
// The fd must be non-blocking. Only one read may be pending per fd, and buf
// must not be touched until h is called. If the reactor is stopped h is
// called immediately with ErrCanceled.
func (r *Reactor) AsyncRead(fd int, buf []byte, h ReadHandler) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		h(0, ErrCanceled)
		return nil
	}
	if _, ok := r.reads[fd]; ok {
		r.mu.Unlock()
		return ErrBusy
	}
	p := &pendingRead{fd: fd, buf: buf, h: h}
	r.reads[fd] = p
	err := r.arm(fd)
	if err != nil {
		delete(r.reads, fd)
	}
	r.mu.Unlock()
	return err
}

// arm enables a single readiness notification for fd.
//
// Must be called with r.mu held.
func (r *Reactor) arm(fd int) error {
	epv := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLONESHOT, Fd: int32(fd)}
	op := unix.EPOLL_CTL_ADD
	if r.armed[fd] {
		op = unix.EPOLL_CTL_MOD
	}
	err := unix.EpollCtl(r.epfd, op, fd, &epv)
	switch err {
	case unix.ENOENT:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &epv)
	case unix.EEXIST:
		err = unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &epv)
	}
	if err == nil {
		r.armed[fd] = true
	}
	return err
}

// Cancel removes fd from the reactor.
//
// A pending read on fd completes with ErrCanceled. Cancel must be called
// before the fd is closed.
func (r *Reactor) Cancel(fd int) {
	r.mu.Lock()
	p := r.reads[fd]
	delete(r.reads, fd)
	if r.armed[fd] {
		delete(r.armed, fd)
		unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	}
	r.mu.Unlock()
	if p != nil {
		p.h(0, ErrCanceled)
	}
}

// Stop stops the reactor.
//
// Pending reads complete with ErrCanceled, queued tasks are discarded, and
// all workers return from Run.
func (r *Reactor) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	pending := make([]*pendingRead, 0, len(r.reads))
	for fd, p := range r.reads {
		pending = append(pending, p)
		delete(r.reads, fd)
	}
	for fd := range r.armed {
		unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		delete(r.armed, fd)
	}
	r.tasks = queue.New()
	r.mu.Unlock()
	r.wake()
	for _, p := range pending {
		p.h(0, ErrCanceled)
	}
}

// Stopped returns true once Stop has been called.
func (r *Reactor) Stopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

// Close stops the reactor, if necessary, and releases its resources.
//
// Close must not be called until Run has returned.
func (r *Reactor) Close() error {
	r.Stop()
	unix.Close(r.wakefd)
	return unix.Close(r.epfd)
}

// Run pumps the reactor with the given number of workers, one of which is
// the calling goroutine, and blocks until the reactor is stopped.
//
// An unexpected epoll error stops the reactor and is returned.
func (r *Reactor) Run(workers int) error {
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	errs := make([]error, workers)
	wg.Add(workers - 1)
	for i := 1; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			errs[i] = r.work()
		}(i)
	}
	errs[0] = r.work()
	wg.Wait()
	return errors.Join(errs...)
}

func (r *Reactor) work() error {
	events := make([]unix.EpollEvent, 16)
	for {
		task, stopped := r.nextTask()
		if stopped {
			return nil
		}
		timeout := -1
		if task != nil {
			task()
			// keep polling I/O between tasks without blocking
			timeout = 0
		}
		n, err := unix.EpollWait(r.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			r.Stop()
			return err
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == r.wakefd {
				r.drainWake()
				continue
			}
			r.complete(fd)
		}
	}
}

func (r *Reactor) nextTask() (func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, true
	}
	if r.tasks.Length() == 0 {
		return nil, false
	}
	return r.tasks.Remove().(func()), false
}

func (r *Reactor) wake() {
	var one [8]byte
	binary.NativeEndian.PutUint64(one[:], 1)
	unix.Write(r.wakefd, one[:])
}

func (r *Reactor) drainWake() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		// leave the eventfd readable so every worker sees the stop
		return
	}
	var buf [8]byte
	unix.Read(r.wakefd, buf[:])
}

// complete performs the read for a ready fd and calls its handler.
func (r *Reactor) complete(fd int) {
	r.mu.Lock()
	p := r.reads[fd]
	delete(r.reads, fd)
	r.mu.Unlock()
	if p == nil {
		return
	}
	n, err := unix.Read(fd, p.buf)
	for err == unix.EINTR {
		n, err = unix.Read(fd, p.buf)
	}
	if err == unix.EAGAIN {
		// spurious wakeup, wait for the next one
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			p.h(0, ErrCanceled)
			return
		}
		r.reads[fd] = p
		err = r.arm(fd)
		if err == nil {
			r.mu.Unlock()
			return
		}
		delete(r.reads, fd)
		r.mu.Unlock()
	}
	if err != nil {
		n = 0
	} else if n == 0 {
		err = io.EOF
	}
	p.h(n, err)
}
