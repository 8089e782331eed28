// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package reactor_test

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpioplex/reactor"
	"golang.org/x/sys/unix"
)

func newReactor(t *testing.T, workers int) (*reactor.Reactor, <-chan error) {
	t.Helper()
	r, err := reactor.New()
	require.Nil(t, err)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(workers)
	}()
	t.Cleanup(func() {
		r.Stop()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("reactor failed to stop")
		}
		r.Close()
	})
	return r, done
}

func newPipe(t *testing.T) (int, int) {
	t.Helper()
	p := []int{0, 0}
	err := unix.Pipe2(p, unix.O_CLOEXEC|unix.O_NONBLOCK)
	require.Nil(t, err)
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

type result struct {
	n   int
	err error
}

func TestPost(t *testing.T) {
	r, _ := newReactor(t, 1)
	ch := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		r.Post(func() { ch <- i })
	}
	for i := 0; i < 3; i++ {
		select {
		case v := <-ch:
			assert.Equal(t, i, v)
		case <-time.After(time.Second):
			require.Fail(t, "timeout waiting for task")
		}
	}
}

func TestAsyncRead(t *testing.T) {
	r, _ := newReactor(t, 2)
	rfd, wfd := newPipe(t)
	buf := make([]byte, 16)
	ch := make(chan result, 1)
	err := r.AsyncRead(rfd, buf, func(n int, err error) {
		ch <- result{n, err}
	})
	require.Nil(t, err)

	// only one read per fd
	err = r.AsyncRead(rfd, buf, func(int, error) {})
	assert.Equal(t, reactor.ErrBusy, err)

	select {
	case <-ch:
		require.Fail(t, "read completed before data available")
	case <-time.After(20 * time.Millisecond):
	}
	unix.Write(wfd, []byte("hello"))
	select {
	case res := <-ch:
		assert.Nil(t, res.err)
		assert.Equal(t, 5, res.n)
		assert.Equal(t, "hello", string(buf[:res.n]))
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for read")
	}

	// rearm on the same fd
	err = r.AsyncRead(rfd, buf, func(n int, err error) {
		ch <- result{n, err}
	})
	require.Nil(t, err)
	unix.Write(wfd, []byte("again"))
	select {
	case res := <-ch:
		assert.Nil(t, res.err)
		assert.Equal(t, "again", string(buf[:res.n]))
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for read")
	}
}

func TestAsyncReadEOF(t *testing.T) {
	r, _ := newReactor(t, 1)
	p := []int{0, 0}
	err := unix.Pipe2(p, unix.O_CLOEXEC|unix.O_NONBLOCK)
	require.Nil(t, err)
	defer unix.Close(p[0])
	ch := make(chan result, 1)
	err = r.AsyncRead(p[0], make([]byte, 8), func(n int, err error) {
		ch <- result{n, err}
	})
	require.Nil(t, err)
	unix.Close(p[1])
	select {
	case res := <-ch:
		assert.Equal(t, io.EOF, res.err)
		assert.Zero(t, res.n)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for EOF")
	}
}

func TestCancel(t *testing.T) {
	r, _ := newReactor(t, 1)
	rfd, wfd := newPipe(t)
	ch := make(chan result, 1)
	err := r.AsyncRead(rfd, make([]byte, 8), func(n int, err error) {
		ch <- result{n, err}
	})
	require.Nil(t, err)
	r.Cancel(rfd)
	select {
	case res := <-ch:
		assert.Equal(t, reactor.ErrCanceled, res.err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for cancel")
	}
	// canceled fd is no longer watched
	unix.Write(wfd, []byte("x"))
	select {
	case <-ch:
		require.Fail(t, "handler called after cancel")
	case <-time.After(20 * time.Millisecond):
	}
	// nothing pending is a no-op
	r.Cancel(rfd)
}

func TestStop(t *testing.T) {
	r, err := reactor.New()
	require.Nil(t, err)
	defer r.Close()
	rfd, _ := newPipe(t)
	ch := make(chan result, 2)
	err = r.AsyncRead(rfd, make([]byte, 8), func(n int, err error) {
		ch <- result{n, err}
	})
	require.Nil(t, err)
	done := make(chan error, 1)
	go func() {
		done <- r.Run(4)
	}()
	assert.False(t, r.Stopped())
	r.Stop()
	assert.True(t, r.Stopped())
	select {
	case res := <-ch:
		assert.Equal(t, reactor.ErrCanceled, res.err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for cancel")
	}
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for workers")
	}
	// reads after stop are canceled immediately
	err = r.AsyncRead(rfd, make([]byte, 8), func(n int, err error) {
		ch <- result{n, err}
	})
	assert.Nil(t, err)
	res := <-ch
	assert.Equal(t, reactor.ErrCanceled, res.err)

	// posts after stop are discarded
	r.Post(func() { ch <- result{} })
	select {
	case <-ch:
		assert.Fail(t, "task ran after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStrandSerializes(t *testing.T) {
	r, _ := newReactor(t, 4)
	s := reactor.NewStrand(r)
	const producers = 8
	const tasks = 200
	var active int32
	var overlap int32
	seen := make([][]int, producers)
	var wg sync.WaitGroup
	wg.Add(producers * tasks)
	for p := 0; p < producers; p++ {
		p := p
		go func() {
			for i := 0; i < tasks; i++ {
				i := i
				s.Dispatch(func() {
					if atomic.AddInt32(&active, 1) != 1 {
						atomic.StoreInt32(&overlap, 1)
					}
					seen[p] = append(seen[p], i)
					atomic.AddInt32(&active, -1)
					wg.Done()
				})
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		require.Fail(t, "timeout waiting for strand")
	}
	assert.Zero(t, atomic.LoadInt32(&overlap))
	for p := 0; p < producers; p++ {
		require.Len(t, seen[p], tasks)
		for i, v := range seen[p] {
			assert.Equal(t, i, v)
		}
	}
}

func TestStrandRedispatchDoesNotStarve(t *testing.T) {
	r, _ := newReactor(t, 1)
	s := reactor.NewStrand(r)
	var spins int64
	var spin func()
	spin = func() {
		atomic.AddInt64(&spins, 1)
		s.Dispatch(spin)
	}
	s.Dispatch(spin)

	// other work, both posted and I/O, still makes progress
	ch := make(chan struct{}, 1)
	r.Post(func() { ch <- struct{}{} })
	select {
	case <-ch:
	case <-time.After(time.Second):
		require.Fail(t, "posted task starved")
	}
	rfd, wfd := newPipe(t)
	rch := make(chan result, 1)
	err := r.AsyncRead(rfd, make([]byte, 8), func(n int, err error) {
		rch <- result{n, err}
	})
	require.Nil(t, err)
	unix.Write(wfd, []byte("io"))
	select {
	case res := <-rch:
		assert.Equal(t, 2, res.n)
	case <-time.After(time.Second):
		require.Fail(t, "read starved")
	}
	assert.Greater(t, atomic.LoadInt64(&spins), int64(1))
}
