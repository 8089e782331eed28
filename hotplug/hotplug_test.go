// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

package hotplug_test

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/hotplug"
	"github.com/warthog618/gpioplex/reactor"
	"golang.org/x/sys/unix"
)

type sink struct {
	mu      sync.Mutex
	paths   []string
	fatals  []error
	resyncs int
	ch      chan string
	fatalCh chan error
}

func newSink() *sink {
	return &sink{ch: make(chan string, 16), fatalCh: make(chan error, 1)}
}

func (s *sink) insert(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	s.ch <- path
}

func (s *sink) fatal(err error) {
	s.mu.Lock()
	s.fatals = append(s.fatals, err)
	s.mu.Unlock()
	s.fatalCh <- err
}

func (s *sink) resync() {
	s.mu.Lock()
	s.resyncs++
	s.mu.Unlock()
}

func (s *sink) resyncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncs
}

func (s *sink) drain() []string {
	var pp []string
	for {
		select {
		case p := <-s.ch:
			pp = append(pp, p)
		default:
			sort.Strings(pp)
			return pp
		}
	}
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.Nil(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}
}

type rig struct {
	r   *reactor.Reactor
	s   *reactor.Strand
	in  *gpioplex.Inotify
	snk *sink
	w   *hotplug.Watcher
}

func newRig(t *testing.T, dir string) *rig {
	t.Helper()
	r, err := reactor.New()
	require.Nil(t, err)
	done := make(chan struct{})
	go func() {
		r.Run(2)
		close(done)
	}()
	in, err := gpioplex.NewInotify()
	require.Nil(t, err)
	t.Cleanup(func() {
		r.Stop()
		<-done
		in.Close()
		r.Close()
	})
	snk := newSink()
	s := reactor.NewStrand(r)
	w := hotplug.New(dir, in, r, s, snk.insert, snk.fatal,
		hotplug.WithNodeMode(0),
		hotplug.WithResyncHook(snk.resync))
	return &rig{r: r, s: s, in: in, snk: snk, w: w}
}

func (rg *rig) start(t *testing.T) {
	t.Helper()
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- rg.w.Start() })
	select {
	case err := <-errCh:
		require.Nil(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout starting watcher")
	}
}

func TestResyncMatchesPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "js0", "event3", "mouse0", "js12", "jsx")
	rg := newRig(t, dir)
	rg.start(t)
	assert.Equal(t, []string{filepath.Join(dir, "js0"), filepath.Join(dir, "js12")}, rg.snk.drain())
	assert.Equal(t, 1, rg.snk.resyncCount())
}

func TestResyncIdempotent(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "js0", "event3")
	rg := newRig(t, dir)
	rg.start(t)
	first := rg.snk.drain()
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- rg.w.Resync() })
	require.Nil(t, <-errCh)
	assert.Equal(t, first, rg.snk.drain())
	assert.Equal(t, []string{filepath.Join(dir, "js0")}, first)
}

func TestNodeModeFilter(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "js0")
	rg := newRig(t, dir)
	// regular files are not character devices
	w := hotplug.New(dir, rg.in, rg.r, rg.s, rg.snk.insert, rg.snk.fatal)
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- w.Resync() })
	require.Nil(t, <-errCh)
	assert.Empty(t, rg.snk.drain())
}

func TestFollowsCreation(t *testing.T) {
	dir := t.TempDir()
	rg := newRig(t, dir)
	rg.start(t)
	assert.Empty(t, rg.snk.drain())
	touch(t, dir, "event7", "js3")
	select {
	case p := <-rg.snk.ch:
		assert.Equal(t, filepath.Join(dir, "js3"), p)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for insert")
	}
	touch(t, dir, "js4")
	select {
	case p := <-rg.snk.ch:
		assert.Equal(t, filepath.Join(dir, "js4"), p)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for insert")
	}
}

func TestWatchRemoved(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "input")
	require.Nil(t, os.Mkdir(dir, 0o700))
	rg := newRig(t, dir)
	rg.start(t)
	require.Nil(t, os.Remove(dir))
	select {
	case err := <-rg.snk.fatalCh:
		assert.ErrorIs(t, err, hotplug.ErrWatchRemoved)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for fatal")
	}
}

// failingSource completes reads that return notifications with err.
type failingSource struct {
	*gpioplex.Inotify
	err error
}

func (s failingSource) AsyncReadEvents(r gpioplex.AsyncReader, buf []byte, h func(gpioplex.InotifyEvents, error)) error {
	return s.Inotify.AsyncReadEvents(r, buf, func(w gpioplex.InotifyEvents, err error) {
		if err == nil {
			w, err = gpioplex.InotifyEvents{}, s.err
		}
		h(w, err)
	})
}

func TestReadError(t *testing.T) {
	dir := t.TempDir()
	rg := newRig(t, dir)
	w := hotplug.New(dir, failingSource{rg.in, unix.EIO}, rg.r, rg.s, rg.snk.insert, rg.snk.fatal,
		hotplug.WithNodeMode(0))
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- w.Start() })
	require.Nil(t, <-errCh)

	touch(t, dir, "js0")
	select {
	case err := <-rg.snk.fatalCh:
		assert.ErrorIs(t, err, unix.EIO)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for fatal")
	}
	assert.Empty(t, rg.snk.drain())
}

func TestStartMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	rg := newRig(t, dir)
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- rg.w.Start() })
	assert.NotNil(t, <-errCh)
}

func TestCustomPattern(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "js0", "event3")
	rg := newRig(t, dir)
	w := hotplug.New(dir, rg.in, rg.r, rg.s, rg.snk.insert, rg.snk.fatal,
		hotplug.WithNodeMode(0),
		hotplug.WithPattern(regexp.MustCompile(`^event[0-9]+$`)))
	errCh := make(chan error, 1)
	rg.s.Dispatch(func() { errCh <- w.Resync() })
	require.Nil(t, <-errCh)
	assert.Equal(t, []string{filepath.Join(dir, "event3")}, rg.snk.drain())
}
