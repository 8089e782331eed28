// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

//go:build linux

// Package hotplug watches a device directory for device nodes appearing.
//
// The watcher seeds itself with a full scan of the directory, then follows
// inotify notifications. If the kernel reports that notifications were
// dropped the directory is rescanned rather than trusting the stream. If the
// watch itself is removed the watcher reports a fatal error, as no further
// notifications can arrive.
package hotplug

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/warthog618/gpioplex"
	"github.com/warthog618/gpioplex/reactor"
	"github.com/warthog618/gpioplex/record"
	"golang.org/x/sys/unix"
)

// WatchMask is the set of inotify events watched on the device directory.
//
// IN_ATTRIB catches nodes whose permissions are fixed up by udev after
// creation, so a node that could not be opened initially is retried.
const WatchMask = unix.IN_CREATE | unix.IN_ONLYDIR | unix.IN_ATTRIB

// DefaultPattern matches joystick device node names.
var DefaultPattern = regexp.MustCompile(`^js[0-9]+$`)

// ErrWatchRemoved indicates the directory watch was removed by the kernel,
// typically because the directory was deleted or unmounted.
var ErrWatchRemoved = errors.New("directory watch removed")

// Source is a stream of directory notifications.
//
// It is satisfied by *gpioplex.Inotify.
type Source interface {
	AddWatch(path string, mask uint32) (int, error)
	AsyncReadEvents(r gpioplex.AsyncReader, buf []byte, h func(gpioplex.InotifyEvents, error)) error
}

// Dispatcher serializes tasks.
//
// It is satisfied by *reactor.Strand.
type Dispatcher interface {
	Dispatch(func())
}

// Watcher follows device nodes appearing in a directory.
//
// Insert and fatal callbacks are called from the Dispatcher.
type Watcher struct {
	dir    string
	src    Source
	r      gpioplex.AsyncReader
	strand Dispatcher
	insert func(path string)
	fatal  func(error)

	pattern  *regexp.Regexp
	nodeMode fs.FileMode
	logger   *slog.Logger
	onResync func()

	// owned by the pending read, then by the strand until the next read
	buf []byte
}

// New creates a Watcher for dir.
//
// insert is called with the path of each matching node found, possibly more
// than once for the same node. fatal is called once if the watcher can make
// no further progress.
func New(dir string, src Source, r gpioplex.AsyncReader, strand Dispatcher,
	insert func(path string), fatal func(error), options ...Option) *Watcher {
	wo := Options{
		pattern:  DefaultPattern,
		nodeMode: fs.ModeCharDevice,
		logger:   slog.Default(),
	}
	for _, o := range options {
		o.applyOption(&wo)
	}
	return &Watcher{
		dir:      dir,
		src:      src,
		r:        r,
		strand:   strand,
		insert:   insert,
		fatal:    fatal,
		pattern:  wo.pattern,
		nodeMode: wo.nodeMode,
		logger:   wo.logger,
		onResync: wo.onResync,
		buf:      record.NewBuffer(gpioplex.InotifyBufferSize),
	}
}

// Start establishes the watch, scans the directory and starts following
// notifications.
//
// Must be called from the Dispatcher.
func (w *Watcher) Start() error {
	if _, err := w.src.AddWatch(w.dir, WatchMask); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	if err := w.Resync(); err != nil {
		return err
	}
	return w.read()
}

// Resync scans the directory and inserts every matching node.
//
// Must be called from the Dispatcher.
func (w *Watcher) Resync() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("resync %s: %w", w.dir, err)
	}
	n := 0
	for _, e := range entries {
		if w.nodeMode != 0 && e.Type()&w.nodeMode == 0 {
			continue
		}
		if !w.pattern.MatchString(e.Name()) {
			continue
		}
		n++
		w.insert(filepath.Join(w.dir, e.Name()))
	}
	w.logger.Debug("resync", "dir", w.dir, "matched", n)
	if w.onResync != nil {
		w.onResync()
	}
	return nil
}

func (w *Watcher) read() error {
	return w.src.AsyncReadEvents(w.r, w.buf, func(evts gpioplex.InotifyEvents, err error) {
		if err != nil {
			if !errors.Is(err, reactor.ErrCanceled) {
				w.strand.Dispatch(func() { w.fatal(fmt.Errorf("read %s events: %w", w.dir, err)) })
			}
			return
		}
		w.strand.Dispatch(func() {
			if !w.handle(evts) {
				return
			}
			if err := w.read(); err != nil {
				w.fatal(err)
			}
		})
	})
}

// handle processes a window of notifications in order, returning false if
// the watch has been removed.
func (w *Watcher) handle(evts gpioplex.InotifyEvents) bool {
	for c := range evts.Cursors() {
		mask := c.Record().Mask
		switch {
		case mask&unix.IN_Q_OVERFLOW != 0:
			w.logger.Warn("inotify queue overflow", "dir", w.dir)
			if err := w.Resync(); err != nil {
				w.logger.Error("resync failed", "err", err)
			}
		case mask&unix.IN_IGNORED != 0:
			w.fatal(fmt.Errorf("%s: %w", w.dir, ErrWatchRemoved))
			return false
		default:
			name := c.Name()
			if w.pattern.MatchString(name) {
				w.insert(filepath.Join(w.dir, name))
			}
		}
	}
	return true
}

// Option defines the interface required to provide a Watcher option.
type Option interface {
	applyOption(*Options)
}

// Options contains the options for a Watcher.
type Options struct {
	pattern  *regexp.Regexp
	nodeMode fs.FileMode
	logger   *slog.Logger
	onResync func()
}

// PatternOption selects the node names of interest.
type PatternOption struct {
	re *regexp.Regexp
}

// WithPattern selects the node names of interest.
func WithPattern(re *regexp.Regexp) PatternOption {
	return PatternOption{re}
}

func (o PatternOption) applyOption(wo *Options) {
	wo.pattern = o.re
}

// NodeModeOption restricts scans to nodes of a given type.
type NodeModeOption fs.FileMode

// WithNodeMode restricts directory scans to entries with any of the type
// bits in mode set. Zero accepts all entries.
func WithNodeMode(mode fs.FileMode) NodeModeOption {
	return NodeModeOption(mode)
}

func (o NodeModeOption) applyOption(wo *Options) {
	wo.nodeMode = fs.FileMode(o)
}

// LoggerOption specifies the logger for the Watcher.
type LoggerOption struct {
	l *slog.Logger
}

// WithLogger specifies the logger for the Watcher.
func WithLogger(l *slog.Logger) LoggerOption {
	return LoggerOption{l}
}

func (o LoggerOption) applyOption(wo *Options) {
	wo.logger = o.l
}

// ResyncHookOption is called after each directory scan.
type ResyncHookOption func()

// WithResyncHook provides a function called after each directory scan.
func WithResyncHook(fn func()) ResyncHookOption {
	return ResyncHookOption(fn)
}

func (o ResyncHookOption) applyOption(wo *Options) {
	wo.onResync = o
}
