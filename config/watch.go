// SPDX-FileCopyrightText: 2026 Kent Gibson <warthog618@gmail.com>
//
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the time a file must be quiet before it is reloaded.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads the configuration file at path whenever it changes, passing
// each successfully loaded Config to fn, until ctx is done.
//
// The containing directory is watched, so files replaced by rename are
// followed. Files that fail to load are logged and otherwise ignored.
func Watch(ctx context.Context, path string, debounce time.Duration, logger *slog.Logger, fn func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err = w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}
	go watch(ctx, w, filepath.Clean(path), debounce, logger, fn)
	return nil
}

func watch(ctx context.Context, w *fsnotify.Watcher, path string, debounce time.Duration, logger *slog.Logger, fn func(Config)) {
	defer w.Close()
	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(debounce)
			}
		case <-timer.C:
			c, err := Load(path)
			if err != nil {
				logger.Warn("config reload failed", "path", path, "err", err)
				continue
			}
			if err = c.ApplyEnv(EnvPrefix); err != nil {
				logger.Warn("config reload failed", "path", path, "err", err)
				continue
			}
			logger.Info("config reloaded", "path", path)
			fn(c)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error", "err", err)
		}
	}
}
