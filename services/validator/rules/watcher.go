// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor write bursts into one reload.
const DefaultDebounce = 500 * time.Millisecond

// ConfigWatcher hot-reloads a rule config file into an engine.
//
// The watch is on the file's directory, not the file: editors replace
// files via rename, which would silently drop a file-level watch.
//
// Thread Safety: Start and Stop are safe to call from any goroutine.
// Stop is idempotent.
type ConfigWatcher struct {
	path     string
	engine   *Engine
	debounce time.Duration

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a ConfigWatcher.
type WatcherOption func(*ConfigWatcher)

// WithDebounce overrides the reload debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *ConfigWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewConfigWatcher creates a watcher for the given config file.
//
// Inputs:
//
//	path   - the config file to watch. Must not be empty.
//	engine - receives reloaded configs. Must not be nil.
//	opts   - optional settings.
func NewConfigWatcher(path string, engine *Engine, opts ...WatcherOption) (*ConfigWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	w := &ConfigWatcher{
		path:     filepath.Clean(path),
		engine:   engine,
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching. The watch ends when Stop is called or ctx is
// cancelled.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = watcher

	go w.run(ctx)

	slog.Info("watching rule config", "path", w.path, "debounce", w.debounce)
	return nil
}

// Stop ends the watch and releases the underlying watcher.
func (w *ConfigWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

// run is the event loop. A single timer debounces bursts; the reload
// happens on the timer, never on the raw event.
func (w *ConfigWatcher) run(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watch error", "path", w.path, "error", err)

		case <-timer.C:
			w.reload(ctx)

		case <-w.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

// relevant filters events down to mutations of the watched file.
// Rename and Create cover the editor save-via-temp-file dance.
func (w *ConfigWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

// reload parses the file and swaps it into the engine. A file that no
// longer parses keeps the previous config live.
func (w *ConfigWatcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		slog.Warn("config reload failed; keeping previous config",
			"path", w.path, "error", err)
		recordConfigReload(ctx, false)
		return
	}

	w.engine.SetConfig(cfg)
	recordConfigReload(ctx, true)
	slog.Info("rule config reloaded", "path", w.path)
}
