// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOptions configures a Watcher.
type WatcherOptions struct {
	// Debounce collapses bursts of events (editors often write, chmod and
	// rename in quick succession) into one rebuild.
	Debounce time.Duration

	// Source is the selector passed to Controller.Start.
	Source string

	Logger *slog.Logger
}

// DefaultWatcherOptions returns a 500ms debounce for the "file" source.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce: 500 * time.Millisecond,
		Source:   "file",
	}
}

// Watcher requests a rebuild when the catalog file changes.
//
// The parent directory is watched rather than the file itself so that
// atomic replace-by-rename is seen as a change. A change that arrives while
// a rebuild is in flight is held and retried once that run ends, since the
// run may already have read the old file.
type Watcher struct {
	path       string
	controller Controller
	opts       WatcherOptions
	logger     *slog.Logger
	watcher    *fsnotify.Watcher

	events   chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
	triggers int
}

// NewWatcher creates a watcher for the catalog file at path.
func NewWatcher(path string, controller Controller, opts WatcherOptions) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving catalog path: %w", err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultWatcherOptions().Debounce
	}
	if opts.Source == "" {
		opts.Source = DefaultWatcherOptions().Source
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		path:       abs,
		controller: controller,
		opts:       opts,
		logger:     logger.With("component", "catalog_watcher", "path", abs),
		watcher:    fw,
		events:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching. Calling Start twice is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Info("watching catalog file for changes", "debounce", w.opts.Debounce.String())
	return nil
}

// Stop ends watching. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Triggers returns how many rebuild requests the watcher has made.
func (w *Watcher) Triggers() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.triggers
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timer *time.Timer
	var timerC <-chan time.Time
	var pendingC <-chan struct{}

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-w.events:
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			timerC = timer.C
		case <-timerC:
			timerC = nil
			if w.trigger() {
				pendingC = w.afterRun(ctx)
			}
		case <-pendingC:
			pendingC = nil
			if ctx.Err() != nil {
				return
			}
			if w.trigger() {
				pendingC = w.afterRun(ctx)
			}
		}
	}
}

// afterRun returns a channel closed once the in-flight run has ended.
func (w *Watcher) afterRun(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		_, _ = w.controller.Wait(ctx)
	}()
	return ch
}

// trigger asks for a rebuild and reports whether the change is still
// pending because another run was in flight.
func (w *Watcher) trigger() bool {
	w.mu.Lock()
	w.triggers++
	w.mu.Unlock()

	state, started, err := w.controller.Start(w.opts.Source)
	switch {
	case err != nil:
		w.logger.Error("catalog change rebuild rejected", "error", err)
	case started:
		w.logger.Info("catalog changed, rebuild started", "run_id", state.RunID)
	default:
		w.logger.Info("catalog changed during rebuild, will retry when it ends", "run_id", state.RunID)
		return true
	}
	return false
}
