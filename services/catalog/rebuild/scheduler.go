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
	"errors"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Periodic Rebuild Scheduler
// =============================================================================

// Scheduler triggers rebuilds on a fixed interval.
type Scheduler interface {
	// Start launches the background loop. Returns an error if already running.
	Start(ctx context.Context) error

	// Stop ends the loop. Safe to call multiple times.
	Stop() error

	// RunNow requests a rebuild immediately.
	RunNow() (JobState, bool, error)
}

// SchedulerConfig holds configuration for the periodic rebuild scheduler.
//
// # Fields
//
//   - Interval: Time between rebuild requests. Zero disables the scheduler.
//   - Source: Selector passed to Controller.Start.
//   - RunOnStart: Request a rebuild as soon as the loop starts.
type SchedulerConfig struct {
	Interval   time.Duration
	Source     string
	RunOnStart bool
}

// DefaultSchedulerConfig returns a disabled scheduler for the "file" source.
//
// # Examples
//
//	config := DefaultSchedulerConfig()
//	config.Interval = 6 * time.Hour
//	scheduler := NewScheduler(ctrl, config, logger)
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval: 0,
		Source:   "file",
	}
}

// rebuildScheduler implements Scheduler.
//
// # Description
//
// Manages one background goroutine using the ticker + done channel
// pattern. A tick while a rebuild is still running is a no-op because
// Controller.Start never starts a second run.
//
// # Thread Safety
//
// All public methods are thread-safe; a mutex guards the running flag.
type rebuildScheduler struct {
	controller Controller
	config     SchedulerConfig
	logger     *slog.Logger
	done       chan struct{}
	mu         sync.Mutex
	running    bool
}

// NewScheduler creates a scheduler driving controller.
func NewScheduler(controller Controller, config SchedulerConfig, logger *slog.Logger) Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &rebuildScheduler{
		controller: controller,
		config:     config,
		logger:     logger.With("component", "rebuild_scheduler"),
		done:       make(chan struct{}),
	}
}

// Start begins the background loop.
//
// # Description
//
// Returns nil without starting anything when Interval is zero. The loop
// stops when Stop is called or ctx is cancelled.
//
// # Outputs
//
//   - error: Non-nil if the scheduler is already running.
func (s *rebuildScheduler) Start(ctx context.Context) error {
	if s.config.Interval <= 0 {
		s.logger.Info("periodic rebuild disabled")
		return nil
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler is already running")
	}
	s.running = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	s.logger.Info("periodic rebuild scheduler starting",
		"interval", s.config.Interval.String(),
		"source", s.config.Source,
	)

	go s.runLoop(ctx, done)
	return nil
}

// Stop signals the loop to exit.
func (s *rebuildScheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.logger.Info("periodic rebuild scheduler stopping")
	close(s.done)
	s.running = false
	return nil
}

// RunNow requests a rebuild of the configured source.
func (s *rebuildScheduler) RunNow() (JobState, bool, error) {
	return s.controller.Start(s.config.Source)
}

func (s *rebuildScheduler) runLoop(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.trigger()
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic rebuild scheduler stopped (context cancelled)")
			return
		case <-done:
			s.logger.Info("periodic rebuild scheduler stopped (stop requested)")
			return
		case <-ticker.C:
			s.trigger()
		}
	}
}

func (s *rebuildScheduler) trigger() {
	state, started, err := s.RunNow()
	if err != nil {
		s.logger.Error("scheduled rebuild rejected", "source", s.config.Source, "error", err)
		return
	}
	if !started {
		s.logger.Debug("scheduled rebuild skipped, run in flight", "run_id", state.RunID)
	}
}
