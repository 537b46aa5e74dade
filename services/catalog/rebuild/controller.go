// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rebuild runs catalog rebuilds in the background and publishes the
// result. At most one rebuild runs at a time; progress is observed by
// polling.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/snapshot"
	"github.com/AleutianAI/AleutianMarket/services/catalog/source"
)

// =============================================================================
// Interfaces
// =============================================================================

// ErrUnknownSource is returned by Start for selectors with no source.
var ErrUnknownSource = errors.New("unknown rebuild source")

// SourceLookup resolves a selector to a Source. *source.Registry
// implements it.
type SourceLookup interface {
	Get(name string) (source.Source, error)
}

// Publisher makes a rebuilt catalog current. *snapshot.Store implements it.
type Publisher interface {
	Publish(c *datatypes.Catalog, sourceName string) *snapshot.Snapshot
}

// Controller coordinates catalog rebuilds.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Controller interface {
	// Start begins a rebuild from the named source.
	Start(sourceName string) (JobState, bool, error)

	// Progress returns the current or most recent run state without blocking.
	Progress() JobState

	// IsRunning reports whether a run is in flight.
	IsRunning() bool

	// Wait blocks until no run is in flight or ctx is done.
	Wait(ctx context.Context) (JobState, error)
}

// =============================================================================
// Configuration
// =============================================================================

// ControllerConfig holds controller settings.
//
// # Fields
//
//   - RunTimeout: Upper bound on one run. Zero means no limit.
//   - Logger: Defaults to slog.Default().
//   - Now: Clock. Defaults to time.Now.
//   - OnFinish: Optional hook called with the terminal state of each run.
type ControllerConfig struct {
	RunTimeout time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
	OnFinish   func(JobState)
}

// DefaultControllerConfig returns a config whose runs have no time limit.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{}
}

// =============================================================================
// Controller Implementation
// =============================================================================

type controller struct {
	sources   SourceLookup
	publisher Publisher
	config    ControllerConfig
	logger    *slog.Logger

	tracer   trace.Tracer
	runs     metric.Int64Counter
	duration metric.Float64Histogram
	records  metric.Int64Histogram

	// mu serialises transitions; state is read lock-free.
	mu    sync.Mutex
	state atomic.Pointer[JobState]
	done  chan struct{}
}

// NewController creates an idle controller.
//
// # Description
//
// Rebuild runs are traced and measured through the global OpenTelemetry
// providers, which are no-ops until pkg/telemetry installs real ones.
//
// # Inputs
//
//   - sources: Resolves selectors passed to Start.
//   - publisher: Receives each successfully built catalog.
//   - config: See ControllerConfig.
//
// # Outputs
//
//   - Controller: Ready to Start.
//
// # Examples
//
//	store := snapshot.NewStore()
//	registry, _ := source.NewRegistry(source.NewMockSource(source.MockOptions{}))
//	ctrl := rebuild.NewController(registry, store, rebuild.DefaultControllerConfig())
//	state, started, err := ctrl.Start("mock")
func NewController(sources SourceLookup, publisher Publisher, config ControllerConfig) Controller {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	c := &controller{
		sources:   sources,
		publisher: publisher,
		config:    config,
		logger:    config.Logger.With("component", "rebuild"),
		tracer:    otel.Tracer("github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"),
	}

	meter := otel.Meter("github.com/AleutianAI/AleutianMarket/services/catalog/rebuild")
	var err error
	if c.runs, err = meter.Int64Counter("marketstats.rebuild.runs",
		metric.WithDescription("Completed rebuild runs by outcome")); err != nil {
		c.logger.Warn("rebuild run counter unavailable", "error", err)
	}
	if c.duration, err = meter.Float64Histogram("marketstats.rebuild.duration",
		metric.WithDescription("Rebuild run duration"), metric.WithUnit("s")); err != nil {
		c.logger.Warn("rebuild duration histogram unavailable", "error", err)
	}
	if c.records, err = meter.Int64Histogram("marketstats.rebuild.records",
		metric.WithDescription("Records published per successful rebuild")); err != nil {
		c.logger.Warn("rebuild records histogram unavailable", "error", err)
	}

	c.state.Store(&JobState{Phase: PhaseIdle})
	return c
}

// Start begins a rebuild from the named source.
//
// # Description
//
// Resolves the source, then atomically checks and sets the Running phase.
// The run itself executes on its own goroutine with a context detached from
// the caller, so a client disconnecting never aborts a rebuild.
//
// # Inputs
//
//   - sourceName: Selector registered in the SourceLookup.
//
// # Outputs
//
//   - JobState: The new Running state, or the in-flight state when a run
//     was already active.
//   - bool: True if this call started a run.
//   - error: ErrUnknownSource (wrapped) when sourceName does not resolve.
//     No transition happens in that case.
//
// # Limitations
//
//   - A running rebuild cannot be cancelled. It ends on completion or
//     failure, or when an explicitly configured RunTimeout expires.
func (c *controller) Start(sourceName string) (JobState, bool, error) {
	src, err := c.sources.Get(sourceName)
	if err != nil {
		return c.Progress(), false, fmt.Errorf("%w: %q", ErrUnknownSource, sourceName)
	}

	c.mu.Lock()
	current := c.state.Load()
	if current.Phase == PhaseRunning {
		c.mu.Unlock()
		c.logger.Debug("rebuild already running", "run_id", current.RunID, "requested_source", sourceName)
		return *current, false, nil
	}

	started := c.config.Now().UTC()
	next := &JobState{
		RunID:     uuid.NewString(),
		Phase:     PhaseRunning,
		Source:    src.Name(),
		StartedAt: &started,
	}
	done := make(chan struct{})
	c.done = done
	c.state.Store(next)
	c.mu.Unlock()

	c.logger.Info("rebuild started", "run_id", next.RunID, "source", next.Source)
	go c.run(src, *next, done)
	return *next, true, nil
}

// Progress returns the current state.
func (c *controller) Progress() JobState {
	return *c.state.Load()
}

// IsRunning reports whether a run is in flight.
func (c *controller) IsRunning() bool {
	return c.state.Load().Phase == PhaseRunning
}

// Wait blocks until the in-flight run (if any) finishes.
func (c *controller) Wait(ctx context.Context) (JobState, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return c.Progress(), nil
	}
	select {
	case <-done:
		return c.Progress(), nil
	case <-ctx.Done():
		return c.Progress(), ctx.Err()
	}
}

// =============================================================================
// Internal Methods
// =============================================================================

// run executes one rebuild. It never panics.
func (c *controller) run(src source.Source, state JobState, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	if c.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.RunTimeout)
		defer cancel()
	}
	ctx, span := c.tracer.Start(ctx, "rebuild.run", trace.WithAttributes(
		attribute.String("rebuild.run_id", state.RunID),
		attribute.String("rebuild.source", state.Source),
	))
	defer span.End()

	var (
		catalog *datatypes.Catalog
		stats   datatypes.DecodeStats
		err     error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("rebuild panicked: %v", r)
			}
		}()
		catalog, stats, err = src.Fetch(ctx, func(processed, total int) {
			c.report(state.RunID, processed, total)
		})
	}()

	if err == nil && catalog == nil {
		err = errors.New("source returned no catalog")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.finish(ctx, state.RunID, func(s *JobState) {
			s.Phase = PhaseFailed
			s.Error = err.Error()
		})
		return
	}

	snap := c.publisher.Publish(catalog, state.Source)
	span.SetAttributes(
		attribute.Int("rebuild.records", catalog.Len()),
		attribute.Int("rebuild.skipped", stats.Skipped),
		attribute.Int("rebuild.missing_id", stats.MissingID),
		attribute.Int("rebuild.malformed_fields", stats.MalformedFields),
		attribute.Int64("rebuild.snapshot_version", int64(snap.Version)),
	)
	if stats.MissingID > 0 || stats.MalformedFields > 0 {
		c.logger.Warn("catalog had malformed records",
			"run_id", state.RunID,
			"source", state.Source,
			"missing_id", stats.MissingID,
			"malformed_fields", stats.MalformedFields,
		)
	}
	span.SetStatus(codes.Ok, "")
	c.finish(ctx, state.RunID, func(s *JobState) {
		s.Phase = PhaseCompleted
		s.Records = catalog.Len()
		s.Skipped = stats.Skipped
		if stats.Total > s.Total {
			s.Total = stats.Total
		}
		s.Processed = s.Total
		s.SnapshotVersion = snap.Version
	})
}

// report applies a progress update for runID. Updates for other runs and
// regressions are ignored.
func (c *controller) report(runID string, processed, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.state.Load()
	if cur.RunID != runID || cur.Phase != PhaseRunning {
		return
	}
	next := *cur
	if processed > next.Processed {
		next.Processed = processed
	}
	if total > next.Total {
		next.Total = total
	}
	if next.Processed > next.Total {
		next.Total = next.Processed
	}
	if next == *cur {
		return
	}
	c.state.Store(&next)
}

func (c *controller) finish(ctx context.Context, runID string, apply func(*JobState)) {
	c.mu.Lock()
	cur := c.state.Load()
	if cur.RunID != runID {
		c.mu.Unlock()
		return
	}
	next := *cur
	apply(&next)
	finished := c.config.Now().UTC()
	next.FinishedAt = &finished
	c.state.Store(&next)
	c.mu.Unlock()

	elapsed := next.Duration(finished).Seconds()
	attrs := metric.WithAttributes(
		attribute.String("source", next.Source),
		attribute.String("phase", string(next.Phase)),
	)
	if c.runs != nil {
		c.runs.Add(ctx, 1, attrs)
	}
	if c.duration != nil {
		c.duration.Record(ctx, elapsed, attrs)
	}

	if next.Phase == PhaseFailed {
		c.logger.Error("rebuild failed",
			"run_id", next.RunID,
			"source", next.Source,
			"error", next.Error,
			"duration_s", elapsed,
		)
	} else {
		if c.records != nil {
			c.records.Record(ctx, int64(next.Records), attrs)
		}
		c.logger.Info("rebuild completed",
			"run_id", next.RunID,
			"source", next.Source,
			"records", next.Records,
			"skipped", next.Skipped,
			"snapshot_version", next.SnapshotVersion,
			"duration_s", elapsed,
		)
	}

	if c.config.OnFinish != nil {
		c.config.OnFinish(next)
	}
}
