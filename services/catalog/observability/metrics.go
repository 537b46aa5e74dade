// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for catalog queries.
//
// # Description
//
// Metrics include:
//   - Query counters (by kind, graph and status)
//   - Query latency histograms
//   - Result cache hits and misses
//   - Published catalog size and snapshot version
//   - Rebuild request outcomes
//
// Rebuild run durations are recorded through OpenTelemetry by the rebuild
// package and bridged to /metrics by pkg/telemetry.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "marketstats"

// Subsystem for catalog query metrics
const catalogSubsystem = "catalog"

// QueryMetrics holds the Prometheus collectors for the query path.
//
// # Fields
//
//   - QueriesTotal: Queries by kind (listing, distribution, frequency, pie,
//     summary) and status (success, error)
//   - QueryDurationSeconds: Query latency by kind
//   - CacheResultsTotal: Result cache lookups by result (hit, miss)
//   - CatalogApps: Records in the published catalog
//   - SnapshotVersion: Version of the published snapshot
//   - RebuildRequestsTotal: Rebuild requests by outcome
type QueryMetrics struct {
	QueriesTotal         *prometheus.CounterVec
	QueryDurationSeconds *prometheus.HistogramVec
	CacheResultsTotal    *prometheus.CounterVec
	CatalogApps          prometheus.Gauge
	SnapshotVersion      prometheus.Gauge
	RebuildRequestsTotal *prometheus.CounterVec
}

// DefaultMetrics is the process-wide instance registered with the default
// Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *QueryMetrics

var initOnce sync.Once

// InitMetrics registers the default metrics once and returns them.
//
// # Examples
//
//	metrics := observability.InitMetrics()
//	metrics.RecordQuery(observability.QueryFrequency, "author", true, 0.002)
func InitMetrics() *QueryMetrics {
	initOnce.Do(func() {
		DefaultMetrics = NewQueryMetrics(prometheus.DefaultRegisterer)
	})
	return DefaultMetrics
}

// NewQueryMetrics creates the collectors and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry().
func NewQueryMetrics(reg prometheus.Registerer) *QueryMetrics {
	factory := promauto.With(reg)
	return &QueryMetrics{
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "queries_total",
				Help:      "Total catalog queries by kind, graph and status",
			},
			[]string{"kind", "graph", "status"},
		),

		QueryDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "query_duration_seconds",
				Help:      "Catalog query latency in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"kind"},
		),

		CacheResultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "cache_results_total",
				Help:      "Aggregation result cache lookups by result",
			},
			[]string{"result"},
		),

		CatalogApps: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "apps",
				Help:      "Number of apps in the published catalog",
			},
		),

		SnapshotVersion: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "snapshot_version",
				Help:      "Version of the published catalog snapshot",
			},
		),

		RebuildRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: catalogSubsystem,
				Name:      "rebuild_requests_total",
				Help:      "Rebuild requests by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// =============================================================================
// Label Values
// =============================================================================

// QueryKind labels the query path.
type QueryKind string

const (
	QueryListing      QueryKind = "listing"
	QueryApp          QueryKind = "app"
	QueryDistribution QueryKind = "distribution"
	QueryFrequency    QueryKind = "frequency"
	QueryPie          QueryKind = "pie"
	QuerySummary      QueryKind = "summary"
)

// RebuildOutcome labels a rebuild request.
type RebuildOutcome string

const (
	RebuildStarted       RebuildOutcome = "started"
	RebuildInFlight      RebuildOutcome = "in_flight"
	RebuildUnknownSource RebuildOutcome = "unknown_source"
	RebuildRateLimited   RebuildOutcome = "rate_limited"
	RebuildBadRequest    RebuildOutcome = "bad_request"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordQuery records one completed query. graph is empty for queries that
// are not graph-specific.
func (m *QueryMetrics) RecordQuery(kind QueryKind, graph string, success bool, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	m.QueriesTotal.WithLabelValues(string(kind), graph, status).Inc()
	m.QueryDurationSeconds.WithLabelValues(string(kind)).Observe(seconds)
}

// RecordCache records a result cache lookup.
func (m *QueryMetrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheResultsTotal.WithLabelValues(result).Inc()
}

// RecordSnapshot updates the published catalog gauges.
func (m *QueryMetrics) RecordSnapshot(version uint64, apps int) {
	if m == nil {
		return
	}
	m.SnapshotVersion.Set(float64(version))
	m.CatalogApps.Set(float64(apps))
}

// RecordRebuildRequest counts a rebuild request outcome.
func (m *QueryMetrics) RecordRebuildRequest(outcome RebuildOutcome) {
	if m == nil {
		return
	}
	m.RebuildRequestsTotal.WithLabelValues(string(outcome)).Inc()
}
