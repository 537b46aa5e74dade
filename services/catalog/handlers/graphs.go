// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianMarket/pkg/validation"
	"github.com/AleutianAI/AleutianMarket/services/catalog/filter"
	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
)

// =============================================================================
// Response Types
// =============================================================================

// GraphListResponse lists the registered graphs.
type GraphListResponse struct {
	Graphs []stats.GraphDescriptor `json:"graphs"`
}

// DistributionResponse is returned by GET /v1/distribution/:graph.
type DistributionResponse struct {
	Graph           stats.GraphDescriptor     `json:"graph"`
	SnapshotVersion uint64                    `json:"snapshot_version"`
	Values          []float64                 `json:"values"`
	Total           int                       `json:"total"`
	Summary         stats.DistributionSummary `json:"summary"`
	Histogram       []stats.HistogramBin      `json:"histogram,omitempty"`
	Cached          bool                      `json:"cached"`
}

// FrequencyResponse is returned by the frequency and pie endpoints.
type FrequencyResponse struct {
	Graph           stats.GraphDescriptor `json:"graph"`
	SnapshotVersion uint64                `json:"snapshot_version"`
	N               int                   `json:"n"`
	Buckets         []stats.Bucket        `json:"buckets"`
	Total           int                   `json:"total"`
	Distinct        int                   `json:"distinct"`
	Cached          bool                  `json:"cached"`
}

// =============================================================================
// Handlers
// =============================================================================

// ListGraphs returns every registered graph in registration order.
//
// GET /v1/graphs
func ListGraphs(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, GraphListResponse{Graphs: d.Graphs.Graphs()})
	}
}

// Distribution returns the numeric distribution of a graph over the
// filtered catalog.
//
// # Description
//
// GET /v1/distribution/:graph?bins=N&<filter criteria>
//
// Results for the current snapshot are memoized unless the graph or the
// criteria depend on the clock. bins adds an equal-width histogram.
//
// # Outputs
//
//   - 200: DistributionResponse.
//   - 400: Malformed bins.
//   - 404: Unknown graph, or a graph that is not a distribution.
func Distribution(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.Start(c.Request.Context(), "catalog.distribution")
		defer span.End()

		graph, ok := lookupGraph(c, d, func(k stats.Kind) bool { return k == stats.KindDistribution })
		if !ok {
			d.Metrics.RecordQuery(observability.QueryDistribution, "", false, time.Since(start).Seconds())
			return
		}
		span.SetAttributes(attribute.String("graph", graph.ID))

		bins := 0
		if raw := c.Query("bins"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > validation.MaxBuckets {
				abortJSON(c, http.StatusBadRequest, "invalid bins: must be a positive integer up to "+strconv.Itoa(validation.MaxBuckets))
				d.Metrics.RecordQuery(observability.QueryDistribution, graph.ID, false, time.Since(start).Seconds())
				return
			}
			bins = n
		}

		crit := filter.FromQuery(c.Request.URL.Query())
		snap := d.Store.Current()
		compute := func() stats.DistributionResult {
			_, cspan := tracer.Start(ctx, "catalog.distribution.compute")
			defer cspan.End()
			return stats.Distribution(filter.Filter(snap.Catalog.Records(), crit, d.now()), graph.Getter)
		}

		var (
			res    stats.DistributionResult
			cached bool
		)
		if cacheable(d, graph, crit) {
			key := stats.CacheKey(graph.Kind, graph.ID, 0, crit.Key())
			res, cached = d.Cache.Distribution(snap.Version, key, compute)
			d.Metrics.RecordCache(cached)
		} else {
			res = compute()
		}
		span.SetAttributes(attribute.Bool("cached", cached), attribute.Int("values", len(res.Values)))

		values := res.Values
		if values == nil {
			values = []float64{}
		}
		resp := DistributionResponse{
			Graph:           graph,
			SnapshotVersion: snap.Version,
			Values:          values,
			Total:           res.Total,
			Summary:         res.Summary(),
			Cached:          cached,
		}
		if bins > 0 {
			resp.Histogram = res.Histogram(bins)
		}
		c.JSON(http.StatusOK, resp)
		d.Metrics.RecordQuery(observability.QueryDistribution, graph.ID, true, time.Since(start).Seconds())
	}
}

// Frequency returns the top-n label counts of a frequency or pie graph.
//
// GET /v1/frequency/:graph?n=N&<filter criteria>
func Frequency(d *Deps) gin.HandlerFunc {
	return frequencyHandler(d, observability.QueryFrequency)
}

// Pie is Frequency for chart clients that render pies. Both endpoints
// accept any frequency-kind graph.
//
// GET /v1/pie/:graph?n=N&<filter criteria>
func Pie(d *Deps) gin.HandlerFunc {
	return frequencyHandler(d, observability.QueryPie)
}

func frequencyHandler(d *Deps, kind observability.QueryKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx, span := tracer.Start(c.Request.Context(), "catalog."+string(kind))
		defer span.End()

		graph, ok := lookupGraph(c, d, stats.Kind.IsFrequency)
		if !ok {
			d.Metrics.RecordQuery(kind, "", false, time.Since(start).Seconds())
			return
		}
		span.SetAttributes(attribute.String("graph", graph.ID))

		n, err := validation.ParseBucketCount(c.Query("n"), d.buckets())
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			d.Metrics.RecordQuery(kind, graph.ID, false, time.Since(start).Seconds())
			return
		}

		crit := filter.FromQuery(c.Request.URL.Query())
		snap := d.Store.Current()
		compute := func() stats.FrequencyResult {
			_, cspan := tracer.Start(ctx, "catalog.frequency.compute")
			defer cspan.End()
			return stats.Frequency(filter.Filter(snap.Catalog.Records(), crit, d.now()), graph.Getter, n)
		}

		var (
			res    stats.FrequencyResult
			cached bool
		)
		if cacheable(d, graph, crit) {
			key := stats.CacheKey(stats.KindFrequency, graph.ID, n, crit.Key())
			res, cached = d.Cache.Frequency(snap.Version, key, compute)
			d.Metrics.RecordCache(cached)
		} else {
			res = compute()
		}
		span.SetAttributes(attribute.Bool("cached", cached), attribute.Int("buckets", len(res.Buckets)))

		buckets := res.Buckets
		if buckets == nil {
			buckets = []stats.Bucket{}
		}
		c.JSON(http.StatusOK, FrequencyResponse{
			Graph:           graph,
			SnapshotVersion: snap.Version,
			N:               n,
			Buckets:         buckets,
			Total:           res.Total,
			Distinct:        res.Distinct,
			Cached:          cached,
		})
		d.Metrics.RecordQuery(kind, graph.ID, true, time.Since(start).Seconds())
	}
}

// =============================================================================
// Helpers
// =============================================================================

// lookupGraph resolves :graph and checks its kind. It writes the error
// response itself and returns false on failure.
func lookupGraph(c *gin.Context, d *Deps, accept func(stats.Kind) bool) (stats.GraphDescriptor, bool) {
	id := c.Param("graph")
	graph, err := d.Graphs.Lookup(id)
	if err != nil {
		if errors.Is(err, stats.ErrUnknownGraph) {
			abortJSON(c, http.StatusNotFound, err.Error())
		} else {
			abortJSON(c, http.StatusInternalServerError, "graph lookup failed")
		}
		return stats.GraphDescriptor{}, false
	}
	if !accept(graph.Kind) {
		abortJSON(c, http.StatusNotFound, "graph "+id+" is a "+string(graph.Kind)+" graph")
		return stats.GraphDescriptor{}, false
	}
	return graph, true
}

func cacheable(d *Deps, graph stats.GraphDescriptor, crit filter.Criteria) bool {
	return d.Cache != nil && !graph.TimeDependent && crit.DaysOld == nil
}
