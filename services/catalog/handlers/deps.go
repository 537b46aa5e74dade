// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the JSON HTTP API over the published catalog
// snapshot and the rebuild controller.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"
	"github.com/AleutianAI/AleutianMarket/services/catalog/snapshot"
	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
)

var tracer = otel.Tracer("marketstats.catalog.handlers")

// SnapshotReader returns the published snapshot. *snapshot.Store
// implements it.
type SnapshotReader interface {
	Current() *snapshot.Snapshot
}

// Deps holds everything the handlers read from.
//
// # Fields
//
//   - Store: Published snapshot. Required.
//   - Graphs: Graph registry. Required.
//   - Cache: Aggregation result cache. Optional.
//   - Rebuild: Rebuild controller. Required by the rebuild handlers.
//   - Limiter: Throttles POST /v1/rebuild. Optional.
//   - Metrics: Prometheus query metrics. Optional.
//   - SourceNames: Lists valid rebuild selectors for error messages. Optional.
//   - DefaultBuckets: Frequency n when the query omits it.
//   - DefaultSource: Rebuild selector when the body omits it.
//   - MaxListing: Cap on listing responses when no limit is given. Zero
//     means uncapped.
//   - Now: Clock for time-dependent filters.
type Deps struct {
	Store          SnapshotReader
	Graphs         *stats.Registry
	Cache          *stats.ResultCache
	Rebuild        rebuild.Controller
	Limiter        *rate.Limiter
	Metrics        *observability.QueryMetrics
	SourceNames    func() []string
	DefaultBuckets int
	DefaultSource  string
	MaxListing     int
	Now            func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Deps) buckets() int {
	if d.DefaultBuckets <= 0 {
		return 10
	}
	return d.DefaultBuckets
}

// errorResponse is the body of every non-2xx JSON response.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func abortJSON(c *gin.Context, status int, msg string, details ...string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, Details: details})
}

// HealthCheck reports liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
