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
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianMarket/pkg/validation"
	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"
)

// RebuildRequest is the optional body of POST /v1/rebuild.
type RebuildRequest struct {
	Source string `json:"source"`
}

// RebuildResponse reports the outcome of a rebuild request.
type RebuildResponse struct {
	Started bool             `json:"started"`
	State   rebuild.JobState `json:"state"`
	Percent float64          `json:"percent"`
}

// StartRebuild requests a catalog rebuild.
//
// # Description
//
// POST /v1/rebuild with body {"source": "<selector>"}. An empty body uses
// the default source. Requests are throttled by the token bucket in Deps.
//
// # Outputs
//
//   - 202: A new run started.
//   - 200: A run was already in flight. Its state is returned.
//   - 400: Malformed body, invalid selector, or unknown source.
//   - 429: Too many rebuild requests.
func StartRebuild(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, span := tracer.Start(c.Request.Context(), "catalog.rebuild.start")
		defer span.End()

		if d.Limiter != nil && !d.Limiter.Allow() {
			d.Metrics.RecordRebuildRequest(observability.RebuildRateLimited)
			abortJSON(c, http.StatusTooManyRequests, "too many rebuild requests")
			return
		}

		var req RebuildRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			d.Metrics.RecordRebuildRequest(observability.RebuildBadRequest)
			abortJSON(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		if req.Source == "" {
			req.Source = d.DefaultSource
		}
		if err := validation.ValidateIdentifier(req.Source); err != nil {
			d.Metrics.RecordRebuildRequest(observability.RebuildBadRequest)
			abortJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		span.SetAttributes(attribute.String("source", req.Source))

		state, started, err := d.Rebuild.Start(req.Source)
		if err != nil {
			if errors.Is(err, rebuild.ErrUnknownSource) {
				d.Metrics.RecordRebuildRequest(observability.RebuildUnknownSource)
				var names []string
				if d.SourceNames != nil {
					names = d.SourceNames()
				}
				abortJSON(c, http.StatusBadRequest, err.Error(), names...)
				return
			}
			slog.Error("rebuild start failed", "source", req.Source, "error", err)
			abortJSON(c, http.StatusInternalServerError, "rebuild start failed")
			return
		}

		span.SetAttributes(attribute.Bool("started", started), attribute.String("run_id", state.RunID))
		resp := RebuildResponse{Started: started, State: state, Percent: state.Percent()}
		if started {
			d.Metrics.RecordRebuildRequest(observability.RebuildStarted)
			c.JSON(http.StatusAccepted, resp)
			return
		}
		d.Metrics.RecordRebuildRequest(observability.RebuildInFlight)
		c.JSON(http.StatusOK, resp)
	}
}

// RebuildProgress returns the current or most recent run state.
//
// GET /v1/rebuild
func RebuildProgress(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := d.Rebuild.Progress()
		c.JSON(http.StatusOK, RebuildResponse{
			Started: state.Phase == rebuild.PhaseRunning,
			State:   state,
			Percent: state.Percent(),
		})
	}
}
