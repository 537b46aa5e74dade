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
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianMarket/pkg/validation"
	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/filter"
	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/snapshot"
	"github.com/AleutianAI/AleutianMarket/services/catalog/stats"
	"github.com/AleutianAI/AleutianMarket/services/catalog/summary"
)

// ListingResponse is returned by the listing endpoints.
type ListingResponse struct {
	Title           string                 `json:"title"`
	SnapshotVersion uint64                 `json:"snapshot_version"`
	CatalogSize     int                    `json:"catalog_size"`
	Count           int                    `json:"count"`
	Apps            []*datatypes.AppRecord `json:"apps"`
}

// AppDetail adds derived fields to one record.
type AppDetail struct {
	App               *datatypes.AppRecord `json:"app"`
	AppcacheSizeTotal int64                `json:"appcache_size_total"`
	LibraryNames      []string             `json:"library_names"`
	Filenames         []string             `json:"filenames"`
	SnapshotVersion   uint64               `json:"snapshot_version"`
	OtherAppsByAuthor int                  `json:"other_apps_by_author"`
}

// AuthorResponse describes one author's apps.
type AuthorResponse struct {
	Author          string                 `json:"author"`
	SnapshotVersion uint64                 `json:"snapshot_version"`
	Count           int                    `json:"count"`
	Apps            []*datatypes.AppRecord `json:"apps"`
}

// ListApps filters the catalog by query criteria.
//
// # Description
//
// GET /v1/apps?author=&search=&min_ratings=&max_ratings=&activity=&library=
// &filename=&days_old=&since=&until=&limit=
//
// All supplied criteria must hold. Malformed numeric or date parameters are
// ignored rather than rejected.
func ListApps(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		crit := filter.FromQuery(c.Request.URL.Query())
		respondListing(c, d, "apps", crit)
	}
}

// ListByAuthor lists the apps of one author. Other query criteria narrow the
// result further.
//
// GET /v1/listing/author/:author
func ListByAuthor(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		author := c.Param("author")
		if err := validation.ValidateAuthor(author); err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		crit := filter.FromQuery(c.Request.URL.Query())
		crit.Author = &author
		respondListing(c, d, "author "+author, crit)
	}
}

// ListByNumRatings lists apps with strictly more than :num_ratings ratings.
//
// GET /v1/listing/num_ratings/:num_ratings
func ListByNumRatings(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param("num_ratings")
		n, err := validation.ParseNonNegative(raw)
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		crit := filter.FromQuery(c.Request.URL.Query())
		if n == math.MaxInt {
			// No count exceeds MaxInt; an empty ratings window matches nothing.
			crit.MinRatings, crit.MaxRatings = filter.Ptr(n), filter.Ptr(0)
		} else {
			crit.MinRatings = filter.Ptr(n + 1)
		}
		respondListing(c, d, "num_ratings "+raw, crit)
	}
}

func respondListing(c *gin.Context, d *Deps, title string, crit filter.Criteria) {
	start := time.Now()
	_, span := tracer.Start(c.Request.Context(), "catalog.listing")
	defer span.End()

	if crit.Limit == 0 && d.MaxListing > 0 {
		crit.Limit = d.MaxListing
	}

	snap := d.Store.Current()
	apps := filter.Filter(snap.Catalog.Records(), crit, d.now())

	c.JSON(http.StatusOK, ListingResponse{
		Title:           title,
		SnapshotVersion: snap.Version,
		CatalogSize:     snap.Catalog.Len(),
		Count:           len(apps),
		Apps:            apps,
	})
	d.Metrics.RecordQuery(observability.QueryListing, "", true, time.Since(start).Seconds())
}

// GetApp returns one app by id.
//
// GET /v1/apps/:id
func GetApp(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id, err := validation.ParseAppID(c.Param("id"))
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			d.Metrics.RecordQuery(observability.QueryApp, "", false, time.Since(start).Seconds())
			return
		}

		snap := d.Store.Current()
		rec, ok := snap.Catalog.Get(id)
		if !ok {
			abortJSON(c, http.StatusNotFound, "app not found")
			d.Metrics.RecordQuery(observability.QueryApp, "", false, time.Since(start).Seconds())
			return
		}

		c.JSON(http.StatusOK, detailOf(rec, snap))
		d.Metrics.RecordQuery(observability.QueryApp, "", true, time.Since(start).Seconds())
	}
}

func detailOf(rec *datatypes.AppRecord, snap *snapshot.Snapshot) AppDetail {
	others := len(snap.Summary.Author(rec.Author)) - 1
	if others < 0 {
		others = 0
	}
	libs := rec.LibraryNames()
	if libs == nil {
		libs = []string{}
	}
	files := rec.Filenames()
	if files == nil {
		files = []string{}
	}
	return AppDetail{
		App:               rec,
		AppcacheSizeTotal: rec.AppcacheSizeTotal(),
		LibraryNames:      libs,
		Filenames:         files,
		SnapshotVersion:   snap.Version,
		OtherAppsByAuthor: others,
	}
}

// GetAuthor returns an author's apps from the summary's author index.
//
// GET /v1/authors/:author
func GetAuthor(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		author := c.Param("author")
		if err := validation.ValidateAuthor(author); err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			return
		}

		snap := d.Store.Current()
		apps := snap.Summary.Author(author)
		if len(apps) == 0 {
			slog.Debug("author not found", "author", author)
			abortJSON(c, http.StatusNotFound, "author not found")
			return
		}

		c.JSON(http.StatusOK, AuthorResponse{
			Author:          author,
			SnapshotVersion: snap.Version,
			Count:           len(apps),
			Apps:            apps,
		})
	}
}

// SummaryResponse is returned by GET /v1/summary.
type SummaryResponse struct {
	SnapshotVersion uint64                `json:"snapshot_version"`
	PublishedAt     time.Time             `json:"published_at"`
	Source          string                `json:"source"`
	Summary         *summary.Summary      `json:"summary"`
	TopAuthors      []summary.AuthorCount `json:"top_authors"`
	Cache           *stats.CacheStats     `json:"cache,omitempty"`
}

// GetSummary returns the catalog-wide statistics.
//
// GET /v1/summary?top=N
func GetSummary(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		top, err := validation.ParseBucketCount(c.Query("top"), d.buckets())
		if err != nil {
			abortJSON(c, http.StatusBadRequest, err.Error())
			return
		}

		snap := d.Store.Current()
		resp := SummaryResponse{
			SnapshotVersion: snap.Version,
			PublishedAt:     snap.PublishedAt,
			Source:          snap.Source,
			Summary:         snap.Summary,
			TopAuthors:      snap.Summary.TopAuthors(top),
		}
		if d.Cache != nil {
			cs := d.Cache.Stats()
			resp.Cache = &cs
		}
		c.JSON(http.StatusOK, resp)
		d.Metrics.RecordQuery(observability.QuerySummary, "", true, time.Since(start).Seconds())
	}
}
