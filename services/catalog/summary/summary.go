// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package summary computes the catalog-wide statistics published alongside
// each catalog snapshot.
package summary

import (
	"sort"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// Summary holds aggregate counters and the author index for one catalog.
// It is never modified after Compute returns.
type Summary struct {
	TotalApps          int        `json:"total_apps"`
	WithManifest       int        `json:"with_manifest"`
	ManifestErrors     int        `json:"manifest_errors"`
	AppcacheApps       int        `json:"appcache_apps"`
	RatedApps          int        `json:"rated_apps"`
	ReviewedApps       int        `json:"reviewed_apps"`
	TotalRatings       int64      `json:"total_ratings"`
	TotalPackageBytes  int64      `json:"total_package_bytes"`
	TotalAppcacheBytes int64      `json:"total_appcache_bytes"`
	DistinctAuthors    int        `json:"distinct_authors"`
	OldestCreated      *time.Time `json:"oldest_created,omitempty"`
	NewestCreated      *time.Time `json:"newest_created,omitempty"`
	ComputedAt         time.Time  `json:"computed_at"`

	authorIndex map[string][]*datatypes.AppRecord
	authors     []string
}

// AuthorCount pairs an author with the number of apps they published.
type AuthorCount struct {
	Author string `json:"author"`
	Apps   int    `json:"apps"`
}

// Compute walks the catalog once and builds its Summary.
//
// # Description
//
// Counts records with manifests, manifest errors, appcaches, ratings and
// reviews; sums ratings and byte sizes; tracks the creation date range; and
// indexes records by exact author name in catalog order.
//
// # Inputs
//
//   - c: Catalog to summarise. Nil is treated as empty.
//   - now: Stamp for ComputedAt.
//
// # Outputs
//
//   - *Summary: Never nil.
func Compute(c *datatypes.Catalog, now time.Time) *Summary {
	s := &Summary{
		ComputedAt:  now.UTC(),
		authorIndex: make(map[string][]*datatypes.AppRecord),
	}

	for _, r := range c.Records() {
		s.TotalApps++
		if r.Manifest != nil {
			s.WithManifest++
		}
		if r.ManifestError != "" {
			s.ManifestErrors++
		}
		if r.HasAppcache() {
			s.AppcacheApps++
			s.TotalAppcacheBytes += r.AppcacheSizeTotal()
		}
		if r.Ratings != nil {
			s.RatedApps++
			s.TotalRatings += int64(r.Ratings.Count)
		}
		if r.Reviewed.Valid {
			s.ReviewedApps++
		}
		if r.PackageSize > 0 {
			s.TotalPackageBytes += r.PackageSize
		}
		if r.Created.Valid {
			created := r.Created.Time
			if s.OldestCreated == nil || created.Before(*s.OldestCreated) {
				s.OldestCreated = &created
			}
			if s.NewestCreated == nil || created.After(*s.NewestCreated) {
				s.NewestCreated = &created
			}
		}
		s.authorIndex[r.Author] = append(s.authorIndex[r.Author], r)
	}

	s.authors = make([]string, 0, len(s.authorIndex))
	for a := range s.authorIndex {
		s.authors = append(s.authors, a)
	}
	sort.Strings(s.authors)
	s.DistinctAuthors = len(s.authors)
	return s
}

// Author returns the records published by author, in catalog order.
// The slice is shared and must not be modified.
func (s *Summary) Author(author string) []*datatypes.AppRecord {
	if s == nil {
		return nil
	}
	return s.authorIndex[author]
}

// Authors returns every author name, sorted.
func (s *Summary) Authors() []string {
	if s == nil {
		return nil
	}
	return s.authors
}

// TopAuthors returns the n authors with the most apps, ties broken by name.
func (s *Summary) TopAuthors(n int) []AuthorCount {
	if s == nil || n <= 0 {
		return []AuthorCount{}
	}
	all := make([]AuthorCount, 0, len(s.authors))
	for _, a := range s.authors {
		all = append(all, AuthorCount{Author: a, Apps: len(s.authorIndex[a])})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Apps > all[j].Apps })
	if len(all) > n {
		all = all[:n]
	}
	return all
}
