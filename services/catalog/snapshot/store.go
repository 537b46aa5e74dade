// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package snapshot holds the currently published catalog and its summary.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/summary"
)

// Snapshot is one published (Catalog, Summary) pair. Queries hold a
// Snapshot for their whole duration so they never observe a mix of two
// catalogs.
type Snapshot struct {
	Version     uint64             `json:"version"`
	Catalog     *datatypes.Catalog `json:"-"`
	Summary     *summary.Summary   `json:"summary"`
	PublishedAt time.Time          `json:"published_at"`
	Source      string             `json:"source"`
}

// Store publishes snapshots atomically.
//
// # Description
//
// Current is a single atomic load and never blocks, including while a
// Publish is computing the next summary. Publishes are serialised so
// versions increase by one per publish.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates a store holding an empty catalog at version 0.
func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock is NewStore with an injectable clock.
func NewStoreWithClock(now func() time.Time) *Store {
	s := &Store{now: now}
	empty := datatypes.EmptyCatalog()
	s.current.Store(&Snapshot{
		Catalog:     empty,
		Summary:     summary.Compute(empty, now()),
		PublishedAt: now().UTC(),
		Source:      "empty",
	})
	return s
}

// Current returns the published snapshot.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Publish computes the summary of c and makes it current.
//
// # Inputs
//
//   - c: New catalog. Nil publishes an empty catalog.
//   - source: Name of the source that produced c.
//
// # Outputs
//
//   - *Snapshot: The snapshot now current.
func (s *Store) Publish(c *datatypes.Catalog, source string) *Snapshot {
	if c == nil {
		c = datatypes.EmptyCatalog()
	}
	sum := summary.Compute(c, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Snapshot{
		Version:     s.current.Load().Version + 1,
		Catalog:     c,
		Summary:     sum,
		PublishedAt: s.now().UTC(),
		Source:      source,
	}
	s.current.Store(next)
	return next
}
