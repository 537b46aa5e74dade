// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/getters"
)

// Kind is the aggregation a graph uses. Pie is rendered differently from
// Frequency but aggregates the same way.
type Kind string

const (
	KindDistribution Kind = "distribution"
	KindFrequency    Kind = "frequency"
	KindPie          Kind = "pie"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDistribution, KindFrequency, KindPie:
		return true
	}
	return false
}

// IsFrequency reports whether k aggregates by Frequency.
func (k Kind) IsFrequency() bool {
	return k == KindFrequency || k == KindPie
}

var (
	// ErrUnknownGraph is returned by lookups of unregistered graph ids.
	ErrUnknownGraph = errors.New("unknown graph")

	// ErrDuplicateGraph is returned when registering an id twice.
	ErrDuplicateGraph = errors.New("graph already registered")

	// ErrInvalidGraph is returned for descriptors missing an id, getter, or
	// valid kind.
	ErrInvalidGraph = errors.New("invalid graph descriptor")
)

// GraphDescriptor declares one analytical view.
type GraphDescriptor struct {
	Kind   Kind           `json:"kind"`
	ID     string         `json:"id"`
	Title  string         `json:"title"`
	Getter getters.Getter `json:"-"`

	// TimeDependent marks getters whose values drift with the clock.
	// Their results are not cached.
	TimeDependent bool `json:"time_dependent,omitempty"`
}

// Registry maps stable graph ids to descriptors.
//
// Thread Safety:
//
//	Safe for concurrent use. Graphs keeps registration order.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]GraphDescriptor
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]GraphDescriptor)}
}

// Register adds a descriptor.
//
// Outputs:
//
//	error - ErrInvalidGraph or ErrDuplicateGraph (wrapped with the id).
func (r *Registry) Register(d GraphDescriptor) error {
	if d.ID == "" || d.Getter == nil || !d.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGraph, d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateGraph, d.ID)
	}
	r.byID[d.ID] = d
	r.order = append(r.order, d.ID)
	return nil
}

// Lookup returns the descriptor for id.
func (r *Registry) Lookup(id string) (GraphDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.byID[id]
	if !ok {
		return GraphDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownGraph, id)
	}
	return d, nil
}

// Graphs returns all descriptors in registration order.
func (r *Registry) Graphs() []GraphDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]GraphDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// DefaultRegistry returns the built-in graphs. now drives the "days since"
// graphs; pass time.Now outside tests.
func DefaultRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	r := NewRegistry()
	for _, d := range []GraphDescriptor{
		{Kind: KindDistribution, ID: "rating_count", Title: "num ratings", Getter: getters.RatingCount},
		{Kind: KindDistribution, ID: "rating", Title: "avg rating", Getter: getters.AverageRating},
		{Kind: KindDistribution, ID: "package_size", Title: "package size", Getter: getters.PackageSize},
		{Kind: KindFrequency, ID: "library", Title: "library", Getter: getters.LibraryNames},
		{Kind: KindFrequency, ID: "category", Title: "category", Getter: getters.CategoryStrings},
		{Kind: KindFrequency, ID: "author", Title: "author", Getter: getters.Author},
		{Kind: KindFrequency, ID: "locale", Title: "locale", Getter: getters.SupportedLocales},
		{Kind: KindFrequency, ID: "region", Title: "region", Getter: getters.SupportedRegions},
		{Kind: KindFrequency, ID: "permission", Title: "permission", Getter: getters.PermissionKeys},
		{Kind: KindFrequency, ID: "activity", Title: "activity", Getter: getters.ActivityKeys},
		{Kind: KindPie, ID: "installs_allowed_from", Title: "installs allowed from", Getter: getters.InstallsAllowedFrom},
		{Kind: KindDistribution, ID: "days_since_reviewed", Title: "days since reviewed", Getter: getters.DaysSinceReviewed(now), TimeDependent: true},
		{Kind: KindDistribution, ID: "days_since_created", Title: "days since created", Getter: getters.DaysSinceCreated(now), TimeDependent: true},
		{Kind: KindDistribution, ID: "appcache_size", Title: "appcache size", Getter: getters.AppcacheSize},
		{Kind: KindFrequency, ID: "icon_size", Title: "icon size", Getter: getters.IconSizes},
		{Kind: KindPie, ID: "payment_category", Title: "payment category", Getter: getters.PaymentCategory},
		{Kind: KindFrequency, ID: "filename", Title: "filename", Getter: getters.Filenames},
		{Kind: KindPie, ID: "has_appcache", Title: "has appcache", Getter: getters.HasAppcache},
	} {
		// Built-in descriptors are static and unique.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}
