// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source provides the catalog loaders a rebuild can run: local
// files, HTTP endpoints, Google Cloud Storage objects, and a synthetic mock.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// ErrNotFound is returned by Registry.Get for unknown selectors.
var ErrNotFound = errors.New("source not found")

// Source loads a complete catalog.
//
// Implementations must honour ctx cancellation and may call progress from
// any goroutine.
type Source interface {
	// Name is the selector clients use to request this source.
	Name() string

	// Fetch loads and decodes the catalog.
	Fetch(ctx context.Context, progress datatypes.ProgressFunc) (*datatypes.Catalog, datatypes.DecodeStats, error)
}

// Registry maps selectors to sources.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates a registry holding the given sources.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s under s.Name(). Names must be unique and non-empty.
func (r *Registry) Register(s Source) error {
	if s == nil || s.Name() == "" {
		return errors.New("source must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[s.Name()]; exists {
		return fmt.Errorf("source %q already registered", s.Name())
	}
	r.sources[s.Name()] = s
	return nil
}

// Get returns the source registered under name.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return s, nil
}

// Names returns the registered selectors, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
