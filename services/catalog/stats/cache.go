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
	"container/list"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheEntries bounds a ResultCache when no size is given.
const DefaultCacheEntries = 512

// CacheStats reports ResultCache activity.
type CacheStats struct {
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Entries int    `json:"entries"`
	Version uint64 `json:"version"`
}

type cacheEntry struct {
	key   string
	value any
	elem  *list.Element
}

// ResultCache memoizes aggregation results for one snapshot version.
//
// Description:
//
//	Results are keyed by (version, kind, graph, n, criteria key). When a
//	request arrives for a newer version the cache is flushed, so results
//	never outlive the snapshot they were computed from. Concurrent misses
//	for the same key share one computation via singleflight.
//
// Limitations:
//
//	A request for an older version than the cache holds bypasses the cache.
//
// Thread Safety:
//
//	Safe for concurrent use.
type ResultCache struct {
	mu         sync.Mutex
	version    uint64
	entries    map[string]*cacheEntry
	lru        *list.List
	maxEntries int
	flight     singleflight.Group

	hits   int64
	misses int64
}

// NewResultCache creates a cache holding at most maxEntries results.
// maxEntries <= 0 uses DefaultCacheEntries.
func NewResultCache(maxEntries int) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &ResultCache{
		entries:    make(map[string]*cacheEntry),
		lru:        list.New(),
		maxEntries: maxEntries,
	}
}

// CacheKey builds the key for one aggregation request.
func CacheKey(kind Kind, graph string, n int, criteriaKey string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('|')
	b.WriteString(graph)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(n))
	b.WriteByte('|')
	b.WriteString(criteriaKey)
	return b.String()
}

// Do returns the cached value for key at version, computing it once when
// absent. The bool result reports a cache hit.
func (c *ResultCache) Do(version uint64, key string, compute func() any) (any, bool) {
	c.mu.Lock()
	switch {
	case version > c.version:
		c.flushLocked(version)
	case version < c.version:
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		return compute(), false
	}
	if e, ok := c.entries[key]; ok {
		c.lru.MoveToFront(e.elem)
		c.mu.Unlock()
		atomic.AddInt64(&c.hits, 1)
		return e.value, true
	}
	c.mu.Unlock()
	atomic.AddInt64(&c.misses, 1)

	flightKey := strconv.FormatUint(version, 10) + "#" + key
	v, _, _ := c.flight.Do(flightKey, func() (interface{}, error) {
		value := compute()
		c.store(version, key, value)
		return value, nil
	})
	return v, false
}

// Distribution is Do for distribution results.
func (c *ResultCache) Distribution(version uint64, key string, compute func() DistributionResult) (DistributionResult, bool) {
	v, hit := c.Do(version, key, func() any { return compute() })
	return v.(DistributionResult), hit
}

// Frequency is Do for frequency results.
func (c *ResultCache) Frequency(version uint64, key string, compute func() FrequencyResult) (FrequencyResult, bool) {
	v, hit := c.Do(version, key, func() any { return compute() })
	return v.(FrequencyResult), hit
}

// Stats returns counters and the current size.
func (c *ResultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: len(c.entries),
		Version: c.version,
	}
}

// Clear drops all entries without changing the version.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked(c.version)
}

func (c *ResultCache) store(version uint64, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.version {
		return
	}
	if _, exists := c.entries[key]; exists {
		return
	}
	for len(c.entries) >= c.maxEntries {
		oldest := c.lru.Back()
		if oldest == nil {
			break
		}
		k := oldest.Value.(string)
		c.lru.Remove(oldest)
		delete(c.entries, k)
	}
	e := &cacheEntry{key: key, value: value}
	e.elem = c.lru.PushFront(key)
	c.entries[key] = e
}

func (c *ResultCache) flushLocked(version uint64) {
	c.version = version
	c.entries = make(map[string]*cacheEntry)
	c.lru.Init()
}
