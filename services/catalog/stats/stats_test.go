// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/getters"
)

func withScripts(id int64, scripts ...string) *datatypes.AppRecord {
	r := &datatypes.AppRecord{ID: id, Manifest: &datatypes.Manifest{Scripts: scripts}}
	r.Prepare()
	return r
}

func rated(id int64, count int) *datatypes.AppRecord {
	r := &datatypes.AppRecord{ID: id, Ratings: &datatypes.Ratings{Count: count}}
	r.Prepare()
	return r
}

// ============================================================================
// Distribution Tests
// ============================================================================

func TestDistribution_TotalCountsAllRecords(t *testing.T) {
	recs := []*datatypes.AppRecord{rated(1, 4), {ID: 2}, rated(3, 10)}

	res := Distribution(recs, getters.RatingCount)

	assert.Equal(t, []float64{4, 10}, res.Values)
	assert.Equal(t, 3, res.Total)
}

func TestDistribution_Empty(t *testing.T) {
	res := Distribution(nil, getters.RatingCount)
	assert.Empty(t, res.Values)
	assert.NotNil(t, res.Values)
	assert.Zero(t, res.Total)
	assert.Equal(t, DistributionSummary{}, res.Summary())
	assert.Nil(t, res.Histogram(4))
}

func TestDistribution_SkipsLabels(t *testing.T) {
	recs := []*datatypes.AppRecord{{ID: 1, Author: "x"}}
	res := Distribution(recs, getters.Author)
	assert.Empty(t, res.Values)
	assert.Equal(t, 1, res.Total)
}

func TestDistributionSummary(t *testing.T) {
	res := DistributionResult{Values: []float64{5, 1, 3, 7}, Total: 4}
	s := res.Summary()

	assert.Equal(t, 4, s.Count)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 7.0, s.Max)
	assert.Equal(t, 4.0, s.Mean)
	assert.Equal(t, 4.0, s.Median)
	assert.Equal(t, []float64{5, 1, 3, 7}, res.Values, "summary must not reorder values")
}

func TestDistributionHistogram(t *testing.T) {
	res := DistributionResult{Values: []float64{0, 1, 2, 3, 4, 10}}
	bins := res.Histogram(2)

	require.Len(t, bins, 2)
	assert.Equal(t, 5, bins[0].Count)
	assert.Equal(t, 1, bins[1].Count)
	assert.Equal(t, 10.0, bins[1].Upper)

	flat := DistributionResult{Values: []float64{2, 2}}.Histogram(3)
	require.Len(t, flat, 1)
	assert.Equal(t, 2, flat[0].Count)
}

// ============================================================================
// Frequency Tests
// ============================================================================

func TestFrequency_MultiValued(t *testing.T) {
	recs := []*datatypes.AppRecord{
		withScripts(1, "jquery.js"),
		withScripts(2),
		withScripts(3, "jquery.js", "zepto.js"),
	}

	res := Frequency(recs, getters.LibraryNames, 10)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Distinct)
	assert.Equal(t, []Bucket{{"jquery", 2}, {"zepto", 1}}, res.Buckets)
}

func TestFrequency_TopNAndTies(t *testing.T) {
	recs := []*datatypes.AppRecord{
		{ID: 1, Author: "b"}, {ID: 2, Author: "a"}, {ID: 3, Author: "c"},
		{ID: 4, Author: "c"}, {ID: 5, Author: ""},
	}

	res := Frequency(recs, getters.Author, 3)
	assert.Equal(t, []Bucket{{"c", 2}, {"a", 1}, {"b", 1}}, res.Buckets)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 4, res.Distinct)

	sum := 0
	for _, b := range res.Buckets {
		sum += b.Count
	}
	assert.LessOrEqual(t, sum, res.Total)
}

func TestFrequency_UncategorizedAndNumbers(t *testing.T) {
	blank := func(*datatypes.AppRecord) getters.Value { return getters.Labels("", " ") }
	res := Frequency([]*datatypes.AppRecord{{ID: 1}}, blank, 5)
	assert.Equal(t, []Bucket{{Uncategorized, 2}}, res.Buckets)

	recs := []*datatypes.AppRecord{rated(1, 3), rated(2, 3), {ID: 3}}
	res = Frequency(recs, getters.RatingCount, 5)
	assert.Equal(t, []Bucket{{"3", 2}}, res.Buckets)
	assert.Equal(t, 3, res.Total)
}

func TestFrequency_NonPositiveN(t *testing.T) {
	res := Frequency([]*datatypes.AppRecord{{ID: 1, Author: "a"}}, getters.Author, 0)
	assert.Empty(t, res.Buckets)
	assert.NotNil(t, res.Buckets)
	assert.Equal(t, 1, res.Total)
}

// ============================================================================
// Registry Tests
// ============================================================================

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(time.Now)
	graphs := r.Graphs()

	require.Len(t, graphs, 18)
	assert.Equal(t, "rating_count", graphs[0].ID)
	assert.Equal(t, "installs_allowed_from", graphs[10].ID)

	d, err := r.Lookup("installs_allowed_from")
	require.NoError(t, err)
	assert.Equal(t, KindPie, d.Kind)
	assert.True(t, d.Kind.IsFrequency())

	_, err = r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownGraph)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(GraphDescriptor{Kind: KindFrequency, ID: "x", Getter: getters.Author}))

	assert.ErrorIs(t, r.Register(GraphDescriptor{Kind: KindFrequency, ID: "x", Getter: getters.Author}), ErrDuplicateGraph)
	assert.ErrorIs(t, r.Register(GraphDescriptor{Kind: "bar", ID: "y", Getter: getters.Author}), ErrInvalidGraph)
	assert.ErrorIs(t, r.Register(GraphDescriptor{Kind: KindPie, ID: "z"}), ErrInvalidGraph)
}

// ============================================================================
// ResultCache Tests
// ============================================================================

func TestResultCache_HitAndVersionFlush(t *testing.T) {
	c := NewResultCache(10)
	calls := 0
	compute := func() FrequencyResult {
		calls++
		return FrequencyResult{Total: calls}
	}

	key := CacheKey(KindFrequency, "author", 10, "")
	v, hit := c.Frequency(1, key, compute)
	assert.False(t, hit)
	assert.Equal(t, 1, v.Total)

	v, hit = c.Frequency(1, key, compute)
	assert.True(t, hit)
	assert.Equal(t, 1, v.Total)

	v, hit = c.Frequency(2, key, compute)
	assert.False(t, hit)
	assert.Equal(t, 2, v.Total)

	// An older version bypasses the cache and leaves it intact.
	v, hit = c.Frequency(1, key, compute)
	assert.False(t, hit)
	assert.Equal(t, 3, v.Total)

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Version)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(3), stats.Misses)
}

func TestResultCache_Eviction(t *testing.T) {
	c := NewResultCache(2)
	for i, k := range []string{"a", "b", "c"} {
		c.Do(1, k, func() any { return i })
	}
	assert.Equal(t, 2, c.Stats().Entries)

	_, hit := c.Do(1, "a", func() any { return -1 })
	assert.False(t, hit, "oldest entry should be evicted")

	c.Clear()
	assert.Zero(t, c.Stats().Entries)
}

func TestResultCache_ConcurrentMissesShareComputation(t *testing.T) {
	c := NewResultCache(0)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]any, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = c.Do(1, "k", func() any {
				calls.Add(1)
				<-release
				return "value"
			})
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "value", r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
