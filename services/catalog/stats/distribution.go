// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stats implements the catalog aggregations: distributions of
// numeric values, top-N label frequencies, the graph registry that names
// them, and a result cache keyed on the published snapshot.
package stats

import (
	"math"
	"sort"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/getters"
)

// DistributionResult holds the numeric values a getter produced.
//
// Total is the number of input records, not len(Values): records for which
// the getter returned no number still count.
type DistributionResult struct {
	Values []float64 `json:"values"`
	Total  int       `json:"total"`
}

// Distribution collects the numeric values of g over records, in record
// order. Label and None values are skipped.
func Distribution(records []*datatypes.AppRecord, g getters.Getter) DistributionResult {
	res := DistributionResult{
		Values: make([]float64, 0, len(records)),
		Total:  len(records),
	}
	for _, r := range records {
		if f, ok := g(r).Number(); ok && !math.IsNaN(f) {
			res.Values = append(res.Values, f)
		}
	}
	return res
}

// DistributionSummary gives descriptive statistics for a distribution.
type DistributionSummary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Sum    float64 `json:"sum"`
}

// Summary computes min, max, mean and median. All fields are zero for an
// empty distribution.
func (d DistributionResult) Summary() DistributionSummary {
	n := len(d.Values)
	if n == 0 {
		return DistributionSummary{}
	}

	sorted := append([]float64(nil), d.Values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return DistributionSummary{
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   sum / float64(n),
		Median: median,
		Sum:    sum,
	}
}

// HistogramBin is one equal-width bin, covering [Lower, Upper). The last
// bin also includes its upper edge.
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram buckets the values into the given number of equal-width bins
// between the minimum and maximum. It returns nil for bins <= 0 or an empty
// distribution, and a single bin when every value is equal.
func (d DistributionResult) Histogram(bins int) []HistogramBin {
	if bins <= 0 || len(d.Values) == 0 {
		return nil
	}

	s := d.Summary()
	if s.Min == s.Max {
		return []HistogramBin{{Lower: s.Min, Upper: s.Max, Count: len(d.Values)}}
	}

	width := (s.Max - s.Min) / float64(bins)
	out := make([]HistogramBin, bins)
	for i := range out {
		out[i].Lower = s.Min + float64(i)*width
		out[i].Upper = s.Min + float64(i+1)*width
	}
	out[bins-1].Upper = s.Max

	for _, v := range d.Values {
		idx := int((v - s.Min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}
