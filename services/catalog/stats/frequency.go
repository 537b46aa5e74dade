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
	"sort"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/getters"
)

// Uncategorized is the bucket for blank labels.
const Uncategorized = "uncategorized"

// Bucket is one label and the number of times it occurred.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// FrequencyResult holds the top-N buckets of a frequency count.
//
// Total is the number of input records. Distinct is the number of distinct
// labels seen before the top-N cut.
type FrequencyResult struct {
	Buckets  []Bucket `json:"buckets"`
	Total    int      `json:"total"`
	Distinct int      `json:"distinct"`
}

// Frequency tallies the labels g produces over records and returns the n
// most frequent.
//
// # Description
//
// Each label in a Labels value counts once; a Number value counts as its
// shortest decimal form; None contributes nothing. Blank labels go to the
// Uncategorized bucket. Buckets are ordered by count descending, then label
// ascending, so the output is deterministic.
//
// # Inputs
//
//   - records: Input sequence.
//   - g: Getter to tally.
//   - n: Maximum number of buckets. n <= 0 yields no buckets.
//
// # Outputs
//
//   - FrequencyResult: Buckets never nil.
//
// # Examples
//
// Records with libraries ["jquery"], [] and ["jquery","zepto"] give
// buckets jquery:2, zepto:1 with Total 3.
func Frequency(records []*datatypes.AppRecord, g getters.Getter, n int) FrequencyResult {
	counts := make(map[string]int)
	for _, r := range records {
		v := g(r)
		switch v.Kind() {
		case getters.KindNumber:
			f, _ := v.Number()
			counts[strconv.FormatFloat(f, 'f', -1, 64)]++
		case getters.KindLabels:
			labels, _ := v.Labels()
			for _, l := range labels {
				if strings.TrimSpace(l) == "" {
					l = Uncategorized
				}
				counts[l]++
			}
		}
	}

	res := FrequencyResult{
		Buckets:  []Bucket{},
		Total:    len(records),
		Distinct: len(counts),
	}
	if n <= 0 || len(counts) == 0 {
		return res
	}

	all := make([]Bucket, 0, len(counts))
	for label, count := range counts {
		all = append(all, Bucket{Label: label, Count: count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Label < all[j].Label
	})
	if len(all) > n {
		all = all[:n]
	}
	res.Buckets = all
	return res
}
