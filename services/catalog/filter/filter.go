// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package filter

import (
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
	"github.com/AleutianAI/AleutianMarket/services/catalog/getters"
)

// predicate reports whether a record satisfies one criterion.
type predicate func(*datatypes.AppRecord) bool

// Filter returns the records satisfying every criterion in c.
//
// # Description
//
// Input order is preserved. The input slice is never modified; the result
// is always a freshly allocated slice.
//
// # Inputs
//
//   - records: Records in catalog order.
//   - c: Criteria; the zero value keeps everything.
//   - now: Reference time for DaysOld.
//
// # Outputs
//
//   - []*datatypes.AppRecord: Matching records, at most c.Limit when set.
//
// # Limitations
//
//   - Records whose creation date is unparsable pass the date window.
//   - Records without ratings never satisfy rating bounds, and records
//     never reviewed never satisfy DaysOld.
func Filter(records []*datatypes.AppRecord, c Criteria, now time.Time) []*datatypes.AppRecord {
	preds := compile(c, now)

	capacity := len(records)
	if c.Limit > 0 && c.Limit < capacity {
		capacity = c.Limit
	}
	out := make([]*datatypes.AppRecord, 0, capacity)

next:
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, p := range preds {
			if !p(r) {
				continue next
			}
		}
		out = append(out, r)
		if c.Limit > 0 && len(out) >= c.Limit {
			break
		}
	}
	return out
}

// compile turns the supplied criteria into predicates, cheapest first.
func compile(c Criteria, now time.Time) []predicate {
	var preds []predicate

	if c.Author != nil {
		author := *c.Author
		preds = append(preds, func(r *datatypes.AppRecord) bool { return r.Author == author })
	}

	if since, until := parseBound(c.Since), parseBound(c.Until); since != nil || until != nil {
		preds = append(preds, func(r *datatypes.AppRecord) bool {
			if !r.Created.Valid {
				return true
			}
			if since != nil && r.Created.Time.Before(*since) {
				return false
			}
			if until != nil && !r.Created.Time.Before(*until) {
				return false
			}
			return true
		})
	}

	if c.MinRatings != nil {
		minimum := *c.MinRatings
		preds = append(preds, func(r *datatypes.AppRecord) bool {
			return r.Ratings != nil && r.Ratings.Count >= minimum
		})
	}
	if c.MaxRatings != nil {
		maximum := *c.MaxRatings
		preds = append(preds, func(r *datatypes.AppRecord) bool {
			return r.Ratings != nil && r.Ratings.Count < maximum
		})
	}

	if c.Activity != nil {
		preds = append(preds, labelPredicate(getters.ActivityKeys, *c.Activity))
	}
	if c.Library != nil {
		preds = append(preds, labelPredicate(getters.LibraryNames, *c.Library))
	}
	if c.Filename != nil {
		preds = append(preds, labelPredicate(getters.Filenames, *c.Filename))
	}

	if c.DaysOld != nil {
		threshold := *c.DaysOld
		daysSince := getters.DaysSinceReviewed(func() time.Time { return now })
		preds = append(preds, func(r *datatypes.AppRecord) bool {
			days, ok := daysSince(r).Number()
			return ok && days < threshold
		})
	}

	if c.Search != nil {
		needle := *c.Search
		preds = append(preds, func(r *datatypes.AppRecord) bool {
			return strings.Contains(r.Serialized(), needle)
		})
	}

	return preds
}

func labelPredicate(g getters.Getter, label string) predicate {
	return func(r *datatypes.AppRecord) bool {
		return getters.Contains(g(r), label)
	}
}

func parseBound(p *string) *time.Time {
	if p == nil {
		return nil
	}
	t, ok := datatypes.ParseTime(*p)
	if !ok {
		return nil
	}
	return &t
}
