// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package filter reduces catalog record sequences by optional criteria.
//
// # Combination
//
// Every supplied criterion must hold (conjunction). Criteria are evaluated
// in a single ordered pass and Limit caps the number of records that pass
// all of them. Unsupplied criteria do not constrain the result.
package filter

import (
	"net/url"
	"strconv"
	"strings"
)

// Criteria is a set of optional record constraints. A nil field means "not
// constrained".
type Criteria struct {
	// Author matches the record author exactly.
	Author *string `json:"author,omitempty"`

	// Search is a case-sensitive substring of the record's JSON form.
	Search *string `json:"search,omitempty"`

	// MinRatings is an inclusive lower bound on ratings.count.
	MinRatings *int `json:"min_ratings,omitempty"`

	// MaxRatings is an exclusive upper bound on ratings.count.
	MaxRatings *int `json:"max_ratings,omitempty"`

	// Activity must be one of the manifest activity keys.
	Activity *string `json:"activity,omitempty"`

	// Library must be one of the derived library names.
	Library *string `json:"library,omitempty"`

	// Filename must be one of the derived script filenames.
	Filename *string `json:"filename,omitempty"`

	// DaysOld keeps records reviewed fewer than this many days ago.
	DaysOld *float64 `json:"days_old,omitempty"`

	// Since and Until bound the creation date as [Since, Until). They are
	// kept as raw text; unparsable bounds are ignored at evaluation.
	Since *string `json:"since,omitempty"`
	Until *string `json:"until,omitempty"`

	// Limit caps the result size. Zero means no cap.
	Limit int `json:"limit,omitempty"`
}

// IsEmpty reports whether no criterion is set.
func (c Criteria) IsEmpty() bool {
	return c.Key() == ""
}

// Key returns a canonical encoding of the criteria, stable across field
// order, for use as a cache key. The empty criteria encode as "".
func (c Criteria) Key() string {
	v := url.Values{}
	setStr := func(k string, p *string) {
		if p != nil {
			v.Set(k, *p)
		}
	}
	setStr("author", c.Author)
	setStr("search", c.Search)
	setStr("activity", c.Activity)
	setStr("library", c.Library)
	setStr("filename", c.Filename)
	setStr("since", c.Since)
	setStr("until", c.Until)
	if c.MinRatings != nil {
		v.Set("min_ratings", strconv.Itoa(*c.MinRatings))
	}
	if c.MaxRatings != nil {
		v.Set("max_ratings", strconv.Itoa(*c.MaxRatings))
	}
	if c.DaysOld != nil {
		v.Set("days_old", strconv.FormatFloat(*c.DaysOld, 'f', -1, 64))
	}
	if c.Limit > 0 {
		v.Set("limit", strconv.Itoa(c.Limit))
	}
	return v.Encode()
}

// FromQuery maps request query parameters to Criteria.
//
// # Description
//
// Recognised keys: author, search, min_ratings, max_ratings, activity,
// library, filename, days_old, since, until, limit. Empty values are
// ignored. Non-numeric numeric bounds are dropped rather than rejected, as
// is a negative limit.
//
// # Examples
//
//	c := filter.FromQuery(url.Values{"author": {"Mozilla"}, "min_ratings": {"5"}})
func FromQuery(q url.Values) Criteria {
	var c Criteria

	c.Author = strParam(q, "author")
	c.Search = strParam(q, "search")
	c.Activity = strParam(q, "activity")
	c.Library = strParam(q, "library")
	c.Filename = strParam(q, "filename")
	c.Since = strParam(q, "since")
	c.Until = strParam(q, "until")
	c.MinRatings = intParam(q, "min_ratings")
	c.MaxRatings = intParam(q, "max_ratings")

	if s := strings.TrimSpace(q.Get("days_old")); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			c.DaysOld = &f
		}
	}
	if p := intParam(q, "limit"); p != nil && *p > 0 {
		c.Limit = *p
	}
	return c
}

func strParam(q url.Values, key string) *string {
	s := q.Get(key)
	if s == "" {
		return nil
	}
	return &s
}

func intParam(q url.Values, key string) *int {
	s := strings.TrimSpace(q.Get(key))
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

// Ptr returns a pointer to v. Convenient for building Criteria literals.
func Ptr[T any](v T) *T { return &v }
