// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// fallbackLayouts are tried after strfmt's RFC3339 variants. The cataloging
// tool emits naive local timestamps without a zone; those are read as UTC.
var fallbackLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a catalog or query timestamp.
//
// # Description
//
// Accepts RFC3339 (with or without fractional seconds, via strfmt), naive
// date-times, plain dates, and integer unix seconds. The boolean result is
// false for empty or unrecognised input; callers treat that as "no value"
// rather than as an error.
//
// # Inputs
//
//   - s: Raw timestamp text. Surrounding whitespace is ignored.
//
// # Outputs
//
//   - time.Time: Parsed instant in UTC.
//   - bool: True if s was recognised.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return time.Time(dt).UTC(), true
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}

	return time.Time{}, false
}

// Timestamp is an optional point in time read from catalog input.
//
// Raw keeps the original text so that records with unparsable dates still
// serialise faithfully. Valid is false when the field was absent or could not
// be parsed.
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

// NewTimestamp builds a valid Timestamp for t.
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	return Timestamp{Raw: t.Format(time.RFC3339), Time: t, Valid: true}
}

// UnmarshalJSON accepts strings, numbers (unix seconds) and null. It never
// fails on well-formed JSON; unrecognised values leave Valid false.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		ts.Raw = s
		ts.Time, ts.Valid = ParseTime(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return nil
	}
	ts.Raw = n.String()
	if f, err := n.Float64(); err == nil {
		ts.Time = time.Unix(int64(f), 0).UTC()
		ts.Valid = true
	}
	return nil
}

// MarshalJSON writes the raw text back, or null when the field was absent.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.Raw == "" && !ts.Valid {
		return []byte("null"), nil
	}
	raw := ts.Raw
	if raw == "" {
		raw = ts.Time.Format(time.RFC3339)
	}
	return json.Marshal(raw)
}

// IsZero reports whether the timestamp carries no information at all.
// Used by encoding/json's omitzero.
func (ts Timestamp) IsZero() bool {
	return ts.Raw == "" && !ts.Valid
}
