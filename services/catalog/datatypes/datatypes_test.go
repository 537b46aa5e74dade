// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Timestamp Tests
// ============================================================================

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"rfc3339", "2013-04-02T10:11:12Z", time.Date(2013, 4, 2, 10, 11, 12, 0, time.UTC), true},
		{"rfc3339 offset", "2013-04-02T12:11:12+02:00", time.Date(2013, 4, 2, 10, 11, 12, 0, time.UTC), true},
		{"naive datetime", "2013-04-02T10:11:12", time.Date(2013, 4, 2, 10, 11, 12, 0, time.UTC), true},
		{"space datetime", "2013-04-02 10:11:12", time.Date(2013, 4, 2, 10, 11, 12, 0, time.UTC), true},
		{"date only", "2013-04-02", time.Date(2013, 4, 2, 0, 0, 0, 0, time.UTC), true},
		{"unix seconds", "86400", time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"empty", "", time.Time{}, false},
		{"garbage", "not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	var ts Timestamp

	require.NoError(t, json.Unmarshal([]byte(`"2013-04-02T10:11:12"`), &ts))
	assert.True(t, ts.Valid)
	assert.Equal(t, "2013-04-02T10:11:12", ts.Raw)

	require.NoError(t, json.Unmarshal([]byte(`"yesterday-ish"`), &ts))
	assert.False(t, ts.Valid)
	assert.Equal(t, "yesterday-ish", ts.Raw)

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())

	require.NoError(t, json.Unmarshal([]byte(`0`), &ts))
	assert.True(t, ts.Valid)
	assert.Equal(t, int64(0), ts.Time.Unix())
}

func TestTimestamp_MarshalKeepsRaw(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2013-04-02 10:11:12"`), &ts))

	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2013-04-02 10:11:12"`, string(out))

	out, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

// ============================================================================
// Record Tests
// ============================================================================

func TestAppRecord_UnmarshalLenientNumbers(t *testing.T) {
	var rec AppRecord
	doc := `{"id": "42", "author": "a", "package_size": 1024.0, "ratings": {"count": "7", "average": 3.5}}`
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))

	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, int64(1024), rec.PackageSize)
	require.NotNil(t, rec.Ratings)
	assert.Equal(t, 7, rec.Ratings.Count)
	assert.InDelta(t, 3.5, rec.Ratings.Average, 1e-9)
}

func TestAppRecord_PrepareAppcache(t *testing.T) {
	rec := &AppRecord{
		ID: 1,
		Manifest: &Manifest{
			AppcachePath: "/cache.appcache",
		},
		AppcacheEntrySizes: map[string]json.RawMessage{
			"a.js":    json.RawMessage(`100`),
			"b.css":   json.RawMessage(`"250"`),
			"c.png":   json.RawMessage(`12.9`),
			"broken":  json.RawMessage(`"n/a"`),
			"missing": json.RawMessage(`null`),
		},
	}
	rec.Prepare()

	assert.True(t, rec.HasAppcache())
	assert.Equal(t, int64(362), rec.AppcacheSizeTotal())
}

func TestAppRecord_PrepareAppcacheWithoutPath(t *testing.T) {
	rec := &AppRecord{
		ID:                 1,
		Manifest:           &Manifest{},
		AppcacheEntrySizes: map[string]json.RawMessage{"a.js": json.RawMessage(`100`)},
	}
	rec.Prepare()

	assert.False(t, rec.HasAppcache())
	assert.Zero(t, rec.AppcacheSizeTotal())
}

func TestAppRecord_LibraryNames(t *testing.T) {
	rec := &AppRecord{
		ID: 1,
		Manifest: &Manifest{
			Scripts: []string{
				"js/lib/jquery-1.9.1.min.js",
				"js/lib/jQuery.js",
				"vendor/underscore.min.js?v=3",
				"js/app.js",
				"",
			},
		},
	}
	rec.Prepare()

	assert.Equal(t, []string{"jquery-1.9.1.min.js", "jQuery.js", "underscore.min.js", "app.js"}, rec.Filenames())
	assert.Equal(t, []string{"jquery", "underscore", "app"}, rec.LibraryNames())
}

func TestLibraryName(t *testing.T) {
	tests := map[string]string{
		"jquery-1.9.1.min.js": "jquery",
		"backbone.js":         "backbone",
		"zepto_v2.js":         "zepto",
		"require-min.js":      "require",
		"d3.v3.min.js":        "d3",
	}
	for in, want := range tests {
		assert.Equal(t, want, libraryName(in), in)
	}
}

func TestAppRecord_SerializedContainsFields(t *testing.T) {
	rec := &AppRecord{ID: 9, Author: "Mozilla & Co", Name: "Fireplace"}
	rec.Prepare()

	assert.Contains(t, rec.Serialized(), `"author":"Mozilla & Co"`)
	assert.Contains(t, rec.Serialized(), `"name":"Fireplace"`)
	assert.NotContains(t, rec.Serialized(), `"created"`)
}

func TestAppRecord_SerializedKeepsSourceDocument(t *testing.T) {
	doc := `{"id": 1, "author": "AT&T <Labs>", "description": "offline maps",
		"manifest": {"developer": {"name": "Zed"}, "name": "Maps \u0026 More"}}`
	c, _, err := DecodeCatalog(context.Background(), strings.NewReader("["+doc+"]"), DecodeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	text := c.Records()[0].Serialized()
	assert.Contains(t, text, "AT&T <Labs>")
	assert.Contains(t, text, "offline maps")
	assert.Contains(t, text, `"developer":{"name":"Zed"}`)
	assert.Contains(t, text, "Maps & More")
	assert.NotContains(t, text, `\u0026`)
	assert.NotContains(t, text, "\n")

	var rec AppRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))
	assert.Contains(t, rec.Serialized(), "offline maps")
}

// ============================================================================
// Catalog Tests
// ============================================================================

func TestNewCatalog_OrdersAndDeduplicates(t *testing.T) {
	records := []*AppRecord{
		{ID: 3, Author: "c"},
		{ID: 1, Author: "a"},
		nil,
		{ID: 3, Author: "c2"},
		{ID: 2, Author: "b"},
	}
	c := NewCatalog(records, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	require.Equal(t, 3, c.Len())
	ids := []int64{}
	for _, r := range c.Records() {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)

	r, ok := c.Get(3)
	require.True(t, ok)
	assert.Equal(t, "c2", r.Author)

	_, ok = c.Get(99)
	assert.False(t, ok)
}

func TestCatalog_NilSafe(t *testing.T) {
	var c *Catalog
	assert.Zero(t, c.Len())
	assert.Nil(t, c.Records())
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Zero(t, EmptyCatalog().Len())
}

// ============================================================================
// Decoder Tests
// ============================================================================

func TestDecodeCatalog_Object(t *testing.T) {
	doc := `{
		"2": {"id": 2, "author": "b", "created": "2013-01-01T00:00:00"},
		"10": {"author": "keyed"},
		"1": {"id": 1, "author": "a"},
		"bad": "not a record",
		"3": {"id": 3, "ratings": []}
	}`
	var calls atomic.Int32
	c, stats, err := DecodeCatalog(context.Background(), strings.NewReader(doc), DecodeOptions{
		Concurrency:   2,
		ProgressEvery: 1,
		Progress:      func(processed, total int) { calls.Add(1) },
	})
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 4, stats.Decoded)
	assert.Equal(t, 1, stats.MalformedFields)
	assert.Equal(t, int32(5), calls.Load())

	require.Equal(t, 4, c.Len())
	r, ok := c.Get(10)
	require.True(t, ok)
	assert.Equal(t, "keyed", r.Author)

	r, ok = c.Get(3)
	require.True(t, ok)
	assert.Nil(t, r.Ratings)
}

func TestDecodeCatalog_WrongTypedFieldsKeepRecord(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		check func(t *testing.T, r *AppRecord)
	}{
		{
			name: "locales as string",
			doc:  `{"id": 1, "author": "a", "manifest": {"supported_locales": "en", "categories": ["games"]}}`,
			check: func(t *testing.T, r *AppRecord) {
				require.NotNil(t, r.Manifest)
				assert.Nil(t, r.Manifest.SupportedLocales)
				assert.Equal(t, []string{"games"}, r.Manifest.Categories)
			},
		},
		{
			name: "icons with numeric values",
			doc:  `{"id": 1, "author": "a", "manifest": {"icons": {"16": 16}, "appcache_path": "/a.appcache"}}`,
			check: func(t *testing.T, r *AppRecord) {
				require.NotNil(t, r.Manifest)
				assert.Nil(t, r.Manifest.Icons)
				assert.True(t, r.HasAppcache())
			},
		},
		{
			name: "numeric author",
			doc:  `{"id": 1, "author": 7, "package_size": 10}`,
			check: func(t *testing.T, r *AppRecord) {
				assert.Empty(t, r.Author)
				assert.Equal(t, int64(10), r.PackageSize)
			},
		},
		{
			name: "ratings as array",
			doc:  `{"id": 1, "author": "a", "ratings": [1, 2]}`,
			check: func(t *testing.T, r *AppRecord) {
				assert.Nil(t, r.Ratings)
				assert.Equal(t, "a", r.Author)
			},
		},
		{
			name: "manifest as string",
			doc:  `{"id": 1, "author": "a", "manifest": "unavailable"}`,
			check: func(t *testing.T, r *AppRecord) {
				assert.Nil(t, r.Manifest)
			},
		},
		{
			name: "scripts as object",
			doc:  `{"id": 1, "author": "a", "manifest": {"scripts": {"a": "b.js"}}}`,
			check: func(t *testing.T, r *AppRecord) {
				require.NotNil(t, r.Manifest)
				assert.Empty(t, r.LibraryNames())
			},
		},
		{
			name: "package size as word",
			doc:  `{"id": 1, "author": "a", "package_size": "big"}`,
			check: func(t *testing.T, r *AppRecord) {
				assert.Zero(t, r.PackageSize)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, stats, err := DecodeCatalog(context.Background(), strings.NewReader("["+tt.doc+"]"), DecodeOptions{})
			require.NoError(t, err)

			assert.Zero(t, stats.Skipped)
			assert.Equal(t, 1, stats.Decoded)
			assert.Equal(t, 1, stats.MalformedFields)
			require.Equal(t, 1, c.Len())
			tt.check(t, c.Records()[0])
		})
	}
}

func TestDecodeCatalog_MixedMalformedRecordsAllCounted(t *testing.T) {
	doc := `{
		"1": {"id": 1, "author": "ok"},
		"2": {"id": 2, "author": "b", "manifest": {"supported_locales": "en"}},
		"3": {"id": 3, "author": "c", "manifest": {"icons": {"16": 16}}},
		"4": {"id": 4, "author": 7}
	}`
	c, stats, err := DecodeCatalog(context.Background(), strings.NewReader(doc), DecodeOptions{})
	require.NoError(t, err)

	assert.Equal(t, DecodeStats{Total: 4, Decoded: 4, MalformedFields: 3}, stats)
	assert.Equal(t, 4, c.Len())
}

func TestDecodeCatalog_ArrayEntriesNeedID(t *testing.T) {
	doc := `[{"author": "x"}, {"author": "y"}, {"id": "n/a", "author": "z"}, {"id": 8, "author": "w"}]`
	c, stats, err := DecodeCatalog(context.Background(), strings.NewReader(doc), DecodeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 3, stats.MissingID)
	assert.Equal(t, 1, stats.Decoded)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, int64(8), c.Records()[0].ID)
}

func TestDecodeCatalog_Array(t *testing.T) {
	doc := `[{"id": 5, "author": "x"}, {"id": 4, "author": "y"}, {"id": 5, "author": "z"}]`
	c, stats, err := DecodeCatalog(context.Background(), strings.NewReader(doc), DecodeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	require.Equal(t, 2, c.Len())
	assert.Equal(t, int64(4), c.Records()[0].ID)
	r, _ := c.Get(5)
	assert.Equal(t, "z", r.Author)
}

func TestDecodeCatalog_InvalidDocument(t *testing.T) {
	_, _, err := DecodeCatalog(context.Background(), strings.NewReader(`"nope"`), DecodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDocument)

	_, _, err = DecodeCatalog(context.Background(), strings.NewReader(`{"1": `), DecodeOptions{})
	assert.Error(t, err)

	_, _, err = DecodeCatalog(context.Background(), strings.NewReader(``), DecodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecodeCatalog_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DecodeCatalog(ctx, strings.NewReader(`[{"id":1}]`), DecodeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
