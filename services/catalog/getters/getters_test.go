// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package getters

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

func fullRecord() *datatypes.AppRecord {
	rec := &datatypes.AppRecord{
		ID:          1,
		Author:      "Mozilla",
		Created:     datatypes.NewTimestamp(time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)),
		Reviewed:    datatypes.NewTimestamp(time.Date(2013, 1, 11, 12, 0, 0, 0, time.UTC)),
		Ratings:     &datatypes.Ratings{Count: 12, Average: 4.5},
		PackageSize: 2048,
		Manifest: &datatypes.Manifest{
			Activities:          map[string]json.RawMessage{"share": nil, "pick": nil},
			SupportedLocales:    []string{"en", "de"},
			Regions:             []string{"us"},
			Permissions:         map[string]json.RawMessage{"geolocation": nil, "alarms": nil},
			InstallsAllowedFrom: []string{"*"},
			Categories:          []string{"games"},
			AppcachePath:        "/manifest.appcache",
			Icons:               map[string]string{"128": "/a.png", "16": "/b.png"},
			Scripts:             []string{"js/zepto.min.js"},
			PaymentCategory:     "free",
		},
		AppcacheEntrySizes: map[string]json.RawMessage{"a": json.RawMessage(`10`)},
	}
	rec.Prepare()
	return rec
}

func TestGetters_FullRecord(t *testing.T) {
	rec := fullRecord()
	now := func() time.Time { return time.Date(2013, 1, 21, 12, 0, 0, 0, time.UTC) }

	num := func(v Value) float64 {
		f, ok := v.Number()
		require.True(t, ok)
		return f
	}
	labels := func(v Value) []string {
		l, ok := v.Labels()
		require.True(t, ok)
		return l
	}

	assert.Equal(t, 12.0, num(RatingCount(rec)))
	assert.Equal(t, 4.5, num(AverageRating(rec)))
	assert.Equal(t, 2048.0, num(PackageSize(rec)))
	assert.Equal(t, 10.0, num(AppcacheSize(rec)))
	assert.InDelta(t, 10.0, num(DaysSinceReviewed(now)(rec)), 1e-9)
	assert.InDelta(t, 20.5, num(DaysSinceCreated(now)(rec)), 1e-9)

	assert.Equal(t, []string{"Mozilla"}, labels(Author(rec)))
	assert.Equal(t, []string{"free"}, labels(PaymentCategory(rec)))
	assert.Equal(t, []string{"yes"}, labels(HasAppcache(rec)))
	assert.Equal(t, []string{"zepto"}, labels(LibraryNames(rec)))
	assert.Equal(t, []string{"zepto.min.js"}, labels(Filenames(rec)))
	assert.Equal(t, []string{"games"}, labels(CategoryStrings(rec)))
	assert.Equal(t, []string{"en", "de"}, labels(SupportedLocales(rec)))
	assert.Equal(t, []string{"us"}, labels(SupportedRegions(rec)))
	assert.Equal(t, []string{"*"}, labels(InstallsAllowedFrom(rec)))
	assert.Equal(t, []string{"alarms", "geolocation"}, labels(PermissionKeys(rec)))
	assert.Equal(t, []string{"pick", "share"}, labels(ActivityKeys(rec)))
	assert.Equal(t, []string{"128", "16"}, labels(IconSizes(rec)))
}

func TestGetters_MissingData(t *testing.T) {
	rec := &datatypes.AppRecord{ID: 2}
	rec.Prepare()
	now := time.Now

	for name, g := range map[string]Getter{
		"rating_count":  RatingCount,
		"rating":        AverageRating,
		"package_size":  PackageSize,
		"appcache_size": AppcacheSize,
		"days_reviewed": DaysSinceReviewed(now),
		"days_created":  DaysSinceCreated(now),
		"nil record":    func(*datatypes.AppRecord) Value { return RatingCount(nil) },
	} {
		assert.True(t, g(rec).IsNone(), name)
	}

	for name, g := range map[string]Getter{
		"library":    LibraryNames,
		"filename":   Filenames,
		"category":   CategoryStrings,
		"locale":     SupportedLocales,
		"region":     SupportedRegions,
		"installs":   InstallsAllowedFrom,
		"permission": PermissionKeys,
		"activity":   ActivityKeys,
		"icon":       IconSizes,
	} {
		l, ok := g(rec).Labels()
		assert.True(t, ok, name)
		assert.Empty(t, l, name)
		l, ok = g(nil).Labels()
		assert.True(t, ok, name)
		assert.Empty(t, l, name)
	}

	assert.Equal(t, []string{Unknown}, mustLabels(t, Author(rec)))
	assert.Equal(t, []string{Unknown}, mustLabels(t, PaymentCategory(rec)))
	assert.Equal(t, []string{"no"}, mustLabels(t, HasAppcache(rec)))
}

func TestValue_Kinds(t *testing.T) {
	assert.Equal(t, KindNone, None().Kind())
	assert.Equal(t, "number", Number(1).Kind().String())
	assert.Equal(t, "labels", Labels().Kind().String())
	assert.True(t, Contains(Labels("a", "b"), "b"))
	assert.False(t, Contains(Number(1), "1"))
}

func mustLabels(t *testing.T, v Value) []string {
	t.Helper()
	l, ok := v.Labels()
	require.True(t, ok)
	return l
}
