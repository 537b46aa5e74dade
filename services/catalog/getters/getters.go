// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package getters

import (
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

const day = 24 * time.Hour

// =============================================================================
// Numeric Getters
// =============================================================================

// RatingCount returns ratings.count, or None for unrated records.
func RatingCount(r *datatypes.AppRecord) Value {
	if r == nil || r.Ratings == nil {
		return None()
	}
	return Number(float64(r.Ratings.Count))
}

// AverageRating returns ratings.average, or None for unrated records.
func AverageRating(r *datatypes.AppRecord) Value {
	if r == nil || r.Ratings == nil {
		return None()
	}
	return Number(r.Ratings.Average)
}

// PackageSize returns the package size in bytes. Hosted apps carry no
// package and report None.
func PackageSize(r *datatypes.AppRecord) Value {
	if r == nil || r.PackageSize <= 0 {
		return None()
	}
	return Number(float64(r.PackageSize))
}

// AppcacheSize returns the summed appcache entry sizes for records that
// declare an appcache.
func AppcacheSize(r *datatypes.AppRecord) Value {
	if r == nil || !r.HasAppcache() {
		return None()
	}
	return Number(float64(r.AppcacheSizeTotal()))
}

// DaysSinceReviewed returns a getter computing fractional days between the
// review date and now(). Records never reviewed yield None.
func DaysSinceReviewed(now func() time.Time) Getter {
	return func(r *datatypes.AppRecord) Value {
		if r == nil || !r.Reviewed.Valid {
			return None()
		}
		return Number(daysBetween(r.Reviewed.Time, now()))
	}
}

// DaysSinceCreated is DaysSinceReviewed for the creation date.
func DaysSinceCreated(now func() time.Time) Getter {
	return func(r *datatypes.AppRecord) Value {
		if r == nil || !r.Created.Valid {
			return None()
		}
		return Number(daysBetween(r.Created.Time, now()))
	}
}

func daysBetween(from, to time.Time) float64 {
	return float64(to.Sub(from)) / float64(day)
}

// =============================================================================
// Label Getters
// =============================================================================

// Author returns the author name, or Unknown.
func Author(r *datatypes.AppRecord) Value {
	if r == nil {
		return Labels(Unknown)
	}
	return Labels(orUnknown(r.Author))
}

// PaymentCategory returns the manifest premium type, or Unknown.
func PaymentCategory(r *datatypes.AppRecord) Value {
	if r == nil || r.Manifest == nil {
		return Labels(Unknown)
	}
	return Labels(orUnknown(r.Manifest.PaymentCategory))
}

// HasAppcache returns "yes" or "no".
func HasAppcache(r *datatypes.AppRecord) Value {
	if r != nil && r.HasAppcache() {
		return Labels("yes")
	}
	return Labels("no")
}

// LibraryNames returns the derived library names.
func LibraryNames(r *datatypes.AppRecord) Value {
	if r == nil {
		return Labels()
	}
	return Labels(r.LibraryNames()...)
}

// Filenames returns the derived script filenames.
func Filenames(r *datatypes.AppRecord) Value {
	if r == nil {
		return Labels()
	}
	return Labels(r.Filenames()...)
}

// CategoryStrings returns the manifest categories.
func CategoryStrings(r *datatypes.AppRecord) Value {
	return manifestList(r, func(m *datatypes.Manifest) []string { return m.Categories })
}

// SupportedLocales returns the manifest's supported locales.
func SupportedLocales(r *datatypes.AppRecord) Value {
	return manifestList(r, func(m *datatypes.Manifest) []string { return m.SupportedLocales })
}

// SupportedRegions returns the manifest's regions.
func SupportedRegions(r *datatypes.AppRecord) Value {
	return manifestList(r, func(m *datatypes.Manifest) []string { return m.Regions })
}

// InstallsAllowedFrom returns the manifest's install-source policy.
func InstallsAllowedFrom(r *datatypes.AppRecord) Value {
	return manifestList(r, func(m *datatypes.Manifest) []string { return m.InstallsAllowedFrom })
}

// PermissionKeys returns the requested permission names, sorted.
func PermissionKeys(r *datatypes.AppRecord) Value {
	if r == nil || r.Manifest == nil {
		return Labels()
	}
	return Labels(sortedKeys(r.Manifest.Permissions)...)
}

// ActivityKeys returns the declared activity names, sorted.
func ActivityKeys(r *datatypes.AppRecord) Value {
	if r == nil || r.Manifest == nil {
		return Labels()
	}
	return Labels(sortedKeys(r.Manifest.Activities)...)
}

// IconSizes returns the declared icon sizes, sorted.
func IconSizes(r *datatypes.AppRecord) Value {
	if r == nil || r.Manifest == nil {
		return Labels()
	}
	return Labels(sortedKeys(r.Manifest.Icons)...)
}

// =============================================================================
// Helpers
// =============================================================================

func manifestList(r *datatypes.AppRecord, pick func(*datatypes.Manifest) []string) Value {
	if r == nil || r.Manifest == nil {
		return Labels()
	}
	return Labels(pick(r.Manifest)...)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Contains reports whether a Labels value holds label.
func Contains(v Value, label string) bool {
	labels, ok := v.Labels()
	if !ok {
		return false
	}
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
