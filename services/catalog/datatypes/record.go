// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the marketplace catalog model: application
// records, their manifests, and the immutable Catalog snapshot built from
// them.
//
// # Missing data
//
// Every nested structure is optional. A record without a manifest, ratings,
// or review date is valid; derived fields are left at their zero value and
// the getters package reports "no data" for them.
//
// # Immutability
//
// Records are prepared once (Prepare) when a catalog is built and must not
// be mutated afterwards. Catalog snapshots are shared by concurrent readers
// without locking.
package datatypes

import (
	"bytes"
	"encoding/json"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// Record Types
// =============================================================================

// Ratings summarises user ratings for an application.
type Ratings struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// UnmarshalJSON tolerates counts and averages encoded as floats or strings.
func (r *Ratings) UnmarshalJSON(data []byte) error {
	var raw struct {
		Count   json.RawMessage `json:"count"`
		Average json.RawMessage `json:"average"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if f, ok := CoerceNumber(raw.Count); ok {
		r.Count = int(f)
	}
	if f, ok := CoerceNumber(raw.Average); ok {
		r.Average = f
	}
	return nil
}

// Manifest is the subset of an application manifest the catalog analyses.
type Manifest struct {
	Name                string                     `json:"name,omitempty"`
	Activities          map[string]json.RawMessage `json:"activities,omitempty"`
	SupportedLocales    []string                   `json:"supported_locales,omitempty"`
	Regions             []string                   `json:"regions,omitempty"`
	Permissions         map[string]json.RawMessage `json:"permissions,omitempty"`
	InstallsAllowedFrom []string                   `json:"installs_allowed_from,omitempty"`
	Categories          []string                   `json:"categories,omitempty"`
	AppcachePath        string                     `json:"appcache_path,omitempty"`
	Icons               map[string]string          `json:"icons,omitempty"`
	Scripts             []string                   `json:"scripts,omitempty"`
	PaymentCategory     string                     `json:"premium_type,omitempty"`
}

// UnmarshalJSON decodes each manifest field on its own; wrong-typed fields
// are left empty.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	m.decodeFields(fields)
	return nil
}

func (m *Manifest) decodeFields(f map[string]json.RawMessage) (malformed int) {
	keep := func(ok bool) {
		if !ok {
			malformed++
		}
	}
	keep(decodeField(f["name"], &m.Name))
	keep(decodeField(f["activities"], &m.Activities))
	keep(decodeField(f["supported_locales"], &m.SupportedLocales))
	keep(decodeField(f["regions"], &m.Regions))
	keep(decodeField(f["permissions"], &m.Permissions))
	keep(decodeField(f["installs_allowed_from"], &m.InstallsAllowedFrom))
	keep(decodeField(f["categories"], &m.Categories))
	keep(decodeField(f["appcache_path"], &m.AppcachePath))
	keep(decodeField(f["icons"], &m.Icons))
	keep(decodeField(f["scripts"], &m.Scripts))
	keep(decodeField(f["premium_type"], &m.PaymentCategory))
	return malformed
}

// AppRecord is one marketplace application entry.
//
// # Description
//
// Fields mirror the document produced by the external cataloging tool.
// The unexported fields are derived by Prepare and are read through
// accessor methods so they cannot be changed by callers.
//
// # Thread Safety
//
// Safe for concurrent reads once Prepare has run.
type AppRecord struct {
	ID                 int64                      `json:"id"`
	Name               string                     `json:"name,omitempty"`
	Author             string                     `json:"author"`
	Created            Timestamp                  `json:"created,omitzero"`
	Reviewed           Timestamp                  `json:"reviewed,omitzero"`
	Ratings            *Ratings                   `json:"ratings,omitempty"`
	PackageSize        int64                      `json:"package_size,omitempty"`
	Manifest           *Manifest                  `json:"manifest,omitempty"`
	ManifestError      string                     `json:"manifest_error,omitempty"`
	AppcacheEntrySizes map[string]json.RawMessage `json:"appcache_entry_sizes,omitempty"`

	appcacheSizeTotal int64
	filenames         []string
	libraryNames      []string
	serialized        string
	prepared          bool
}

// UnmarshalJSON decodes each known field on its own.
//
// # Description
//
// Ids and package sizes may be floats or numeric strings. A field whose JSON
// type does not match the model is left at its zero value, so one bad field
// never costs the rest of the record. The document itself, with string
// escapes resolved, becomes the record's search text.
//
// # Outputs
//
//   - error: Non-nil only when data is not a JSON object (or null).
func (r *AppRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return nil
	}
	r.decodeFields(fields)
	r.serialized = searchText(data)
	return nil
}

// decodeFields fills r from a record object. It returns the number of fields
// that had to be dropped and whether the object carried a numeric id.
func (r *AppRecord) decodeFields(f map[string]json.RawMessage) (malformed int, hasID bool) {
	keep := func(ok bool) {
		if !ok {
			malformed++
		}
	}

	if raw := f["id"]; !isNull(raw) {
		if v, ok := CoerceNumber(raw); ok {
			r.ID, hasID = int64(v), true
		} else {
			malformed++
		}
	}
	if raw := f["package_size"]; !isNull(raw) {
		if v, ok := CoerceNumber(raw); ok {
			r.PackageSize = int64(v)
		} else {
			malformed++
		}
	}
	keep(decodeField(f["name"], &r.Name))
	keep(decodeField(f["author"], &r.Author))
	keep(decodeField(f["created"], &r.Created))
	keep(decodeField(f["reviewed"], &r.Reviewed))
	keep(decodeField(f["manifest_error"], &r.ManifestError))
	keep(decodeField(f["appcache_entry_sizes"], &r.AppcacheEntrySizes))

	if raw := f["ratings"]; !isNull(raw) {
		var ratings Ratings
		if err := json.Unmarshal(raw, &ratings); err == nil {
			r.Ratings = &ratings
		} else {
			malformed++
		}
	}

	if raw := f["manifest"]; !isNull(raw) {
		var mf map[string]json.RawMessage
		if err := json.Unmarshal(raw, &mf); err == nil && mf != nil {
			r.Manifest = &Manifest{}
			malformed += r.Manifest.decodeFields(mf)
		} else {
			malformed++
		}
	}
	return malformed, hasID
}

// Prepare computes the derived fields of the record.
//
// # Description
//
// Sums appcache entry sizes (only when the manifest declares an appcache
// path) and derives script filenames and library names. Records that were
// not decoded from a document get a search text encoded from their fields.
// Calling Prepare more than once is a no-op.
//
// # Assumptions
//
//   - Called by the catalog builder before the record is shared.
func (r *AppRecord) Prepare() {
	if r.prepared {
		return
	}
	r.prepared = true

	if r.Manifest != nil && r.Manifest.AppcachePath != "" {
		r.appcacheSizeTotal = sumAppcacheSizes(r.AppcacheEntrySizes)
	}
	if r.Manifest != nil {
		r.filenames, r.libraryNames = deriveScriptNames(r.Manifest.Scripts)
	}

	if r.serialized == "" {
		r.serialized = encodeUnescaped(r)
	}
}

// AppcacheSizeTotal returns the summed appcache entry sizes in bytes, or 0
// when the record declares no appcache.
func (r *AppRecord) AppcacheSizeTotal() int64 { return r.appcacheSizeTotal }

// HasAppcache reports whether the manifest declares an appcache path.
func (r *AppRecord) HasAppcache() bool {
	return r.Manifest != nil && r.Manifest.AppcachePath != ""
}

// Filenames returns the base names of the scripts the manifest references.
func (r *AppRecord) Filenames() []string { return r.filenames }

// LibraryNames returns normalised library names derived from Filenames,
// de-duplicated in first-seen order.
func (r *AppRecord) LibraryNames() []string { return r.libraryNames }

// Serialized returns the text full-text search scans: the record's source
// document, compacted, with "&", "<" and ">" left literal. Records built in
// code fall back to their encoded fields.
func (r *AppRecord) Serialized() string {
	if r.serialized == "" {
		return encodeUnescaped(r)
	}
	return r.serialized
}

// =============================================================================
// Decoding Helpers
// =============================================================================

// decodeField unmarshals raw into dst. Absent and null values leave dst
// untouched and count as fine; a type mismatch leaves dst untouched and
// returns false.
func decodeField[T any](raw json.RawMessage, dst *T) bool {
	if isNull(raw) {
		return true
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dst = v
	return true
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// searchText re-encodes a JSON document compactly with string escapes
// resolved, so "AT&T" in the source reads "AT&T" rather than "AT\u0026T".
func searchText(doc []byte) string {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err == nil {
		if s := encodeUnescaped(v); s != "" {
			return s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err == nil {
		return buf.String()
	}
	return string(doc)
}

func encodeUnescaped(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// =============================================================================
// Derivation Helpers
// =============================================================================

// CoerceNumber reads a JSON number or a numeric JSON string.
//
// Returns false for null, booleans, objects, arrays and non-numeric strings.
func CoerceNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return f, true
}

func sumAppcacheSizes(entries map[string]json.RawMessage) int64 {
	var total int64
	for _, raw := range entries {
		if f, ok := CoerceNumber(raw); ok {
			total += int64(f)
		}
	}
	return total
}

// versionSuffix matches trailing version markers such as "-1.9.1", ".2.0"
// or "_v3".
var versionSuffix = regexp.MustCompile(`[-_.]v?\d+(\.\d+)*$`)

func deriveScriptNames(scripts []string) (filenames, libraries []string) {
	seen := make(map[string]struct{}, len(scripts))
	for _, s := range scripts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if i := strings.IndexAny(s, "?#"); i >= 0 {
			s = s[:i]
		}
		base := path.Base(strings.ReplaceAll(s, "\\", "/"))
		if base == "." || base == "/" || base == "" {
			continue
		}
		filenames = append(filenames, base)

		lib := libraryName(base)
		if lib == "" {
			continue
		}
		if _, dup := seen[lib]; dup {
			continue
		}
		seen[lib] = struct{}{}
		libraries = append(libraries, lib)
	}
	return filenames, libraries
}

// libraryName normalises a script filename: "jquery-1.9.1.min.js" -> "jquery".
func libraryName(base string) string {
	name := strings.ToLower(base)
	name = strings.TrimSuffix(name, ".js")
	name = strings.TrimSuffix(name, ".min")
	name = strings.TrimSuffix(name, "-min")
	for {
		stripped := versionSuffix.ReplaceAllString(name, "")
		if stripped == name {
			break
		}
		name = stripped
	}
	return strings.Trim(name, "-_.")
}
