// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// MockOptions configures a MockSource.
type MockOptions struct {
	Name  string
	Apps  int
	Seed  int64
	Epoch time.Time

	// Delay is slept before decoding, honouring ctx.
	Delay time.Duration

	// Err, when set, is returned instead of a catalog.
	Err error

	Decode datatypes.DecodeOptions
}

// MockSource synthesises a deterministic catalog. The same options always
// produce the same document.
type MockSource struct {
	opts MockOptions
}

// NewMockSource creates a mock source. Name defaults to "mock", Apps to 200
// and Epoch to 2013-01-01.
func NewMockSource(opts MockOptions) *MockSource {
	if opts.Name == "" {
		opts.Name = "mock"
	}
	if opts.Apps <= 0 {
		opts.Apps = 200
	}
	if opts.Epoch.IsZero() {
		opts.Epoch = time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &MockSource{opts: opts}
}

// Name implements Source.
func (s *MockSource) Name() string { return s.opts.Name }

// Fetch implements Source.
func (s *MockSource) Fetch(ctx context.Context, progress datatypes.ProgressFunc) (*datatypes.Catalog, datatypes.DecodeStats, error) {
	if s.opts.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, datatypes.DecodeStats{}, ctx.Err()
		case <-time.After(s.opts.Delay):
		}
	}
	if s.opts.Err != nil {
		return nil, datatypes.DecodeStats{}, s.opts.Err
	}

	doc, err := s.Document()
	if err != nil {
		return nil, datatypes.DecodeStats{}, err
	}
	opts := s.opts.Decode
	opts.Progress = progress
	return datatypes.DecodeCatalog(ctx, bytes.NewReader(doc), opts)
}

var (
	mockAuthors     = []string{"Mozilla", "Acme Games", "Pixel Forge", "Tiny Tools", "Open Maps", "Newsroom"}
	mockCategories  = []string{"games", "utilities", "productivity", "news", "maps-navigation", "social", "education"}
	mockLocales     = []string{"en-US", "de", "fr", "es", "pt-BR", "pl", "ja"}
	mockRegions     = []string{"us", "br", "co", "de", "es", "pl", "ve", "gr"}
	mockPermissions = []string{"geolocation", "alarms", "storage", "systemXHR", "contacts", "camera", "desktop-notification"}
	mockActivities  = []string{"share", "pick", "view", "open", "dial"}
	mockScripts     = []string{"jquery-1.9.1.min.js", "zepto.js", "underscore-min.js", "backbone.js", "require.js", "app.js", "l10n.js"}
	mockIconSizes   = []string{"16", "32", "48", "60", "64", "128", "256"}
	mockPremium     = []string{"free", "premium", "free-inapp", "premium-inapp"}
	mockInstallFrom = []string{"https://marketplace.firefox.com", "*"}
)

// Document renders the synthetic catalog as a JSON object keyed by id.
func (s *MockSource) Document() ([]byte, error) {
	rng := rand.New(rand.NewSource(s.opts.Seed))
	doc := make(map[string]any, s.opts.Apps)

	for i := 1; i <= s.opts.Apps; i++ {
		created := s.opts.Epoch.Add(time.Duration(rng.Intn(365*24)) * time.Hour)
		rec := map[string]any{
			"id":           i,
			"name":         fmt.Sprintf("App %d", i),
			"author":       mockAuthors[rng.Intn(len(mockAuthors))],
			"created":      created.Format("2006-01-02T15:04:05"),
			"package_size": 0,
		}
		if rng.Intn(4) != 0 {
			rec["reviewed"] = created.Add(time.Duration(rng.Intn(60*24)) * time.Hour).Format("2006-01-02T15:04:05")
		}
		if rng.Intn(3) != 0 {
			rec["ratings"] = map[string]any{
				"count":   rng.Intn(500),
				"average": float64(rng.Intn(41)) / 10.0,
			}
		}
		if rng.Intn(2) == 0 {
			rec["package_size"] = 10_000 + rng.Intn(5_000_000)
		}

		switch rng.Intn(10) {
		case 0:
			rec["manifest_error"] = "manifest could not be fetched"
		default:
			rec["manifest"] = s.manifest(rng, i)
			if rng.Intn(3) == 0 {
				m := rec["manifest"].(map[string]any)
				m["appcache_path"] = "/manifest.appcache"
				rec["appcache_entry_sizes"] = map[string]any{
					"index.html": rng.Intn(20_000),
					"app.js":     strconv.Itoa(rng.Intn(200_000)),
					"style.css":  rng.Intn(50_000),
				}
			}
		}
		doc[strconv.Itoa(i)] = rec
	}

	return json.Marshal(doc)
}

func (s *MockSource) manifest(rng *rand.Rand, i int) map[string]any {
	m := map[string]any{
		"name":                  fmt.Sprintf("App %d", i),
		"categories":            pickN(rng, mockCategories, 1+rng.Intn(2)),
		"supported_locales":     pickN(rng, mockLocales, rng.Intn(4)),
		"regions":               pickN(rng, mockRegions, rng.Intn(5)),
		"installs_allowed_from": pickN(rng, mockInstallFrom, 1),
		"scripts":               scriptPaths(pickN(rng, mockScripts, rng.Intn(4))),
		"premium_type":          mockPremium[rng.Intn(len(mockPremium))],
	}

	perms := map[string]any{}
	for _, p := range pickN(rng, mockPermissions, rng.Intn(4)) {
		perms[p] = map[string]string{"description": "required for " + p}
	}
	m["permissions"] = perms

	acts := map[string]any{}
	for _, a := range pickN(rng, mockActivities, rng.Intn(3)) {
		acts[a] = map[string]string{"href": "/" + a}
	}
	m["activities"] = acts

	icons := map[string]string{}
	for _, sz := range pickN(rng, mockIconSizes, 1+rng.Intn(3)) {
		icons[sz] = "/img/icon-" + sz + ".png"
	}
	m["icons"] = icons
	return m
}

// pickN returns up to n distinct items from pool in a seeded order.
func pickN(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

func scriptPaths(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = "js/lib/" + n
	}
	return out
}
