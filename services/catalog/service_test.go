// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMarket/services/catalog/observability"
	"github.com/AleutianAI/AleutianMarket/services/catalog/rebuild"
)

func testMetrics() *observability.QueryMetrics {
	return observability.NewQueryMetrics(prometheus.NewRegistry())
}

func mockConfig() Config {
	cfg := DefaultConfig()
	cfg.GinMode = "test"
	cfg.Addr = "127.0.0.1:0"
	cfg.Mock = MockSourceConfig{Enabled: true, Apps: 25, Seed: 7}
	return cfg
}

func waitIdle(t *testing.T, c rebuild.Controller) rebuild.JobState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := c.Wait(ctx)
	require.NoError(t, err)
	return state
}

func TestNew_NoSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mock.Enabled = false

	_, err := New(cfg, nil, testMetrics())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no catalog source")
}

func TestNew_UnknownDefaultSource(t *testing.T) {
	cfg := mockConfig()
	cfg.DefaultSource = "ftp"

	_, err := New(cfg, nil, testMetrics())
	require.Error(t, err)
}

func TestNew_InvalidHTTPSource(t *testing.T) {
	cfg := mockConfig()
	cfg.HTTP.URL = "ftp://example.com/apps.json"

	_, err := New(cfg, nil, testMetrics())
	require.Error(t, err)
}

func TestService_RebuildThroughRouter(t *testing.T) {
	metrics := testMetrics()
	svc, err := New(mockConfig(), nil, metrics)
	require.NoError(t, err)
	defer svc.Close()

	w := httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/rebuild", nil))
	require.Equal(t, http.StatusAccepted, w.Code)

	state := waitIdle(t, svc.Controller())
	require.Equal(t, rebuild.PhaseCompleted, state.Phase, state.Error)
	assert.Equal(t, 25, svc.Store().Current().Catalog.Len())
	assert.Equal(t, 25.0, testutil.ToFloat64(metrics.CatalogApps))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SnapshotVersion))

	w = httptest.NewRecorder()
	svc.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/summary", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		SnapshotVersion uint64 `json:"snapshot_version"`
		Source          string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(1), body.SnapshotVersion)
	assert.Equal(t, "mock", body.Source)
}

func TestService_RunRebuildsOnStartAndStops(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "apps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"1": {"id": 1, "author": "alice"}, "2": {"id": 2, "author": "bob"}}`), 0o600))

	cfg := mockConfig()
	cfg.File = FileSourceConfig{Path: path, Watch: true, Debounce: 20 * time.Millisecond}
	cfg.DefaultSource = "file"

	svc, err := New(cfg, nil, testMetrics())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return svc.Store().Current().Catalog.Len() == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "file", svc.Store().Current().Source)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := applyConfigDefaults(Config{})
	assert.Equal(t, ":12310", cfg.Addr)
	assert.Equal(t, 10, cfg.DefaultBuckets)
	assert.Zero(t, cfg.RebuildTimeout)
	assert.Equal(t, 1, cfg.RebuildBurst)
}

func TestService_DefaultSourceResolved(t *testing.T) {
	svc, err := New(mockConfig(), nil, testMetrics())
	require.NoError(t, err)
	defer svc.Close()
	assert.Equal(t, "mock", svc.DefaultSource())
}
