// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

const sampleDoc = `{"1": {"id": 1, "author": "Mozilla"}, "2": {"id": 2, "author": "Acme"}}`

// ============================================================================
// Registry Tests
// ============================================================================

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(NewMockSource(MockOptions{}), NewFileSource("", "/tmp/x.json", datatypes.DecodeOptions{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"file", "mock"}, r.Names())

	s, err := r.Get("mock")
	require.NoError(t, err)
	assert.Equal(t, "mock", s.Name())

	_, err = r.Get("ftp")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, r.Register(NewMockSource(MockOptions{})))
	assert.Error(t, r.Register(nil))
}

// ============================================================================
// FileSource Tests
// ============================================================================

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apps.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	s := NewFileSource("local", path, datatypes.DecodeOptions{})
	assert.Equal(t, "local", s.Name())
	assert.Equal(t, path, s.Path())

	var last int
	c, stats, err := s.Fetch(context.Background(), func(processed, total int) { last = processed })
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, last)
}

func TestFileSource_Missing(t *testing.T) {
	s := NewFileSource("", filepath.Join(t.TempDir(), "missing.json"), datatypes.DecodeOptions{})
	_, _, err := s.Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// ============================================================================
// HTTPSource Tests
// ============================================================================

func TestHTTPSource_Fetch(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	s, err := NewHTTPSource(HTTPOptions{URL: srv.URL, UserAgent: "test-agent"})
	require.NoError(t, err)
	assert.Equal(t, "http", s.Name())

	c, _, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "test-agent", gotUA)
}

func TestHTTPSource_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	s, err := NewHTTPSource(HTTPOptions{URL: srv.URL})
	require.NoError(t, err)

	_, _, err = s.Fetch(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 410")
}

func TestNewHTTPSource_Validation(t *testing.T) {
	_, err := NewHTTPSource(HTTPOptions{})
	assert.Error(t, err)
	_, err = NewHTTPSource(HTTPOptions{URL: "ftp://example.com/apps.json"})
	assert.Error(t, err)
}

// ============================================================================
// GCSSource Tests
// ============================================================================

func TestNewGCSSource_Validation(t *testing.T) {
	_, err := NewGCSSource(GCSOptions{Bucket: "b"})
	assert.Error(t, err)

	_, err = NewGCSSource(GCSOptions{Bucket: "b", Object: "o", CredentialsFile: "/does/not/exist.json"})
	assert.Error(t, err)

	s, err := NewGCSSource(GCSOptions{Bucket: "b", Object: "catalog/apps.json"})
	require.NoError(t, err)
	assert.Equal(t, "gcs", s.Name())
	assert.Equal(t, "gs://b/catalog/apps.json", s.URI())
	assert.NoError(t, s.Close())
}

// ============================================================================
// MockSource Tests
// ============================================================================

func TestMockSource_Deterministic(t *testing.T) {
	a, err := NewMockSource(MockOptions{Apps: 50, Seed: 7}).Document()
	require.NoError(t, err)
	b, err := NewMockSource(MockOptions{Apps: 50, Seed: 7}).Document()
	require.NoError(t, err)
	c, err := NewMockSource(MockOptions{Apps: 50, Seed: 8}).Document()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMockSource_Fetch(t *testing.T) {
	s := NewMockSource(MockOptions{Apps: 120, Seed: 1})
	c, stats, err := s.Fetch(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 120, c.Len())
	assert.Zero(t, stats.Skipped)
	first, ok := c.Get(1)
	require.True(t, ok)
	assert.NotEmpty(t, first.Author)
}

func TestMockSource_ErrorAndCancel(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := NewMockSource(MockOptions{Err: boom}).Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, err = NewMockSource(MockOptions{Delay: time.Second}).Fetch(ctx, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
