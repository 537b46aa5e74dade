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
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// HTTPOptions configures an HTTPSource.
type HTTPOptions struct {
	Name      string
	URL       string
	UserAgent string
	Timeout   time.Duration
	Decode    datatypes.DecodeOptions
}

// HTTPSource downloads the catalog document with a GET request.
type HTTPSource struct {
	name      string
	url       string
	userAgent string
	client    *http.Client
	decode    datatypes.DecodeOptions
}

// NewHTTPSource validates opts and creates the source. Name defaults to
// "http", Timeout to 60s.
func NewHTTPSource(opts HTTPOptions) (*HTTPSource, error) {
	raw := strings.TrimSpace(opts.URL)
	if raw == "" {
		return nil, errors.New("http source: URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("http source: invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http source: unsupported scheme %q", u.Scheme)
	}

	name := opts.Name
	if name == "" {
		name = "http"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = "marketstats/1.0"
	}

	return &HTTPSource{
		name:      name,
		url:       u.String(),
		userAgent: ua,
		client:    &http.Client{Timeout: timeout},
		decode:    opts.Decode,
	}, nil
}

// Name implements Source.
func (s *HTTPSource) Name() string { return s.name }

// Fetch implements Source. Any non-2xx status is an error.
func (s *HTTPSource) Fetch(ctx context.Context, progress datatypes.ProgressFunc) (*datatypes.Catalog, datatypes.DecodeStats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, datatypes.DecodeStats{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, datatypes.DecodeStats{}, fmt.Errorf("fetching %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, datatypes.DecodeStats{}, fmt.Errorf("fetching %s: http %d: %s", s.url, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	opts := s.decode
	opts.Progress = progress
	return datatypes.DecodeCatalog(ctx, resp.Body, opts)
}
