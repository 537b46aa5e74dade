// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the marketstats YAML configuration.
package config

import (
	"time"

	"github.com/AleutianAI/AleutianMarket/pkg/logging"
	"github.com/AleutianAI/AleutianMarket/pkg/telemetry"
	"github.com/AleutianAI/AleutianMarket/services/catalog"
)

// MarketConfig is the root of marketstats.yaml.
type MarketConfig struct {
	Server    ServerConfig     `yaml:"server"`
	Rebuild   RebuildConfig    `yaml:"rebuild"`
	Query     QueryConfig      `yaml:"query"`
	Sources   SourcesConfig    `yaml:"sources"`
	Logging   logging.Config   `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	GinMode         string        `yaml:"gin_mode,omitempty" validate:"omitempty,oneof=debug release test"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

type RebuildConfig struct {
	// DefaultSource is used at startup, on the periodic schedule and for
	// POST /v1/rebuild without a body. Empty picks the first configured
	// source by name.
	DefaultSource string        `yaml:"default_source,omitempty"`
	OnStart       bool          `yaml:"on_start"`
	Interval      time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`

	// RequestsPerSecond and Burst throttle POST /v1/rebuild. Zero disables
	// throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`

	DecodeConcurrency int `yaml:"decode_concurrency" validate:"gte=0,lte=256"`
}

type QueryConfig struct {
	CacheEntries   int `yaml:"cache_entries" validate:"gte=0"`
	DefaultBuckets int `yaml:"default_buckets" validate:"gte=1,lte=1000"`
	MaxListing     int `yaml:"max_listing" validate:"gte=0"`
}

type SourcesConfig struct {
	File FileSource `yaml:"file"`
	HTTP HTTPSource `yaml:"http"`
	GCS  GCSSource  `yaml:"gcs"`
	Mock MockSource `yaml:"mock"`
}

type FileSource struct {
	Path     string        `yaml:"path,omitempty"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce,omitempty" validate:"gte=0"`
}

type HTTPSource struct {
	URL       string        `yaml:"url,omitempty" validate:"omitempty,url"`
	Timeout   time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	UserAgent string        `yaml:"user_agent,omitempty"`
}

type GCSSource struct {
	Bucket          string `yaml:"bucket,omitempty"`
	Object          string `yaml:"object,omitempty" validate:"required_with=Bucket"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	Endpoint        string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
}

type MockSource struct {
	Enabled bool  `yaml:"enabled"`
	Apps    int   `yaml:"apps" validate:"gte=0"`
	Seed    int64 `yaml:"seed"`
}

// DefaultConfig serves a mock catalog on :12310 with Prometheus metrics.
func DefaultConfig() MarketConfig {
	svc := catalog.DefaultConfig()
	return MarketConfig{
		Server: ServerConfig{
			Addr:            svc.Addr,
			ShutdownTimeout: svc.ShutdownTimeout,
		},
		Rebuild: RebuildConfig{
			OnStart:           svc.RebuildOnStart,
			Timeout:           svc.RebuildTimeout,
			RequestsPerSecond: svc.RebuildRate,
			Burst:             svc.RebuildBurst,
		},
		Query: QueryConfig{
			CacheEntries:   svc.CacheEntries,
			DefaultBuckets: svc.DefaultBuckets,
		},
		Sources: SourcesConfig{
			File: FileSource{Debounce: 500 * time.Millisecond},
			Mock: MockSource{Enabled: svc.Mock.Enabled, Apps: svc.Mock.Apps},
		},
		Logging: logging.Config{
			Level:   "info",
			Format:  logging.FormatAuto,
			Service: "marketstats",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Service maps the file layout onto catalog.Config.
func (c MarketConfig) Service() catalog.Config {
	return catalog.Config{
		Addr:              c.Server.Addr,
		GinMode:           c.Server.GinMode,
		ShutdownTimeout:   c.Server.ShutdownTimeout,
		DefaultSource:     c.Rebuild.DefaultSource,
		RebuildOnStart:    c.Rebuild.OnStart,
		RebuildInterval:   c.Rebuild.Interval,
		RebuildTimeout:    c.Rebuild.Timeout,
		RebuildRate:       c.Rebuild.RequestsPerSecond,
		RebuildBurst:      c.Rebuild.Burst,
		DecodeConcurrency: c.Rebuild.DecodeConcurrency,
		CacheEntries:      c.Query.CacheEntries,
		DefaultBuckets:    c.Query.DefaultBuckets,
		MaxListing:        c.Query.MaxListing,
		File: catalog.FileSourceConfig{
			Path:     c.Sources.File.Path,
			Watch:    c.Sources.File.Watch,
			Debounce: c.Sources.File.Debounce,
		},
		HTTP: catalog.HTTPSourceConfig{
			URL:       c.Sources.HTTP.URL,
			Timeout:   c.Sources.HTTP.Timeout,
			UserAgent: c.Sources.HTTP.UserAgent,
		},
		GCS: catalog.GCSSourceConfig{
			Bucket:          c.Sources.GCS.Bucket,
			Object:          c.Sources.GCS.Object,
			CredentialsFile: c.Sources.GCS.CredentialsFile,
			Endpoint:        c.Sources.GCS.Endpoint,
		},
		Mock: catalog.MockSourceConfig{
			Enabled: c.Sources.Mock.Enabled,
			Apps:    c.Sources.Mock.Apps,
			Seed:    c.Sources.Mock.Seed,
		},
	}
}
