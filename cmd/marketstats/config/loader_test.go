// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// noEnvFile points Load at a .env that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, ":12310", cfg.Server.Addr)
	assert.True(t, cfg.Sources.Mock.Enabled)
	assert.Equal(t, 10, cfg.Query.DefaultBuckets)
}

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv("MARKETSTATS_CONFIG", "")
	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "marketstats.yaml", `
server:
  addr: ":9000"
rebuild:
  default_source: file
  interval: 6h
sources:
  file:
    path: /data/apps.json
    watch: true
  mock:
    enabled: false
query:
  default_buckets: 25
`)
	cfg, err := Load(path, noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 6*time.Hour, cfg.Rebuild.Interval)
	assert.Equal(t, "/data/apps.json", cfg.Sources.File.Path)
	assert.False(t, cfg.Sources.Mock.Enabled)
	assert.Equal(t, 25, cfg.Query.DefaultBuckets)
	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultConfig().Rebuild.Timeout, cfg.Rebuild.Timeout)

	svc := cfg.Service()
	assert.Equal(t, "file", svc.DefaultSource)
	assert.True(t, svc.File.Watch)
	assert.Equal(t, 25, svc.DefaultBuckets)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "server:\n  port: 80\n")
	_, err := Load(path, noEnvFile(t))
	require.Error(t, err)
}

func TestLoad_ValidationFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", "query:\n  default_buckets: 0\n")
	_, err := Load(path, noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DefaultBuckets")
}

func TestLoad_GCSNeedsObject(t *testing.T) {
	path := writeFile(t, t.TempDir(), "gcs.yaml", "sources:\n  gcs:\n    bucket: market\n")
	_, err := Load(path, noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Object")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noEnvFile(t))
	require.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MARKETSTATS_ADDR", ":7000")
	t.Setenv("MARKETSTATS_SOURCE", "mock")
	t.Setenv("MARKETSTATS_REBUILD_INTERVAL", "30m")
	t.Setenv("MARKETSTATS_MOCK_APPS", "50")
	t.Setenv("MARKETSTATS_LOG_LEVEL", "debug")

	cfg, err := Load("", noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "mock", cfg.Rebuild.DefaultSource)
	assert.Equal(t, 30*time.Minute, cfg.Rebuild.Interval)
	assert.Equal(t, 50, cfg.Sources.Mock.Apps)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("MARKETSTATS_REBUILD_INTERVAL", "soon")
	_, err := Load("", noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKETSTATS_REBUILD_INTERVAL")
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "MARKETSTATS_MAX_LISTING=42\n")
	t.Cleanup(func() { os.Unsetenv("MARKETSTATS_MAX_LISTING") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Query.MaxListing)
}

func TestApplyEnv_Lookup(t *testing.T) {
	env := map[string]string{
		"MARKETSTATS_FILE":       "/tmp/apps.json",
		"MARKETSTATS_FILE_WATCH": "true",
		"MARKETSTATS_MOCK":       "false",
	}
	cfg := DefaultConfig()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/apps.json", cfg.Sources.File.Path)
	assert.True(t, cfg.Sources.File.Watch)
	assert.False(t, cfg.Sources.Mock.Enabled)
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "marketstats.yaml")
	require.NoError(t, WriteDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg MarketConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig().Server, cfg.Server)
	assert.Equal(t, DefaultConfig().Rebuild.Timeout, cfg.Rebuild.Timeout)

	assert.Error(t, WriteDefault(path), "existing file must not be overwritten")
}
