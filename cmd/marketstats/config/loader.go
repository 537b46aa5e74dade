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
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MARKETSTATS_"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the effective configuration.
//
// # Description
//
// Layers, later wins:
//  1. DefaultConfig.
//  2. The YAML file at path, or $MARKETSTATS_CONFIG when path is empty.
//     Unknown keys are rejected.
//  3. MARKETSTATS_* environment variables. Variables in envFile (".env" when
//     empty) are loaded first without overriding the real environment.
//
// The result is validated before it is returned.
//
// # Outputs
//
//   - MarketConfig: Effective configuration.
//   - error: Unreadable file, bad YAML, bad override value, or failed
//     validation.
func Load(path, envFile string) (MarketConfig, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return MarketConfig{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return MarketConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return MarketConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return MarketConfig{}, err
	}
	if err := Validate(cfg); err != nil {
		return MarketConfig{}, err
	}
	return cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg MarketConfig) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WriteDefault writes DefaultConfig as YAML to path, creating parent
// directories. An existing file is left untouched.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg MarketConfig) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeYAML(data []byte, cfg *MarketConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// =============================================================================
// Environment Overrides
// =============================================================================

type lookupFunc func(string) (string, bool)

// applyEnv applies MARKETSTATS_* overrides.
func applyEnv(cfg *MarketConfig, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}

	str("ADDR", &cfg.Server.Addr)
	str("GIN_MODE", &cfg.Server.GinMode)

	str("SOURCE", &cfg.Rebuild.DefaultSource)
	boolean("REBUILD_ON_START", &cfg.Rebuild.OnStart)
	duration("REBUILD_INTERVAL", &cfg.Rebuild.Interval)
	duration("REBUILD_TIMEOUT", &cfg.Rebuild.Timeout)
	integer("DECODE_CONCURRENCY", &cfg.Rebuild.DecodeConcurrency)

	integer("DEFAULT_BUCKETS", &cfg.Query.DefaultBuckets)
	integer("MAX_LISTING", &cfg.Query.MaxListing)

	str("FILE", &cfg.Sources.File.Path)
	boolean("FILE_WATCH", &cfg.Sources.File.Watch)
	str("URL", &cfg.Sources.HTTP.URL)
	str("GCS_BUCKET", &cfg.Sources.GCS.Bucket)
	str("GCS_OBJECT", &cfg.Sources.GCS.Object)
	str("GCS_CREDENTIALS", &cfg.Sources.GCS.CredentialsFile)
	boolean("MOCK", &cfg.Sources.Mock.Enabled)
	integer("MOCK_APPS", &cfg.Sources.Mock.Apps)

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("LOG_DIR", &cfg.Logging.LogDir)

	return errors.Join(errs...)
}
