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
	"os"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// GCSOptions configures a GCSSource.
type GCSOptions struct {
	Name            string
	Bucket          string
	Object          string
	CredentialsFile string

	// Endpoint overrides the storage API endpoint (for emulators). When set
	// and CredentialsFile is empty, requests are unauthenticated.
	Endpoint string

	Decode datatypes.DecodeOptions
}

// GCSSource reads the catalog document from a Cloud Storage object.
//
// The storage client is created on first Fetch so that a service can start
// without credentials when the GCS source is never used.
type GCSSource struct {
	opts GCSOptions

	mu     sync.Mutex
	client *storage.Client
}

// NewGCSSource validates opts. Name defaults to "gcs".
func NewGCSSource(opts GCSOptions) (*GCSSource, error) {
	if opts.Bucket == "" || opts.Object == "" {
		return nil, errors.New("gcs source: bucket and object are required")
	}
	if opts.CredentialsFile != "" {
		if _, err := os.Stat(opts.CredentialsFile); err != nil {
			return nil, fmt.Errorf("gcs source: service account key not found at path %s: %w", opts.CredentialsFile, err)
		}
	}
	if opts.Name == "" {
		opts.Name = "gcs"
	}
	return &GCSSource{opts: opts}, nil
}

// Name implements Source.
func (s *GCSSource) Name() string { return s.opts.Name }

// URI returns the gs:// location of the catalog.
func (s *GCSSource) URI() string {
	return fmt.Sprintf("gs://%s/%s", s.opts.Bucket, s.opts.Object)
}

// Fetch implements Source.
func (s *GCSSource) Fetch(ctx context.Context, progress datatypes.ProgressFunc) (*datatypes.Catalog, datatypes.DecodeStats, error) {
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, datatypes.DecodeStats{}, err
	}

	rc, err := client.Bucket(s.opts.Bucket).Object(s.opts.Object).NewReader(ctx)
	if err != nil {
		return nil, datatypes.DecodeStats{}, fmt.Errorf("opening %s: %w", s.URI(), err)
	}
	defer rc.Close()

	opts := s.opts.Decode
	opts.Progress = progress
	return datatypes.DecodeCatalog(ctx, rc, opts)
}

// Close releases the storage client, if one was created.
func (s *GCSSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *GCSSource) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	var opts []option.ClientOption
	if s.opts.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.opts.CredentialsFile))
	}
	if s.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.opts.Endpoint))
		if s.opts.CredentialsFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	s.client = client
	return client, nil
}
