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
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// FileSource reads the catalog document from disk.
type FileSource struct {
	name string
	path string
	opts datatypes.DecodeOptions
}

// NewFileSource creates a file source. name defaults to "file".
func NewFileSource(name, path string, opts datatypes.DecodeOptions) *FileSource {
	if name == "" {
		name = "file"
	}
	return &FileSource{name: name, path: path, opts: opts}
}

// Name implements Source.
func (s *FileSource) Name() string { return s.name }

// Path returns the catalog file path.
func (s *FileSource) Path() string { return s.path }

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, progress datatypes.ProgressFunc) (*datatypes.Catalog, datatypes.DecodeStats, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, datatypes.DecodeStats{}, fmt.Errorf("opening catalog file %s: %w", s.path, err)
	}
	defer f.Close()

	opts := s.opts
	opts.Progress = progress
	return datatypes.DecodeCatalog(ctx, bufio.NewReader(f), opts)
}
