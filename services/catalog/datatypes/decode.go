// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrInvalidDocument is returned when the catalog document is neither a JSON
// object nor a JSON array.
var ErrInvalidDocument = errors.New("catalog document must be a JSON object or array")

// ProgressFunc receives (processed, total) record counts while a catalog is
// decoded. It may be called from several goroutines.
type ProgressFunc func(processed, total int)

// DecodeOptions tunes DecodeCatalog.
type DecodeOptions struct {
	// Concurrency bounds the number of parallel record decoders.
	// Zero means GOMAXPROCS.
	Concurrency int

	// Progress is optional.
	Progress ProgressFunc

	// ProgressEvery controls how often Progress fires. Zero means 500.
	ProgressEvery int

	// Now stamps Catalog.GeneratedAt. Defaults to time.Now.
	Now func() time.Time
}

// DecodeStats reports what the decoder saw.
//
// Skipped counts records that are not JSON objects plus records with no
// usable id (MissingID). MalformedFields counts wrong-typed fields that were
// dropped from otherwise decoded records.
type DecodeStats struct {
	Total           int `json:"total"`
	Decoded         int `json:"decoded"`
	Skipped         int `json:"skipped"`
	MissingID       int `json:"missing_id"`
	MalformedFields int `json:"malformed_fields"`
}

var (
	errNotObject = errors.New("record is not a JSON object")
	errMissingID = errors.New("record has no id")
)

type rawEntry struct {
	key string
	doc json.RawMessage
}

// DecodeCatalog reads a catalog document and builds a Catalog.
//
// # Description
//
// The document is either an object mapping ids to records or a bare array of
// records. Individual records are decoded in parallel. Wrong-typed fields
// are dropped from their record and counted. A record that is not a JSON
// object, or whose id cannot be determined, is skipped and counted; neither
// fails the whole catalog.
//
// # Inputs
//
//   - ctx: Cancels decoding between records.
//   - r: The document.
//   - opts: Tuning and progress reporting.
//
// # Outputs
//
//   - *Catalog: The decoded catalog (nil on error).
//   - DecodeStats: Record counts.
//   - error: Non-nil if the document could not be read or is not JSON.
//
// # Limitations
//
//   - The whole document is buffered in memory.
//   - A record without a numeric id takes its id from the object key when
//     the key is an integer. Array entries have no key, so they need an id
//     of their own.
func DecodeCatalog(ctx context.Context, r io.Reader, opts DecodeOptions) (*Catalog, DecodeStats, error) {
	var stats DecodeStats

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, stats, fmt.Errorf("reading catalog: %w", err)
	}

	entries, err := splitDocument(data)
	if err != nil {
		return nil, stats, err
	}
	stats.Total = len(entries)

	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = 500
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	records := make([]*AppRecord, len(entries))
	var processed atomic.Int64
	var skipped, missingID, malformed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, bad, err := decodeRecord(entries[i])
			switch {
			case err == nil:
				records[i] = rec
				malformed.Add(int64(bad))
			case errors.Is(err, errMissingID):
				missingID.Add(1)
				skipped.Add(1)
			default:
				skipped.Add(1)
			}
			n := processed.Add(1)
			if opts.Progress != nil && (n%int64(every) == 0 || int(n) == len(entries)) {
				opts.Progress(int(n), len(entries))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, fmt.Errorf("decoding catalog: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("decoding catalog: %w", err)
	}

	stats.Skipped = int(skipped.Load())
	stats.Decoded = stats.Total - stats.Skipped
	stats.MissingID = int(missingID.Load())
	stats.MalformedFields = int(malformed.Load())
	return NewCatalog(records, now()), stats, nil
}

// splitDocument returns the raw record documents in a deterministic order:
// array order, or object keys sorted numerically (non-numeric keys last).
func splitDocument(data []byte) ([]rawEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrInvalidDocument
	}

	switch trimmed[0] {
	case '[':
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("parsing catalog array: %w", err)
		}
		entries := make([]rawEntry, len(docs))
		for i, d := range docs {
			entries[i] = rawEntry{doc: d}
		}
		return entries, nil

	case '{':
		var docs map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("parsing catalog object: %w", err)
		}
		entries := make([]rawEntry, 0, len(docs))
		for k, d := range docs {
			entries = append(entries, rawEntry{key: k, doc: d})
		}
		sort.Slice(entries, func(i, j int) bool {
			ki, erri := strconv.ParseInt(entries[i].key, 10, 64)
			kj, errj := strconv.ParseInt(entries[j].key, 10, 64)
			switch {
			case erri == nil && errj == nil:
				return ki < kj
			case erri == nil:
				return true
			case errj == nil:
				return false
			default:
				return entries[i].key < entries[j].key
			}
		})
		return entries, nil
	}

	return nil, ErrInvalidDocument
}

// decodeRecord builds one record and reports how many of its fields were
// dropped as malformed.
func decodeRecord(e rawEntry) (*AppRecord, int, error) {
	doc := bytes.TrimSpace(e.doc)
	if len(doc) == 0 || doc[0] != '{' {
		return nil, 0, errNotObject
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(doc, &fields); err != nil {
		return nil, 0, errNotObject
	}

	rec := &AppRecord{}
	malformed, hasID := rec.decodeFields(fields)
	if !hasID {
		id, err := strconv.ParseInt(e.key, 10, 64)
		if err != nil {
			return nil, malformed, errMissingID
		}
		rec.ID = id
	}
	rec.serialized = searchText(doc)
	return rec, malformed, nil
}
