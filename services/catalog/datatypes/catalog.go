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
	"sort"
	"time"
)

// Catalog is an immutable, ordered collection of prepared records.
//
// # Description
//
// Records are kept in ascending ID order. When the input carries the same
// ID more than once the last occurrence wins. All derived record fields are
// computed during construction.
//
// # Thread Safety
//
// Safe for concurrent use. Neither the catalog nor its records may be
// modified after NewCatalog returns.
type Catalog struct {
	records     []*AppRecord
	byID        map[int64]*AppRecord
	generatedAt time.Time
}

// NewCatalog prepares records and builds the catalog.
//
// # Inputs
//
//   - records: Records in input order. Nil entries are ignored.
//   - generatedAt: When the catalog was built; stored in UTC.
//
// # Outputs
//
//   - *Catalog: Never nil.
func NewCatalog(records []*AppRecord, generatedAt time.Time) *Catalog {
	byID := make(map[int64]*AppRecord, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		byID[r.ID] = r
	}

	ordered := make([]*AppRecord, 0, len(byID))
	for _, r := range byID {
		r.Prepare()
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &Catalog{
		records:     ordered,
		byID:        byID,
		generatedAt: generatedAt.UTC(),
	}
}

// EmptyCatalog returns a catalog with no records.
func EmptyCatalog() *Catalog {
	return NewCatalog(nil, time.Time{})
}

// Records returns the records in catalog order. The slice is shared; callers
// must not modify it.
func (c *Catalog) Records() []*AppRecord {
	if c == nil {
		return nil
	}
	return c.records
}

// Get returns the record with the given ID.
func (c *Catalog) Get(id int64) (*AppRecord, bool) {
	if c == nil {
		return nil, false
	}
	r, ok := c.byID[id]
	return r, ok
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// GeneratedAt returns the build time of the catalog.
func (c *Catalog) GeneratedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.generatedAt
}
