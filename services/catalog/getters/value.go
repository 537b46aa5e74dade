// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package getters extracts analysable values from catalog records.
//
// A Getter never fails. Missing nested data yields None, an empty label
// list, or the Unknown sentinel label, depending on the getter.
package getters

import (
	"github.com/AleutianAI/AleutianMarket/services/catalog/datatypes"
)

// Unknown is the label scalar getters return when the underlying field is
// absent or empty.
const Unknown = "unknown"

// Kind discriminates Value.
type Kind int

const (
	KindNone Kind = iota
	KindNumber
	KindLabels
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindLabels:
		return "labels"
	default:
		return "none"
	}
}

// Value is the result of a Getter: nothing, a number, or a list of labels.
type Value struct {
	kind   Kind
	number float64
	labels []string
}

// None is the "no data" value.
func None() Value { return Value{} }

// Number wraps a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, number: f} }

// Labels wraps a label list. A nil list is kept as an empty Labels value.
func Labels(labels ...string) Value {
	if labels == nil {
		labels = []string{}
	}
	return Value{kind: KindLabels, labels: labels}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNone reports whether v carries no data.
func (v Value) IsNone() bool { return v.kind == KindNone }

// Number returns the numeric payload.
func (v Value) Number() (float64, bool) {
	return v.number, v.kind == KindNumber
}

// Labels returns the label payload.
func (v Value) Labels() ([]string, bool) {
	return v.labels, v.kind == KindLabels
}

// Getter extracts a Value from a record.
type Getter func(*datatypes.AppRecord) Value
