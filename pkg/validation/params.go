// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for request path parameters.
//
// Values validated here end up in log lines, metric labels and cache keys.
// Bounding their shape keeps label cardinality under control and keeps
// control characters out of logs.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// identifierPattern matches graph ids and source selectors.
// Allows: lowercase letters, digits, underscores and hyphens, starting with
// a letter. Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_\-]{0,63}$`)

// MaxAuthorLength bounds author names accepted in paths.
const MaxAuthorLength = 256

// MaxBuckets bounds the n parameter of frequency queries.
const MaxBuckets = 1000

// ValidateIdentifier validates a graph id or source selector.
//
// Valid identifiers:
//   - 1-64 characters
//   - Lowercase letters a-z, digits, '_' and '-'
//   - Must start with a letter
//
// Example:
//
//	if err := validation.ValidateIdentifier(c.Param("graph")); err != nil {
//	    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
//	    return
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier format: %q (must be 1-64 lowercase alphanumeric chars, underscores, or hyphens)", id)
	}
	return nil
}

// ValidateAuthor checks an author name taken from a request path.
// Any printable UTF-8 text up to MaxAuthorLength bytes is accepted.
func ValidateAuthor(author string) error {
	if strings.TrimSpace(author) == "" {
		return fmt.Errorf("author cannot be empty")
	}
	if len(author) > MaxAuthorLength {
		return fmt.Errorf("author too long: %d bytes (max %d)", len(author), MaxAuthorLength)
	}
	if !utf8.ValidString(author) {
		return fmt.Errorf("author is not valid UTF-8")
	}
	for _, r := range author {
		if unicode.IsControl(r) {
			return fmt.Errorf("author contains control characters")
		}
	}
	return nil
}

// ParseAppID parses a positive integer app id.
func ParseAppID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid app id: %q (must be a positive integer)", raw)
	}
	return id, nil
}

// ParseNonNegative parses a non-negative integer such as a ratings
// threshold.
func ParseNonNegative(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number: %q (must be a non-negative integer)", raw)
	}
	return n, nil
}

// ParseBucketCount parses the n parameter of a frequency query. An empty
// value yields def. Zero is valid and asks for no buckets. Values are
// clamped to MaxBuckets.
func ParseBucketCount(raw string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bucket count: %q (must be a non-negative integer)", raw)
	}
	if n > MaxBuckets {
		n = MaxBuckets
	}
	return n, nil
}
