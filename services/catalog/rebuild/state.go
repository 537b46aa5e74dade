// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rebuild

import (
	"time"
)

// Phase is the rebuild lifecycle position.
//
//	Idle -> Running -> Completed | Failed -> Running -> ...
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Terminal reports whether p ends a run.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// JobState is an immutable view of the current or most recent run.
// Every transition publishes a new value; readers never see a partial
// update.
type JobState struct {
	RunID           string     `json:"run_id,omitempty"`
	Phase           Phase      `json:"phase"`
	Source          string     `json:"source,omitempty"`
	Processed       int        `json:"processed"`
	Total           int        `json:"total"`
	Records         int        `json:"records"`
	Skipped         int        `json:"skipped"`
	Error           string     `json:"error,omitempty"`
	SnapshotVersion uint64     `json:"snapshot_version,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// Percent returns Processed/Total in [0, 100], or 0 when Total is unknown.
func (s JobState) Percent() float64 {
	if s.Total <= 0 {
		if s.Phase == PhaseCompleted {
			return 100
		}
		return 0
	}
	p := float64(s.Processed) / float64(s.Total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// Duration returns the run's elapsed time, measured to now while running.
func (s JobState) Duration(now time.Time) time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	if s.FinishedAt != nil {
		return s.FinishedAt.Sub(*s.StartedAt)
	}
	return now.Sub(*s.StartedAt)
}
