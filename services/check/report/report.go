// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report converts internal checking state into the JSON exchange
// format consumed by diagnostics tooling and log pipelines.
//
// Conversions here are one-shot and allocation-only: no locks, no state,
// no I/O. Callers capture a snapshot first (for example epoch.Manager.Status)
// and convert it after.
package report

import (
	"time"

	"github.com/AleutianAI/AleutianCheck/services/check/epoch"
)

// StatusReport is the exchange form of an epoch status snapshot.
type StatusReport struct {
	// SlowPathRunning mirrors epoch.Status.SlowPathRunning.
	SlowPathRunning bool `json:"slow_path_running"`

	// SlowPathCanceled mirrors epoch.Status.SlowPathCanceled.
	SlowPathCanceled bool `json:"slow_path_canceled"`

	// LastCommittedEpoch is the committed frontier.
	LastCommittedEpoch uint32 `json:"last_committed_epoch"`

	// CurrentlyProcessingEpoch is the in-flight epoch.
	CurrentlyProcessingEpoch uint32 `json:"currently_processing_epoch"`

	// GeneratedAt is when the snapshot was converted, in UTC.
	GeneratedAt time.Time `json:"generated_at"`
}

// FromStatus converts an epoch status snapshot to its exchange form.
func FromStatus(st epoch.Status) StatusReport {
	return StatusReport{
		SlowPathRunning:          st.SlowPathRunning,
		SlowPathCanceled:         st.SlowPathCanceled,
		LastCommittedEpoch:       uint32(st.LastCommitted),
		CurrentlyProcessingEpoch: uint32(st.CurrentlyProcessing),
		GeneratedAt:              time.Now().UTC(),
	}
}

// RunOutcome labels how a run resolved in a RunReport.
type RunOutcome string

const (
	// OutcomeCommitted marks a run whose result is now authoritative.
	OutcomeCommitted RunOutcome = "committed"

	// OutcomeRolledBack marks a slow path discarded after a cancellation.
	OutcomeRolledBack RunOutcome = "rolled_back"
)

// RunReport is the exchange form of one resolved run.
type RunReport struct {
	// RunID identifies the run across logs and reports.
	RunID string `json:"run_id"`

	// Epoch is the epoch the run produced results for.
	Epoch uint32 `json:"epoch"`

	// Kind is "fast" or "slow".
	Kind string `json:"kind"`

	// Outcome is the commit resolution.
	Outcome RunOutcome `json:"outcome"`

	// DurationMS is the computation duration in milliseconds.
	DurationMS int64 `json:"duration_ms"`
}

// FromRun converts one resolved run to its exchange form.
func FromRun(runID string, e epoch.Epoch, cancelable, committed bool, duration time.Duration) RunReport {
	kind := "fast"
	if cancelable {
		kind = "slow"
	}
	outcome := OutcomeCommitted
	if !committed {
		outcome = OutcomeRolledBack
	}
	return RunReport{
		RunID:      runID,
		Epoch:      uint32(e),
		Kind:       kind,
		Outcome:    outcome,
		DurationMS: duration.Milliseconds(),
	}
}
