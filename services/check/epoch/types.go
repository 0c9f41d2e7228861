// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package epoch

// Epoch is an opaque version token assigned per unit of input change.
//
// Epochs are compared only for equality, never ordered: they wrap around at
// the 32-bit boundary, and the distance between two epochs (the number of
// fast path edits between slow paths) carries no meaning to the Manager.
type Epoch uint32

// Status is a snapshot of the Manager's state, taken under its lock.
type Status struct {
	// SlowPathRunning is true while a slow path is in flight, that is while
	// CurrentlyProcessing differs from LastCommitted.
	SlowPathRunning bool

	// SlowPathCanceled is true if the in-flight slow path has been marked
	// canceled and will roll back when it reaches its commit point.
	SlowPathCanceled bool

	// LastCommitted is the epoch of the most recently committed result.
	LastCommitted Epoch

	// CurrentlyProcessing is the epoch attributed as in flight. Equal to
	// LastCommitted when no slow path is running.
	CurrentlyProcessing Epoch
}

// TaskRunner is the preemption hand-off consumed by TryCommitEpoch.
//
// The Manager borrows a TaskRunner for the duration of one cancelable
// TryCommitEpoch call and invokes TryRunScheduledTask exactly once, after
// its lock has been released, so the preempting task can never observe a
// half-committed epoch. See the preempt package for the implementation.
type TaskRunner interface {
	// TryRunScheduledTask runs the pending high-priority task if one is
	// scheduled. Returns true if a task ran.
	TryRunScheduledTask() bool
}
