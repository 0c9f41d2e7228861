// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator runs checking work on a dedicated worker goroutine
// under the epoch commit/cancel protocol.
//
// The epoch manager restricts its commit operation to a single worker
// goroutine and its start/cancel operations to a single producer goroutine.
// The Coordinator makes that topology concrete: it owns the worker
// goroutine and a task queue feeding it, while the goroutine that calls
// StartSlowPath, RunFastPath, and CancelSlowPath takes the producer role.
//
//	 producer goroutine                         worker goroutine
//	┌──────────────────────┐   task queue   ┌──────────────────────────┐
//	│ RunFastPath          │ ─────────────► │ epochs.TryCommitEpoch    │
//	│ StartSlowPath        │                │   shards via errgroup    │
//	│ CancelSlowPath       │ ──(epochs)──┐  │   readers poll canceled  │
//	└──────────────────────┘             ▼  └──────────────────────────┘
//	                              epoch.Manager ◄── preempt.TaskManager
//
// Slow path work is supplied as shards. Each shard runs on its own reader
// goroutine and receives a poll function reporting whether the slow path
// has been canceled; shards are expected to check it periodically and
// return early, though correctness never depends on them doing so.
//
// All producer-side methods must be called from one goroutine. Calling
// them from several goroutines trips the epoch manager's role guard and
// panics.
package coordinator
