// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package epoch arbitrates whether a running typecheck may commit its result.
//
// The incremental checker has two kinds of work: fast paths, which are cheap
// and always commit, and slow paths, which recheck from scratch and can be
// superseded by newer edits while they run. The Manager tracks three version
// counters and decides, at the moment a slow path finishes, whether its
// result is still current or must be discarded.
//
// # Architecture
//
//	┌───────────────┐  StartCommitEpoch / TryCancelSlowPath   ┌───────────────┐
//	│   Producer     │ ───────────────────────────────────────►│               │
//	│  (edit intake) │                                         │ epoch.Manager │
//	└───────────────┘                                          │   3 counters  │
//	┌───────────────┐  TryCommitEpoch(run typecheck, resolve)  │   + mutex     │
//	│    Worker      │ ───────────────────────────────────────►│               │
//	│  (typechecker) │                                         └──────┬────────┘
//	└───────────────┘                                                 │
//	┌───────────────┐  TypecheckingCanceled (lock-free poll)          │
//	│ Reader workers │ ◄───────────────────────────────────────────────┘
//	└───────────────┘
//
// Per slow path the lifecycle is:
//
//	IDLE ──StartCommitEpoch──► RUNNING ──TryCommitEpoch──► COMMITTED or ROLLED BACK ──► IDLE
//
// TryCancelSlowPath is the only edge available while RUNNING. It does not
// leave RUNNING; it only flags the eventual TryCommitEpoch outcome.
//
// # Roles
//
// Two operations are restricted to one goroutine each: StartCommitEpoch and
// TryCancelSlowPath belong to the producer, TryCommitEpoch to the worker.
// The roles are bound to whichever goroutine calls first; later calls from a
// different goroutine panic with *ProtocolViolationError. Any number of
// reader goroutines may call TypecheckingCanceled concurrently.
//
// # Thread Safety
//
// All counter writes happen under an exclusive mutex. TypecheckingCanceled
// reads the counters without the mutex and may observe a slightly stale
// view; see its documentation for the exact contract. The typecheck callable
// passed to TryCommitEpoch always runs with no lock held, so the producer
// stays responsive while a slow path is in flight.
package epoch
