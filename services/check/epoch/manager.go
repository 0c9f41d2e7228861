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

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// Manager owns the three epoch counters and the commit/cancel protocol.
//
// The counters are atomics so the lock-free staleness poll can read them,
// but every write happens under mu. Epoch values carry no ownership of data;
// the Manager never holds a reference to the artifacts the worker produces.
//
// Thread Safety: see the package documentation for the ownership contract.
// Status, WithStatusLocked, and TypecheckingCanceled are safe from any
// goroutine; the remaining operations are role-restricted.
type Manager struct {
	mu sync.Mutex

	// currentlyProcessing identifies the computation presently attributed as
	// in flight. May already be committed if no newer commit has started.
	currentlyProcessing atomic.Uint32

	// lastCommitted is the epoch of the most recent committed result.
	lastCommitted atomic.Uint32

	// invalidator is the epoch the producer wants committed. Differs from
	// currentlyProcessing exactly when the in-flight slow path is canceled.
	invalidator atomic.Uint32

	// producerGoroutine and workerGoroutine lazily bind the two restricted
	// roles to whichever goroutine calls first. Zero means unbound.
	producerGoroutine atomic.Uint64
	workerGoroutine   atomic.Uint64

	logger *slog.Logger
}

// NewManager creates a Manager with all three counters at the sentinel
// epoch zero, so a fresh Manager reports an idle, uncanceled system.
//
// Inputs:
//   - logger: Logger for protocol events. If nil, uses slog.Default().
//
// Thread Safety: the returned Manager is ready for concurrent use.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger.With(slog.String("component", "epoch_manager")),
	}
}

// StartCommitEpoch begins a new cancelable unit of work beyond fromEpoch.
//
// Description:
//
//	Records toEpoch as both in flight and wanted (a freshly started epoch
//	always begins uncanceled) and advances the committed frontier to
//	fromEpoch. The frontier is advanced here, lazily, rather than after
//	every fast path commit: fast paths stay lock-free, and the (from, to]
//	range is stated explicitly by the caller instead of accumulated.
//
// Preconditions (violations panic with *ProtocolViolationError):
//   - called from the producer goroutine
//   - fromEpoch != toEpoch
//   - toEpoch is neither currently processing nor already committed
//
// Thread Safety: producer goroutine only.
func (m *Manager) StartCommitEpoch(fromEpoch, toEpoch Epoch) {
	m.assertRole(&m.producerGoroutine, "StartCommitEpoch", "producer")

	m.mu.Lock()
	defer m.mu.Unlock()

	if fromEpoch == toEpoch {
		violation("StartCommitEpoch", "from and to epochs are both %d", toEpoch)
	}
	if Epoch(m.currentlyProcessing.Load()) == toEpoch {
		violation("StartCommitEpoch", "epoch %d is already processing", toEpoch)
	}
	if Epoch(m.lastCommitted.Load()) == toEpoch {
		violation("StartCommitEpoch", "epoch %d is already committed", toEpoch)
	}

	// toEpoch is a version "ahead" of currentlyProcessing; the distance
	// between the two is the number of fast path edits since the last slow
	// path. Epochs wrap, so there is nothing to assert about ordering.
	m.currentlyProcessing.Store(uint32(toEpoch))
	m.invalidator.Store(uint32(toEpoch))
	m.lastCommitted.Store(uint32(fromEpoch))

	m.logger.Debug("commit epoch started",
		slog.Uint64("from_epoch", uint64(fromEpoch)),
		slog.Uint64("to_epoch", uint64(toEpoch)),
	)
}

// TryCancelSlowPath marks the in-flight slow path as superseded by newEpoch.
//
// Description:
//
//	Cancellation is advisory: nothing is interrupted and no counter other
//	than the invalidator moves. The worker discovers the cancellation when
//	it reaches its commit point and rolls back there; readers may notice
//	earlier through TypecheckingCanceled and abort their shard.
//
// Outputs:
//   - bool: true if an in-flight slow path was marked canceled; false when
//     nothing is in flight (idle no-op).
//
// Precondition (violations panic with *ProtocolViolationError): newEpoch
// must differ from the currently processing epoch. Canceling into the epoch
// that is running would make the cancellation unobservable.
//
// Thread Safety: producer goroutine only.
func (m *Manager) TryCancelSlowPath(newEpoch Epoch) bool {
	m.assertRole(&m.producerGoroutine, "TryCancelSlowPath", "producer")

	m.mu.Lock()
	defer m.mu.Unlock()

	processing := Epoch(m.currentlyProcessing.Load())
	if newEpoch == processing {
		violation("TryCancelSlowPath", "new epoch %d is the processing epoch", newEpoch)
	}
	committed := Epoch(m.lastCommitted.Load())
	if processing == committed {
		// Idle. Nothing in flight to cancel.
		return false
	}

	m.invalidator.Store(uint32(newEpoch))
	m.logger.Debug("slow path canceled",
		slog.Uint64("processing_epoch", uint64(processing)),
		slog.Uint64("new_epoch", uint64(newEpoch)),
	)
	recordCancelRequested()
	return true
}

// TryCommitEpoch runs typecheck and resolves whether its result commits.
//
// Description:
//
//	With cancelable false the work is a fast path: typecheck runs and the
//	commit succeeds unconditionally. With cancelable true the work is a
//	slow path: typecheck runs with no lock held (holding the lock would
//	block TryCancelSlowPath for the whole computation, defeating
//	cancellation), then the outcome is resolved atomically. If no
//	cancellation arrived the committed frontier advances to the epoch; if
//	one did, both currentlyProcessing and the invalidator roll back to
//	lastCommitted, restoring the pre-slow-path baseline exactly.
//
//	After the lock is released, for either outcome, the preemption handle
//	(if supplied) gets exactly one TryRunScheduledTask call. The shared
//	state is fully quiesced by then, so a preempting task never observes a
//	half-committed epoch.
//
// Inputs:
//   - epoch: the epoch this work is producing results for. For cancelable
//     work a prior StartCommitEpoch must have named it.
//   - cancelable: false for fast path work, true for slow path work.
//   - preemption: optional hand-off to the preemption task manager. May be
//     nil. Borrowed for this call only, never retained.
//   - typecheck: the computation. Invoked exactly once, outside any lock.
//     Panics propagate unmodified; no commit occurs in that case.
//
// Outputs:
//   - bool: true if the result committed, false if it was rolled back.
//     A rollback is a normal outcome, not an error.
//
// Thread Safety: worker goroutine only. Reader goroutines spawned by
// typecheck may poll TypecheckingCanceled concurrently.
func (m *Manager) TryCommitEpoch(epoch Epoch, cancelable bool, preemption TaskRunner, typecheck func()) bool {
	m.assertRole(&m.workerGoroutine, "TryCommitEpoch", "worker")

	if !cancelable {
		start := time.Now()
		typecheck()
		recordCommit("fast", true, time.Since(start))
		return true
	}

	// StartCommitEpoch must have named this epoch beforehand.
	if Epoch(m.currentlyProcessing.Load()) != epoch {
		violation("TryCommitEpoch", "epoch %d was never started (processing %d)",
			epoch, m.currentlyProcessing.Load())
	}

	start := time.Now()
	typecheck()

	committed := false
	m.mu.Lock()
	processing := m.currentlyProcessing.Load()
	if processing == m.invalidator.Load() {
		if m.lastCommitted.Load() == processing {
			m.mu.Unlock()
			violation("TryCommitEpoch", "epoch %d is already committed", epoch)
		}
		m.lastCommitted.Store(processing)
		committed = true
	} else {
		// Canceled mid-flight. Restore the pre-slow-path baseline so the
		// next StartCommitEpoch sees a clean (from, to] starting point.
		last := m.lastCommitted.Load()
		m.currentlyProcessing.Store(last)
		m.invalidator.Store(last)
	}
	m.mu.Unlock()

	m.logger.Debug("slow path resolved",
		slog.Uint64("epoch", uint64(epoch)),
		slog.Bool("committed", committed),
		slog.Duration("duration", time.Since(start)),
	)
	recordCommit("slow", committed, time.Since(start))

	if preemption != nil {
		// The slow path is over; run a preemption task that may have snuck
		// in while it was finishing up. No others can be scheduled against
		// this gap.
		preemption.TryRunScheduledTask()
	}
	return committed
}

// TypecheckingCanceled reports whether the in-flight slow path is canceled.
//
// This is the staleness poll for reader goroutines inside the computation,
// so it reads the counters without the lock. The result can be slightly out
// of date: a false return means "probably not canceled, recheck later",
// while a true return is definitive and should abort the shard early.
// Correctness never depends on the poll: the commit point re-validates
// under the lock regardless, so a late abort only wastes work.
//
// Thread Safety: any goroutine, lock-free.
func (m *Manager) TypecheckingCanceled() bool {
	return m.invalidator.Load() != m.currentlyProcessing.Load()
}

// Status returns a consistent snapshot of the protocol state.
//
// Thread Safety: safe for concurrent use; takes the lock.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

// WithStatusLocked invokes fn with a status snapshot while still holding the
// Manager's lock, for callers that must act atomically on the observed state
// (for example: start a new epoch only if none is running). fn must not call
// back into the Manager.
//
// Thread Safety: safe for concurrent use; fn runs under the lock.
func (m *Manager) WithStatusLocked(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.statusLocked())
}

// statusLocked assembles a Status. Caller must hold mu.
func (m *Manager) statusLocked() Status {
	processing := Epoch(m.currentlyProcessing.Load())
	committed := Epoch(m.lastCommitted.Load())
	inv := Epoch(m.invalidator.Load())
	return Status{
		SlowPathRunning:     processing != committed,
		SlowPathCanceled:    processing != inv,
		LastCommitted:       committed,
		CurrentlyProcessing: processing,
	}
}

// assertRole binds a restricted operation to the first goroutine that calls
// it and panics if a later call arrives from a different goroutine. The
// roles are assigned by runtime topology, not by type, so the binding is
// deliberately first-caller-wins.
func (m *Manager) assertRole(bound *atomic.Uint64, op, role string) {
	id := goroutineID()
	if bound.CompareAndSwap(0, id) {
		return
	}
	if got := bound.Load(); got != id {
		violation(op, "restricted to the %s goroutine (goroutine %d), called from goroutine %d",
			role, got, id)
	}
}

// goroutineID returns the current goroutine's ID, parsed from the first
// line of its stack header.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] < '0' || buf[i] > '9' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
