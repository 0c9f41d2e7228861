// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package preempt

import (
	"log/slog"
	"sync"
)

// Task is a pending high-priority unit of work. It takes no arguments and
// returns nothing; any inputs or outputs travel through the closure.
type Task func()

// TaskManager holds at most one scheduled preemption task.
//
// Thread Safety: safe for concurrent use. The pending slot is guarded by a
// mutex; the task itself always runs with the mutex released.
type TaskManager struct {
	mu      sync.Mutex
	pending Task

	logger  *slog.Logger
	metrics *Metrics
}

// NewTaskManager creates an empty TaskManager.
//
// Inputs:
//   - logger: Logger for scheduling events. If nil, uses slog.Default().
//   - metrics: Optional Prometheus metrics. May be nil.
//
// Thread Safety: the returned manager is safe for concurrent use.
func NewTaskManager(logger *slog.Logger, metrics *Metrics) *TaskManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskManager{
		logger:  logger.With(slog.String("component", "preempt_manager")),
		metrics: metrics,
	}
}

// TrySchedule offers a task for the next post-slow-path gap.
//
// Outputs:
//   - bool: true if the task was scheduled; false if a task is already
//     pending (the offered task is dropped, not queued) or task is nil.
//
// Thread Safety: safe for concurrent use.
func (m *TaskManager) TrySchedule(task Task) bool {
	if task == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending != nil {
		m.logger.Debug("preemption slot occupied, task rejected")
		if m.metrics != nil {
			m.metrics.RejectedTotal.Inc()
		}
		return false
	}

	m.pending = task
	if m.metrics != nil {
		m.metrics.ScheduledTotal.Inc()
	}
	return true
}

// TryCancelScheduled withdraws the pending task, if any.
//
// Outputs:
//   - bool: true if a pending task was removed before running.
//
// Thread Safety: safe for concurrent use.
func (m *TaskManager) TryCancelScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pending == nil {
		return false
	}
	m.pending = nil
	if m.metrics != nil {
		m.metrics.CanceledTotal.Inc()
	}
	return true
}

// TryRunScheduledTask runs the pending task if one is scheduled.
//
// This is the single operation the epoch manager invokes, once per
// cancelable commit attempt, after its own lock has been released. The
// pending slot is cleared before the task runs, so the task may itself
// schedule a successor for the next gap.
//
// Outputs:
//   - bool: true if a task ran.
//
// Thread Safety: safe for concurrent use. The task runs outside the lock.
func (m *TaskManager) TryRunScheduledTask() bool {
	m.mu.Lock()
	task := m.pending
	m.pending = nil
	m.mu.Unlock()

	if task == nil {
		return false
	}

	m.logger.Debug("running preemption task")
	if m.metrics != nil {
		m.metrics.RunTotal.Inc()
	}
	task()
	return true
}

// HasPending reports whether a task is currently scheduled.
//
// Thread Safety: safe for concurrent use; the answer may be stale by the
// time the caller acts on it.
func (m *TaskManager) HasPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}
