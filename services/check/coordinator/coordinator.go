// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCheck/services/check/epoch"
	"github.com/AleutianAI/AleutianCheck/services/check/preempt"
)

var (
	// ErrClosed is returned when work is offered after Shutdown.
	ErrClosed = errors.New("coordinator is closed")

	// ErrSlowPathRunning is returned by StartSlowPath while a slow path is
	// in flight. Cancel it first, or wait for it to resolve.
	ErrSlowPathRunning = errors.New("a slow path is already running")

	// ErrQueueFull is returned instead of blocking the producer when the
	// worker queue is at capacity.
	ErrQueueFull = errors.New("worker queue is full")

	// ErrNoComputation is returned when no work was supplied.
	ErrNoComputation = errors.New("no computation supplied")
)

// Shard is one unit of slow path work. It runs on its own reader goroutine
// and should poll canceled periodically, returning early when it reports
// true. A shard that never polls still resolves correctly; it just wastes
// work after a cancellation.
type Shard func(canceled func() bool)

// Result tracks one enqueued unit of work.
type Result struct {
	// RunID uniquely identifies this run in logs.
	RunID string

	committed bool
	done      chan struct{}
}

// Done returns a channel closed when the work has resolved.
func (r *Result) Done() <-chan struct{} { return r.done }

// Wait blocks until the work resolves or ctx is done.
//
// Outputs:
//   - bool: true if the result committed, false if it rolled back. Only
//     meaningful when error is nil.
//   - error: ctx.Err() if the context ended first.
func (r *Result) Wait(ctx context.Context) (bool, error) {
	select {
	case <-r.done:
		return r.committed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// task is one queue entry for the worker goroutine.
type task struct {
	epoch      epoch.Epoch
	cancelable bool
	run        func()
	res        *Result
}

// Coordinator owns the worker goroutine and the epoch state for one
// checking session.
//
// Thread Safety: all producer-side methods (RunFastPath, StartSlowPath,
// CancelSlowPath, Shutdown) must be called from a single goroutine, the
// epoch manager binds the producer role to the first caller and panics on
// callers from other goroutines. Status and the preemption methods are safe
// from any goroutine.
type Coordinator struct {
	cfg    Config
	logger *slog.Logger

	epochs     *epoch.Manager
	preemption *preempt.TaskManager

	tasks  chan *task
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New creates a Coordinator and starts its worker goroutine.
//
// Inputs:
//   - cfg: Coordinator configuration. Zero values use defaults.
//   - logger: Logger for run events. If nil, uses slog.Default().
//   - preemption: Optional preemption task manager, shared with whatever
//     schedules preemption tasks. If nil, the Coordinator creates its own.
//
// Outputs:
//   - *Coordinator: the running coordinator. Never nil on success.
//   - error: Non-nil if the configuration is invalid.
func New(cfg Config, logger *slog.Logger, preemption *preempt.TaskManager) (*Coordinator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "check_coordinator"))
	if preemption == nil {
		preemption = preempt.NewTaskManager(logger, nil)
	}

	c := &Coordinator{
		cfg:        cfg,
		logger:     logger,
		epochs:     epoch.NewManager(logger),
		preemption: preemption,
		tasks:      make(chan *task, cfg.QueueSize),
	}

	c.wg.Add(1)
	go c.worker()
	return c, nil
}

// RunFastPath enqueues a non-cancelable unit of work for epoch e.
//
// Fast path work always commits; the returned Result resolves true once the
// worker has run it.
//
// Thread Safety: producer goroutine only.
func (c *Coordinator) RunFastPath(e epoch.Epoch, run func()) (*Result, error) {
	if run == nil {
		return nil, ErrNoComputation
	}
	return c.enqueue(&task{epoch: e, cancelable: false, run: run, res: newResult()})
}

// StartSlowPath begins a cancelable recheck spanning (from, to] and
// enqueues it for the worker.
//
// Description:
//
//	Starts the commit epoch, then hands the worker a computation that
//	fans the shards out over reader goroutines. Each shard receives the
//	lock-free cancellation poll. The Result resolves with the commit
//	outcome; a rollback after CancelSlowPath is a normal result, not an
//	error.
//
// Outputs:
//   - *Result: handle for the enqueued run.
//   - error: ErrSlowPathRunning if one is already in flight, ErrQueueFull,
//     ErrClosed, or ErrNoComputation for an empty shard list.
//
// Thread Safety: producer goroutine only.
func (c *Coordinator) StartSlowPath(from, to epoch.Epoch, shards []Shard) (*Result, error) {
	if len(shards) == 0 {
		return nil, ErrNoComputation
	}
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.epochs.Status().SlowPathRunning {
		return nil, ErrSlowPathRunning
	}
	// The capacity check happens before StartCommitEpoch: once the epoch is
	// started there must be a queued task to resolve it.
	if len(c.tasks) == cap(c.tasks) {
		return nil, ErrQueueFull
	}

	c.epochs.StartCommitEpoch(from, to)

	res := newResult()
	run := func() {
		g := new(errgroup.Group)
		for _, shard := range shards {
			g.Go(func() error {
				shard(c.epochs.TypecheckingCanceled)
				return nil
			})
		}
		_ = g.Wait()
	}

	c.logger.Info("slow path started",
		slog.String("run_id", res.RunID),
		slog.Uint64("from_epoch", uint64(from)),
		slog.Uint64("to_epoch", uint64(to)),
		slog.Int("shards", len(shards)),
	)
	return c.enqueue(&task{epoch: to, cancelable: true, run: run, res: res})
}

// CancelSlowPath marks the in-flight slow path as superseded by newEpoch.
// Returns false when nothing is running or the running epoch is newEpoch
// itself.
//
// Thread Safety: producer goroutine only.
func (c *Coordinator) CancelSlowPath(newEpoch epoch.Epoch) bool {
	st := c.epochs.Status()
	if !st.SlowPathRunning || st.CurrentlyProcessing == newEpoch {
		return false
	}
	return c.epochs.TryCancelSlowPath(newEpoch)
}

// SchedulePreemption offers a task for the gap after the current (or next)
// slow path concludes.
//
// Thread Safety: safe for concurrent use.
func (c *Coordinator) SchedulePreemption(t preempt.Task) bool {
	return c.preemption.TrySchedule(t)
}

// CancelScheduledPreemption withdraws the pending preemption task, if any.
//
// Thread Safety: safe for concurrent use.
func (c *Coordinator) CancelScheduledPreemption() bool {
	return c.preemption.TryCancelScheduled()
}

// Status returns the current epoch protocol status.
//
// Thread Safety: safe for concurrent use.
func (c *Coordinator) Status() epoch.Status {
	return c.epochs.Status()
}

// Shutdown stops accepting work, drains the queue, and waits for the worker
// to exit or ctx to end.
//
// Thread Safety: producer goroutine only, after all other producer calls.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.tasks)

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("coordinator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// enqueue performs the producer-side hand-off to the worker.
func (c *Coordinator) enqueue(t *task) (*Result, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	// Single producer: the capacity check cannot race another sender, and
	// the worker only ever makes room, so this send never blocks.
	if len(c.tasks) == cap(c.tasks) {
		return nil, ErrQueueFull
	}
	c.tasks <- t
	return t.res, nil
}

// worker is the single goroutine allowed to call TryCommitEpoch.
func (c *Coordinator) worker() {
	defer c.wg.Done()
	for t := range c.tasks {
		var handle epoch.TaskRunner
		if t.cancelable {
			handle = c.preemption
		}

		start := time.Now()
		t.res.committed = c.epochs.TryCommitEpoch(t.epoch, t.cancelable, handle, t.run)
		close(t.res.done)

		c.logger.Debug("run resolved",
			slog.String("run_id", t.res.RunID),
			slog.Uint64("epoch", uint64(t.epoch)),
			slog.Bool("cancelable", t.cancelable),
			slog.Bool("committed", t.res.committed),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// newResult allocates a Result with a fresh run ID.
func newResult() *Result {
	return &Result{
		RunID: uuid.NewString(),
		done:  make(chan struct{}),
	}
}
