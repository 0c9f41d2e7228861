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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCheck/services/check/epoch"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c, err := New(Config{}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func waitCommitted(t *testing.T, res *Result) bool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	committed, err := res.Wait(ctx)
	require.NoError(t, err)
	return committed
}

func TestCoordinator_FastPathCommits(t *testing.T) {
	c := newTestCoordinator(t)

	var ran atomic.Int32
	res, err := c.RunFastPath(1, func() { ran.Add(1) })
	require.NoError(t, err)

	assert.True(t, waitCommitted(t, res))
	assert.Equal(t, int32(1), ran.Load())
	assert.NotEmpty(t, res.RunID)
}

func TestCoordinator_SlowPathCommits(t *testing.T) {
	c := newTestCoordinator(t)

	var checked atomic.Int32
	shards := []Shard{
		func(canceled func() bool) { checked.Add(1) },
		func(canceled func() bool) { checked.Add(1) },
		func(canceled func() bool) { checked.Add(1) },
	}

	res, err := c.StartSlowPath(1, 2, shards)
	require.NoError(t, err)

	assert.True(t, waitCommitted(t, res))
	assert.Equal(t, int32(3), checked.Load())

	st := c.Status()
	assert.False(t, st.SlowPathRunning)
	assert.Equal(t, epoch.Epoch(2), st.LastCommitted)
}

func TestCoordinator_CancelRollsBack(t *testing.T) {
	c := newTestCoordinator(t)

	// The shard runs until it observes the cancellation, so the rollback
	// path is taken deterministically.
	shard := func(canceled func() bool) {
		for !canceled() {
			time.Sleep(time.Millisecond)
		}
	}

	res, err := c.StartSlowPath(1, 2, []Shard{shard})
	require.NoError(t, err)

	require.True(t, c.CancelSlowPath(3))

	assert.False(t, waitCommitted(t, res))
	st := c.Status()
	assert.False(t, st.SlowPathRunning)
	assert.Equal(t, epoch.Epoch(1), st.LastCommitted)
	assert.Equal(t, epoch.Epoch(1), st.CurrentlyProcessing)
}

func TestCoordinator_CancelWhenIdle(t *testing.T) {
	c := newTestCoordinator(t)
	assert.False(t, c.CancelSlowPath(5))
}

func TestCoordinator_RejectsSecondSlowPath(t *testing.T) {
	c := newTestCoordinator(t)

	release := make(chan struct{})
	blocking := func(canceled func() bool) { <-release }

	res, err := c.StartSlowPath(1, 2, []Shard{blocking})
	require.NoError(t, err)

	_, err = c.StartSlowPath(2, 3, []Shard{func(func() bool) {}})
	assert.ErrorIs(t, err, ErrSlowPathRunning)

	close(release)
	assert.True(t, waitCommitted(t, res))

	// Resolved now, so the next slow path is accepted.
	res, err = c.StartSlowPath(2, 3, []Shard{func(func() bool) {}})
	require.NoError(t, err)
	assert.True(t, waitCommitted(t, res))
}

func TestCoordinator_PreemptionRunsAfterSlowPath(t *testing.T) {
	c := newTestCoordinator(t)

	var preempted atomic.Bool
	require.True(t, c.SchedulePreemption(func() { preempted.Store(true) }))

	res, err := c.StartSlowPath(1, 2, []Shard{func(func() bool) {}})
	require.NoError(t, err)

	// The hand-off happens inside the commit resolution, before the result
	// channel closes, so the task has run by the time Wait returns.
	assert.True(t, waitCommitted(t, res))
	assert.True(t, preempted.Load())
}

func TestCoordinator_PreemptionRunsAfterRollbackToo(t *testing.T) {
	c := newTestCoordinator(t)

	var preempted atomic.Bool
	require.True(t, c.SchedulePreemption(func() { preempted.Store(true) }))

	shard := func(canceled func() bool) {
		for !canceled() {
			time.Sleep(time.Millisecond)
		}
	}
	res, err := c.StartSlowPath(1, 2, []Shard{shard})
	require.NoError(t, err)
	require.True(t, c.CancelSlowPath(3))

	assert.False(t, waitCommitted(t, res))
	assert.True(t, preempted.Load())
}

func TestCoordinator_QueueFull(t *testing.T) {
	c, err := New(Config{QueueSize: 1}, nil, nil)
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Shutdown(ctx)
	}()

	release := make(chan struct{})

	// First task occupies the worker, second fills the queue.
	first, err := c.RunFastPath(1, func() { <-release })
	require.NoError(t, err)
	// The worker may not have dequeued yet; retry until the queue has room
	// for exactly one more.
	var second *Result
	require.Eventually(t, func() bool {
		res, err := c.RunFastPath(2, func() {})
		if err != nil {
			return false
		}
		second = res
		return true
	}, 5*time.Second, time.Millisecond)

	_, err = c.RunFastPath(3, func() {})
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	assert.True(t, waitCommitted(t, first))
	assert.True(t, waitCommitted(t, second))
}

func TestCoordinator_ShutdownDrainsAndRejects(t *testing.T) {
	c, err := New(Config{}, nil, nil)
	require.NoError(t, err)

	var ran atomic.Int32
	res, err := c.RunFastPath(1, func() { ran.Add(1) })
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	// Queued work resolved before shutdown returned.
	assert.True(t, waitCommitted(t, res))
	assert.Equal(t, int32(1), ran.Load())

	_, err = c.RunFastPath(2, func() {})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.StartSlowPath(1, 2, []Shard{func(func() bool) {}})
	assert.ErrorIs(t, err, ErrClosed)

	// Idempotent.
	require.NoError(t, c.Shutdown(ctx))
}

func TestCoordinator_NoComputation(t *testing.T) {
	c := newTestCoordinator(t)

	_, err := c.RunFastPath(1, nil)
	assert.ErrorIs(t, err, ErrNoComputation)

	_, err = c.StartSlowPath(1, 2, nil)
	assert.ErrorIs(t, err, ErrNoComputation)
}

func TestResult_WaitHonorsContext(t *testing.T) {
	c := newTestCoordinator(t)

	release := make(chan struct{})
	res, err := c.RunFastPath(1, func() { <-release })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = res.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	assert.True(t, waitCommitted(t, res))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name: "defaults are valid",
			config: func() Config {
				c := Config{}
				c.ApplyDefaults()
				return c
			}(),
			wantError: false,
		},
		{name: "explicit queue size", config: Config{QueueSize: 8}, wantError: false},
		{name: "negative queue size", config: Config{QueueSize: -1}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
