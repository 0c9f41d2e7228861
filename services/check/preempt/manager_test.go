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
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskManager_ScheduleAndRun(t *testing.T) {
	m := NewTaskManager(nil, nil)

	ran := 0
	require.True(t, m.TrySchedule(func() { ran++ }))
	require.True(t, m.HasPending())

	require.True(t, m.TryRunScheduledTask())
	assert.Equal(t, 1, ran)
	assert.False(t, m.HasPending())

	// The slot is empty again; nothing runs twice.
	assert.False(t, m.TryRunScheduledTask())
	assert.Equal(t, 1, ran)
}

func TestTaskManager_SingleSlot(t *testing.T) {
	m := NewTaskManager(nil, nil)

	var first, second int
	require.True(t, m.TrySchedule(func() { first++ }))
	assert.False(t, m.TrySchedule(func() { second++ }), "second schedule should be rejected")

	require.True(t, m.TryRunScheduledTask())
	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second, "rejected task must never run")
}

func TestTaskManager_NilTaskRejected(t *testing.T) {
	m := NewTaskManager(nil, nil)
	assert.False(t, m.TrySchedule(nil))
	assert.False(t, m.HasPending())
}

func TestTaskManager_CancelScheduled(t *testing.T) {
	m := NewTaskManager(nil, nil)

	ran := 0
	require.True(t, m.TrySchedule(func() { ran++ }))
	require.True(t, m.TryCancelScheduled())

	assert.False(t, m.TryCancelScheduled(), "second cancel has nothing to remove")
	assert.False(t, m.TryRunScheduledTask())
	assert.Equal(t, 0, ran)
}

func TestTaskManager_TaskMayScheduleSuccessor(t *testing.T) {
	m := NewTaskManager(nil, nil)

	order := []string{}
	require.True(t, m.TrySchedule(func() {
		order = append(order, "first")
		// The slot is cleared before the task runs, so re-scheduling from
		// inside the task targets the next gap.
		require.True(t, m.TrySchedule(func() { order = append(order, "second") }))
	}))

	require.True(t, m.TryRunScheduledTask())
	require.True(t, m.TryRunScheduledTask())
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestTaskManager_ConcurrentSchedulers(t *testing.T) {
	m := NewTaskManager(nil, nil)

	const schedulers = 16
	var accepted sync.Map
	var wg sync.WaitGroup
	for i := 0; i < schedulers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if m.TrySchedule(func() {}) {
				accepted.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	accepted.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count, "exactly one scheduler should win the slot")
}

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m := NewTaskManager(nil, metrics)

	require.True(t, m.TrySchedule(func() {}))
	require.False(t, m.TrySchedule(func() {}))
	require.True(t, m.TryRunScheduledTask())

	require.True(t, m.TrySchedule(func() {}))
	require.True(t, m.TryCancelScheduled())

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.ScheduledTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RejectedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RunTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CanceledTotal))
}
