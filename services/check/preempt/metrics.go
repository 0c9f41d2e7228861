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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts preemption scheduling outcomes.
//
// Thread Safety: safe for concurrent use after creation.
type Metrics struct {
	// ScheduledTotal counts tasks accepted into the pending slot.
	ScheduledTotal prometheus.Counter

	// RejectedTotal counts schedule attempts rejected because a task
	// was already pending.
	RejectedTotal prometheus.Counter

	// CanceledTotal counts tasks withdrawn before running.
	CanceledTotal prometheus.Counter

	// RunTotal counts tasks that ran in a post-slow-path gap.
	RunTotal prometheus.Counter
}

// NewMetrics registers the preemption counters with the given registerer.
//
// Inputs:
//   - reg: Prometheus registerer. If nil, uses the default registerer.
//
// Outputs:
//   - *Metrics: the registered counters. Never nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ScheduledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "check_preempt_scheduled_total",
			Help: "Preemption tasks accepted into the pending slot",
		}),
		RejectedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "check_preempt_rejected_total",
			Help: "Preemption schedule attempts rejected while a task was pending",
		}),
		CanceledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "check_preempt_canceled_total",
			Help: "Preemption tasks withdrawn before running",
		}),
		RunTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "check_preempt_run_total",
			Help: "Preemption tasks run after a slow path concluded",
		}),
	}
}
