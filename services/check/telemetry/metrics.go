// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains pre-defined service-level metrics for the check service.
//
// The epoch package records its own protocol counters; the instruments here
// cover the edit-intake surface above it. All metrics use the "check_"
// prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// EditsTotal counts edits ingested by path kind (fast, slow).
	EditsTotal metric.Int64Counter

	// RunsTotal counts resolved runs by kind and outcome.
	RunsTotal metric.Int64Counter

	// RunDuration records end-to-end run duration in seconds, queue wait
	// included.
	RunDuration metric.Float64Histogram

	// ErrorsTotal counts producer-side rejections by reason.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments registered on
// the given meter.
//
// Outputs:
//
//	*Metrics - The metrics instance. Never nil on success.
//	error - Non-nil if instrument registration fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.EditsTotal, err = meter.Int64Counter(
		"check_edits_total",
		metric.WithDescription("Edits ingested by path kind"),
		metric.WithUnit("{edit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create edits_total: %w", err)
	}

	m.RunsTotal, err = meter.Int64Counter(
		"check_runs_total",
		metric.WithDescription("Resolved runs by kind and outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create runs_total: %w", err)
	}

	m.RunDuration, err = meter.Float64Histogram(
		"check_run_duration_seconds",
		metric.WithDescription("End-to-end run duration including queue wait"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create run_duration: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"check_errors_total",
		metric.WithDescription("Producer-side rejections by reason"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}
