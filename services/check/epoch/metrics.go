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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for epoch protocol metrics.
var meter = otel.Meter("aleutian.check.epoch")

// Metrics for commit/cancel outcomes.
var (
	commitTotal      metric.Int64Counter
	commitDuration   metric.Float64Histogram
	cancelsRequested metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commitTotal, err = meter.Int64Counter(
			"check_epoch_commits_total",
			metric.WithDescription("Commit attempts by path kind and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commitDuration, err = meter.Float64Histogram(
			"check_epoch_commit_duration_seconds",
			metric.WithDescription("Duration of the computation inside a commit attempt"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cancelsRequested, err = meter.Int64Counter(
			"check_epoch_cancels_requested_total",
			metric.WithDescription("Slow path cancellations requested by the producer"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordCommit records one commit attempt. Recording never fails the
// protocol operation; a metrics init error simply drops the sample.
func recordCommit(kind string, committed bool, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("committed", committed),
	)
	ctx := context.Background()
	commitTotal.Add(ctx, 1, attrs)
	commitDuration.Record(ctx, duration.Seconds(), attrs)
}

// recordCancelRequested records one successful TryCancelSlowPath.
func recordCancelRequested() {
	if err := initMetrics(); err != nil {
		return
	}
	cancelsRequested.Add(context.Background(), 1)
}
