// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/AleutianCheck/pkg/logging"
	"github.com/AleutianAI/AleutianCheck/services/check/coordinator"
	"github.com/AleutianAI/AleutianCheck/services/check/epoch"
	"github.com/AleutianAI/AleutianCheck/services/check/preempt"
	"github.com/AleutianAI/AleutianCheck/services/check/report"
	"github.com/AleutianAI/AleutianCheck/services/check/telemetry"
)

// shardSteps controls how long a simulated slow path shard runs. Each step
// sleeps 5ms and polls for cancellation, so a full shard takes ~150ms.
const shardSteps = 30

// svcMetrics holds the service-level instruments for the run command. Nil
// until telemetry is initialized; all recording sites are nil-safe.
var svcMetrics *telemetry.Metrics

// runEditStream drives a simulated edit stream through the coordinator.
//
// Every edit advances the epoch counter. Edits alternate between fast path
// runs (committed unconditionally) and slow path runs (cancelable). When
// --cancel-every is set, every Nth slow path run is canceled mid-flight by
// a newer edit, demonstrating rollback and the preemption hand-off; the
// newer edit is then retried as a fresh slow path run.
func runEditStream(cmd *cobra.Command, args []string) {
	logger := logging.New(logging.Config{
		Level:   config.Logging.logLevel(),
		LogDir:  config.Logging.LogDir,
		Service: "checkd",
		JSON:    config.Logging.JSON,
	})
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = "checkd"
	tcfg.ServiceVersion = Version
	if config.Telemetry.TraceExporter != "" {
		tcfg.TraceExporter = config.Telemetry.TraceExporter
	}
	if config.Telemetry.MetricExporter != "" {
		tcfg.MetricExporter = config.Telemetry.MetricExporter
	}
	if config.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = config.Telemetry.OTLPEndpoint
	}

	telemetryShutdown, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	svcMetrics, err = telemetry.NewMetrics(otel.Meter("aleutian.checkd"))
	if err != nil {
		logger.Warn("service metrics unavailable", "error", err)
	}

	addr := metricsAddr
	if addr == "" {
		addr = config.Telemetry.MetricsAddr
	}
	if addr != "" {
		serveMetrics(addr, logger)
	}

	preemption := preempt.NewTaskManager(
		logger.Slog().With(slog.String("component", "preempt")),
		preempt.NewMetrics(prometheus.DefaultRegisterer),
	)

	coordCfg := coordinator.Config{QueueSize: config.Coordinator.QueueSize}
	coord, err := coordinator.New(coordCfg, logger.Slog(), preemption)
	if err != nil {
		logger.Error("coordinator init failed", "error", err)
		os.Exit(1)
	}

	logger.Info("edit stream starting",
		"edits", editCount,
		"shards", shardCount,
		"cancel_every", cancelEvery,
	)

	nextEpoch := epoch.Epoch(0)
	slowRuns := 0
	for i := 0; i < editCount && ctx.Err() == nil; i++ {
		nextEpoch++
		if i%2 == 0 {
			runFastEdit(ctx, coord, logger, nextEpoch)
			continue
		}

		slowRuns++
		canceled := cancelEvery > 0 && slowRuns%cancelEvery == 0
		if !canceled {
			runSlowEdit(ctx, coord, logger, nextEpoch)
			continue
		}

		// A newer edit arrives mid-run, cancels the in-flight epoch, and
		// is then checked itself.
		nextEpoch = runCanceledSlowEdit(ctx, coord, logger, nextEpoch)
	}

	if data, err := json.Marshal(report.FromStatus(coord.Status())); err == nil {
		logger.Info("final status", "report", string(data))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Error("coordinator shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("edit stream finished")
}

// recordEdit counts one ingested edit by path kind.
func recordEdit(ctx context.Context, kind string) {
	if svcMetrics == nil {
		return
	}
	svcMetrics.EditsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}

// recordRejection counts one producer-side rejection.
func recordRejection(ctx context.Context, err error) {
	if svcMetrics == nil {
		return
	}
	svcMetrics.ErrorsTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", err.Error())))
}

// runFastEdit commits a short, non-cancelable run.
func runFastEdit(ctx context.Context, coord *coordinator.Coordinator, logger *logging.Logger, e epoch.Epoch) {
	recordEdit(ctx, "fast")
	start := time.Now()
	res, err := coord.RunFastPath(e, func() {
		time.Sleep(5 * time.Millisecond)
	})
	if err != nil {
		logger.Error("fast path rejected", "epoch", e, "error", err)
		recordRejection(ctx, err)
		return
	}
	committed, err := res.Wait(ctx)
	if err != nil {
		return
	}
	emitReport(logger, res.RunID, e, false, committed, time.Since(start))
}

// runSlowEdit runs a cancelable check to completion.
func runSlowEdit(ctx context.Context, coord *coordinator.Coordinator, logger *logging.Logger, e epoch.Epoch) {
	recordEdit(ctx, "slow")
	from := coord.Status().LastCommitted
	start := time.Now()
	res, err := coord.StartSlowPath(from, e, makeShards(shardCount))
	if err != nil {
		logger.Error("slow path rejected", "epoch", e, "error", err)
		recordRejection(ctx, err)
		return
	}
	committed, err := res.Wait(ctx)
	if err != nil {
		return
	}
	emitReport(logger, res.RunID, e, true, committed, time.Since(start))
}

// runCanceledSlowEdit starts a slow run, cancels it with a newer epoch
// partway through, then checks the newer epoch. Returns the epoch counter
// after the extra edit.
func runCanceledSlowEdit(ctx context.Context, coord *coordinator.Coordinator, logger *logging.Logger, e epoch.Epoch) epoch.Epoch {
	recordEdit(ctx, "slow")
	from := coord.Status().LastCommitted
	start := time.Now()
	res, err := coord.StartSlowPath(from, e, makeShards(shardCount))
	if err != nil {
		logger.Error("slow path rejected", "epoch", e, "error", err)
		recordRejection(ctx, err)
		return e
	}

	// Queue a preemption task to run in the gap right after the slow path
	// resolves.
	coord.SchedulePreemption(func() {
		st := coord.Status()
		logger.Info("preemption task observed quiesced state",
			"last_committed", st.LastCommitted,
			"slow_path_running", st.SlowPathRunning,
		)
	})

	newer := e + 1
	time.Sleep(25 * time.Millisecond)
	if coord.CancelSlowPath(newer) {
		logger.Info("newer edit canceled in-flight run", "canceled_epoch", e, "new_epoch", newer)
	}

	committed, err := res.Wait(ctx)
	if err != nil {
		return newer
	}
	emitReport(logger, res.RunID, e, true, committed, time.Since(start))

	// The canceling edit still needs its own check.
	runSlowEdit(ctx, coord, logger, newer)
	return newer
}

// makeShards builds shardCount units of simulated work that poll for
// cancellation between steps.
func makeShards(n int) []coordinator.Shard {
	shards := make([]coordinator.Shard, n)
	for i := range shards {
		shards[i] = func(canceled func() bool) {
			for step := 0; step < shardSteps; step++ {
				if canceled() {
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
	return shards
}

// emitReport logs the run outcome and, with --json-reports, prints the
// machine-readable report to stdout.
func emitReport(logger *logging.Logger, runID string, e epoch.Epoch, cancelable, committed bool, duration time.Duration) {
	r := report.FromRun(runID, e, cancelable, committed, duration)
	if svcMetrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("kind", r.Kind),
			attribute.String("outcome", string(r.Outcome)),
		)
		svcMetrics.RunsTotal.Add(context.Background(), 1, attrs)
		svcMetrics.RunDuration.Record(context.Background(), duration.Seconds(), attrs)
	}
	logger.Info("run resolved",
		"run_id", r.RunID,
		"epoch", r.Epoch,
		"kind", r.Kind,
		"outcome", r.Outcome,
		"duration", duration,
	)
	if !jsonReports {
		return
	}
	if data, err := json.Marshal(r); err == nil {
		os.Stdout.Write(append(data, '\n'))
	}
}

// serveMetrics exposes the Prometheus scrape endpoint in the background.
func serveMetrics(addr string, logger *logging.Logger) {
	handler := telemetry.MetricsHandler()
	if handler == nil {
		logger.Warn("metrics endpoint requested but prometheus exporter is not enabled")
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	go func() {
		logger.Info("metrics endpoint listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}
