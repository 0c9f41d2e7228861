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

import "github.com/AleutianAI/AleutianCheck/pkg/logging"

// Config is the top-level checkd configuration, loaded from config.yaml.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
}

// LoggingConfig mirrors pkg/logging.Config with yaml tags.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// LogDir enables a JSON log file in the given directory.
	LogDir string `yaml:"log_dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`
}

// TelemetryConfig selects trace and metric exporters.
type TelemetryConfig struct {
	// TraceExporter is "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter"`

	// MetricExporter is "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter"`

	// OTLPEndpoint is the OTLP receiver for traces.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// MetricsAddr serves /metrics when non-empty, e.g. ":9464".
	MetricsAddr string `yaml:"metrics_addr"`
}

// CoordinatorConfig bounds the worker queue.
type CoordinatorConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DefaultAppConfig returns the configuration used when config.yaml is
// absent.
func DefaultAppConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
		Coordinator: CoordinatorConfig{QueueSize: 64},
	}
}

// logLevel maps the yaml level string onto the logging package enum.
func (c LoggingConfig) logLevel() logging.Level {
	switch c.Level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
