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
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// --- Global Command Variables ---
var (
	configPath   string
	editCount    int
	shardCount   int
	cancelEvery  int
	metricsAddr  string
	jsonReports  bool

	rootCmd = &cobra.Command{
		Use:   "checkd",
		Short: "A daemon coordinating cancelable check runs over an edit stream",
		Long: `checkd serializes check runs against a single shared state.
Fast edits commit immediately; slow runs are cancelable by newer edits
and roll back without publishing partial results.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Drive a simulated edit stream through the coordinator",
		Run:   runEditStream, // Defined in run.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the checkd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("checkd %s\n", Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the configuration file")

	runCmd.Flags().IntVar(&editCount, "edits", 10, "Number of simulated edits to process")
	runCmd.Flags().IntVar(&shardCount, "shards", 4, "Shards per slow path run")
	runCmd.Flags().IntVar(&cancelEvery, "cancel-every", 3, "Cancel every Nth slow path run with a newer edit (0 disables)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	runCmd.Flags().BoolVar(&jsonReports, "json-reports", false, "Print a JSON report per run to stdout")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}
