// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command checkd runs the epoch-based check coordinator.
//
// The daemon owns a single edit stream and a single check worker. Edits
// arrive as fast path (committed immediately) or slow path (long running,
// cancelable by a newer edit) work. Run an end-to-end demonstration with:
//
//	go run ./cmd/checkd run
//	go run ./cmd/checkd run --edits 20 --shards 8
//
// With a Prometheus scrape endpoint:
//
//	go run ./cmd/checkd run --metrics-addr :9464
//	curl http://localhost:9464/metrics
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var config Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		config = DefaultAppConfig()

		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			// Config file is optional; defaults plus flags are enough.
			if !os.IsNotExist(err) {
				log.Fatalf("Error reading %s: %v", configPath, err)
			}
			return
		}

		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Println("Configuration loaded successfully.")
	}
}
