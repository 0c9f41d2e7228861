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

import "errors"

// Config configures a Coordinator.
type Config struct {
	// QueueSize is the depth of the worker task queue. The producer is
	// rejected with ErrQueueFull rather than blocked when the queue is
	// full, so this bounds how far fast path work may run ahead of the
	// worker. Must be >= 1. Default: 64.
	QueueSize int
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.QueueSize < 1 {
		return errors.New("QueueSize must be >= 1")
	}
	return nil
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
}
