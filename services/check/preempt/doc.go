// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package preempt holds the single pending high-priority task that may run
// in the quiescent gap immediately after a slow path concludes.
//
// Only one task can be pending at a time: preemption exists for small,
// latency-sensitive work (answering an editor query against committed
// state), and a queue would turn the gap into a second scheduler. Scheduling
// while a task is pending is rejected, not coalesced; the caller decides
// whether to retry, drop, or fold the work into the rejected attempt.
//
// The epoch manager drives execution: after each cancelable commit attempt
// resolves, it calls TryRunScheduledTask exactly once through the
// epoch.TaskRunner interface. The TaskManager never runs a task on its own.
package preempt
