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

import "fmt"

// ProtocolViolationError reports a broken precondition of the commit/cancel
// protocol: a restricted operation called from the wrong goroutine, equal
// from/to epochs, committing an epoch no StartCommitEpoch named, or
// canceling into the running epoch.
//
// A violation is a structural bug in the surrounding orchestration, not a
// runtime contingency, so the Manager delivers it by panic rather than as a
// recoverable error. Continuing would operate on a state machine whose
// invariants are already broken.
type ProtocolViolationError struct {
	// Op is the Manager operation whose contract was broken.
	Op string

	// Reason describes the broken precondition.
	Reason string
}

// Error implements the error interface.
func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("epoch protocol violation in %s: %s", e.Op, e.Reason)
}

// violation panics with a *ProtocolViolationError for the given operation.
func violation(op, format string, args ...any) {
	panic(&ProtocolViolationError{Op: op, Reason: fmt.Sprintf(format, args...)})
}
