// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"errors"
	"fmt"
)

// InsufficientDataError reports a series that is too short, or cannot
// be split into the configured number of blocks.
type InsufficientDataError struct {
	// Field names the offending input, e.g. "returns".
	Field string

	// Minimum is the required observation count, when the failure is a
	// length floor.
	Minimum int

	// Divisor is the required block count, when the failure is a
	// divisibility requirement.
	Divisor int

	// Got is the observed length.
	Got int
}

func (e *InsufficientDataError) Error() string {
	if e.Divisor > 0 {
		return fmt.Sprintf("%s: length %d does not divide into %d equal blocks", e.Field, e.Got, e.Divisor)
	}
	return fmt.Sprintf("%s: need at least %d observations, got %d", e.Field, e.Minimum, e.Got)
}

// IsInsufficientData reports whether err wraps an
// InsufficientDataError.
func IsInsufficientData(err error) bool {
	var target *InsufficientDataError
	return errors.As(err, &target)
}

// CancelledError reports an evaluation abandoned because its context
// ended. It never carries a partial verdict.
type CancelledError struct {
	// Operation names the stage that observed the cancellation.
	Operation string

	// Completed counts the work batches finished before the stop.
	Completed int

	// Cause is the context error.
	Cause error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: cancelled after %d batches: %v", e.Operation, e.Completed, e.Cause)
}

func (e *CancelledError) Unwrap() error {
	return e.Cause
}

// IsCancelled reports whether err wraps a CancelledError.
func IsCancelled(err error) bool {
	var target *CancelledError
	return errors.As(err, &target)
}
