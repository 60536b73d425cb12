// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package autofix

import (
	"errors"
	"fmt"
)

// OverlapError reports two planned edits whose spans collide.
//
// Overlapping edits cannot both be applied textually; the whole pass
// is abandoned rather than applying an arbitrary subset.
type OverlapError struct {
	// Path is the file whose fixes collided.
	Path string

	// Line is the 1-indexed line of the second edit.
	Line int

	// FirstRule and SecondRule are the rule IDs whose fixes overlap,
	// in span order.
	FirstRule  string
	SecondRule string
}

// Error returns a formatted message naming both rules.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s:%d: fixes for %s and %s overlap",
		e.Path, e.Line, e.FirstRule, e.SecondRule)
}

// FixVerificationError reports that a fix did not survive re-analysis.
//
// Either the rewritten unit no longer parses, or a fixed finding
// recurred at its line. The rewritten text is discarded in both cases.
type FixVerificationError struct {
	// Path is the file that failed verification.
	Path string

	// RuleID is the rule whose finding recurred. Empty when the
	// rewritten unit failed to parse.
	RuleID string

	// Line is the 1-indexed line of the recurring finding. Zero when
	// the rewritten unit failed to parse.
	Line int

	// Cause is the reparse error, if any.
	Cause error
}

// Error returns a formatted message for the verification failure.
func (e *FixVerificationError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("%s:%d: %s recurred after its fix was applied",
			e.Path, e.Line, e.RuleID)
	}
	return fmt.Sprintf("%s: rewritten unit failed to parse: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *FixVerificationError) Unwrap() error {
	return e.Cause
}

// IsOverlapError checks if an error is or wraps an OverlapError.
func IsOverlapError(err error) bool {
	var overlapErr *OverlapError
	return errors.As(err, &overlapErr)
}

// IsVerificationError checks if an error is or wraps a
// FixVerificationError.
func IsVerificationError(err error) bool {
	var verifyErr *FixVerificationError
	return errors.As(err, &verifyErr)
}
