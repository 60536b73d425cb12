// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package report assembles findings and statistical verdicts into the
// record handed to callers, the run ledger, and the policy gate.
//
// Assembly is a pure merge. Nothing here re-evaluates rules or
// statistics; the report only fixes an ID and timestamp and puts the
// findings in their canonical order.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/hindsightlabs/hindsight/services/validator/rules"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
)

// Report is the record of one validation run.
type Report struct {
	// ID is a fresh UUID for this run.
	ID string `json:"id"`

	// GeneratedAt is the assembly time, UTC.
	GeneratedAt time.Time `json:"generated_at"`

	// Path names the analyzed source unit, when code was analyzed.
	Path string `json:"path,omitempty"`

	// Strategy echoes the metrics record's identifier, when metrics
	// were evaluated.
	Strategy string `json:"strategy,omitempty"`

	// Findings holds the rule findings in (line, rule id) order. Never
	// nil, so the JSON field is always an array.
	Findings []rules.Finding `json:"findings"`

	// Verdict is the statistical judgement, nil when no metrics were
	// evaluated.
	Verdict *stats.Verdict `json:"verdict,omitempty"`
}

// New assembles a report. The findings slice is copied and sorted;
// the caller's slice is never touched.
func New(path string, findings []rules.Finding, verdict *stats.Verdict) *Report {
	sorted := make([]rules.Finding, len(findings))
	copy(sorted, findings)
	rules.SortFindings(sorted)

	return &Report{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Path:        path,
		Findings:    sorted,
		Verdict:     verdict,
	}
}

// HasStop reports whether any finding carries STOP severity. The
// policy gate reads this together with Verdict.Passed.
func (r *Report) HasStop() bool {
	for _, f := range r.Findings {
		if f.IsStop() {
			return true
		}
	}
	return false
}

// Counts returns the number of STOP and WARN findings.
func (r *Report) Counts() (stops, warnings int) {
	for _, f := range r.Findings {
		if f.IsStop() {
			stops++
		} else {
			warnings++
		}
	}
	return stops, warnings
}

// Passed reports the policy-gate outcome: no STOP findings and, when a
// verdict is present, a passing verdict.
func (r *Report) Passed() bool {
	if r.HasStop() {
		return false
	}
	if r.Verdict != nil && !r.Verdict.Passed {
		return false
	}
	return true
}
