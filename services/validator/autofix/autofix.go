// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package autofix rewrites flagged source with minimal textual edits.
//
// Fixes are planned from finding anchors, applied in a single pass,
// and then verified by re-analyzing the rewritten unit. A fix that
// does not survive verification discards the whole rewrite.
package autofix

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/flow"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
)

// LagReplacement is the canonical lag inserted after an offending
// read. One bar is the minimal rewrite that makes the value known at
// decision time.
const LagReplacement = ".shift(1)"

// Edit is a planned byte-range replacement. Start == End is an
// insertion.
type Edit struct {
	RuleID      string
	Kind        rules.FixKind
	Start       int
	End         int
	Line        int
	Replacement string
}

// AppliedFix records one edit that made it into the rewritten unit.
type AppliedFix struct {
	// RuleID is the rule whose finding the fix addressed.
	RuleID string `json:"rule_id"`

	// Kind names the rewrite that was applied.
	Kind string `json:"kind"`

	// Line is the 1-indexed line of the fixed finding.
	Line int `json:"line"`

	// Before is the replaced text. Empty for insertions.
	Before string `json:"before,omitempty"`

	// After is the inserted or replacing text.
	After string `json:"after"`
}

// Result is the outcome of a fix pass.
type Result struct {
	// Path is the unit the pass ran over.
	Path string `json:"path"`

	// Fixed reports whether any edit was applied.
	Fixed bool `json:"fixed"`

	// Content is the rewritten source. When no edit applied it is the
	// input unchanged.
	Content []byte `json:"-"`

	// Applied lists the edits in span order.
	Applied []AppliedFix `json:"applied,omitempty"`

	// Diff is a unified diff of the rewrite, empty when nothing
	// changed.
	Diff string `json:"diff,omitempty"`

	// Findings are the findings that remain after re-analysis of the
	// rewritten unit (or the input findings when nothing was applied).
	Findings []rules.Finding `json:"findings"`
}

// Fixer plans, applies, and verifies fixes.
//
// Thread Safety: safe for concurrent use. Each Fix call parses and
// evaluates independently.
type Fixer struct {
	parser ast.Parser
	engine *rules.Engine
}

// NewFixer creates a fixer that verifies rewrites with the given
// parser and engine.
//
// Inputs:
//
//	parser - reparses rewritten units. Must not be nil.
//	engine - re-evaluates rewritten units. Must not be nil.
func NewFixer(parser ast.Parser, engine *rules.Engine) (*Fixer, error) {
	if parser == nil {
		return nil, fmt.Errorf("parser cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	return &Fixer{parser: parser, engine: engine}, nil
}

// Fix applies one rewrite pass for every fixable finding.
//
// Description:
//
//	Plans an edit per finding carrying a fix plan, rejects overlapping
//	spans, applies the pass, and re-analyzes the result. A fixed
//	finding recurring at its line, or a rewrite that no longer parses,
//	fails verification and discards the rewrite.
//
// Inputs:
//
//	ctx      - cancellation and tracing context. Must not be nil.
//	path     - the unit's path, used in errors and the diff header.
//	content  - the original source the finding anchors index into.
//	findings - findings from evaluating exactly this content.
//
// Outputs:
//
//	*Result - rewritten content, applied edits, diff, and the
//	          findings remaining after re-analysis.
//	error   - *OverlapError, *FixVerificationError, or a context /
//	          parse failure.
func (f *Fixer) Fix(ctx context.Context, path string, content []byte, findings []rules.Finding) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	ctx, span := startFixSpan(ctx, path, len(findings))
	defer span.End()
	start := time.Now()

	edits, err := planEdits(path, content, findings)
	if err != nil {
		recordFixMetrics(ctx, time.Since(start), 0, false)
		return nil, err
	}

	if len(edits) == 0 {
		setFixSpanResult(span, 0, len(findings))
		recordFixMetrics(ctx, time.Since(start), 0, true)
		return &Result{
			Path:     path,
			Content:  content,
			Findings: findings,
		}, nil
	}

	fixed := applyEdits(content, edits)

	after, err := f.verify(ctx, path, fixed, edits)
	if err != nil {
		recordFixMetrics(ctx, time.Since(start), 0, false)
		return nil, err
	}

	diff, err := renderDiff(path, content, fixed)
	if err != nil {
		return nil, fmt.Errorf("rendering diff for %s: %w", path, err)
	}

	applied := make([]AppliedFix, len(edits))
	for i, e := range edits {
		applied[i] = AppliedFix{
			RuleID: e.RuleID,
			Kind:   e.Kind.String(),
			Line:   e.Line,
			Before: string(content[e.Start:e.End]),
			After:  e.Replacement,
		}
	}

	setFixSpanResult(span, len(applied), len(after))
	recordFixMetrics(ctx, time.Since(start), len(applied), true)

	return &Result{
		Path:     path,
		Fixed:    true,
		Content:  fixed,
		Applied:  applied,
		Diff:     diff,
		Findings: after,
	}, nil
}

// planEdits turns fixable findings into span-ordered edits.
func planEdits(path string, content []byte, findings []rules.Finding) ([]Edit, error) {
	var edits []Edit
	for _, fnd := range findings {
		if !fnd.FixAvailable || fnd.Fix == nil {
			continue
		}

		anchor := fnd.Fix.Anchor
		if anchor.StartByte < 0 || anchor.EndByte > len(content) || anchor.StartByte > anchor.EndByte {
			return nil, fmt.Errorf("%s: fix anchor for %s out of bounds", path, fnd.RuleID)
		}

		switch fnd.Fix.Kind {
		case rules.FixInsertLag:
			edits = append(edits, Edit{
				RuleID:      fnd.RuleID,
				Kind:        fnd.Fix.Kind,
				Start:       anchor.EndByte,
				End:         anchor.EndByte,
				Line:        fnd.LineStart,
				Replacement: LagReplacement,
			})
		case rules.FixRewriteLabel:
			edits = append(edits, Edit{
				RuleID:      fnd.RuleID,
				Kind:        fnd.Fix.Kind,
				Start:       anchor.StartByte,
				End:         anchor.EndByte,
				Line:        fnd.LineStart,
				Replacement: rightLiteral(content[anchor.StartByte:anchor.EndByte]),
			})
		default:
			return nil, fmt.Errorf("%s: unknown fix kind for %s", path, fnd.RuleID)
		}
	}

	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].Start != edits[j].Start {
			return edits[i].Start < edits[j].Start
		}
		return edits[i].End < edits[j].End
	})

	for i := 1; i < len(edits); i++ {
		if edits[i].Start < edits[i-1].End {
			return nil, &OverlapError{
				Path:       path,
				Line:       edits[i].Line,
				FirstRule:  edits[i-1].RuleID,
				SecondRule: edits[i].RuleID,
			}
		}
	}
	return edits, nil
}

// rightLiteral rewrites a boundary literal to the closing boundary,
// preserving the original quote style.
func rightLiteral(original []byte) string {
	if len(original) > 0 && original[0] == '"' {
		return `"right"`
	}
	return "'right'"
}

// applyEdits rewrites content in one forward pass. Edits must be
// span-ordered and non-overlapping.
func applyEdits(content []byte, edits []Edit) []byte {
	var buf bytes.Buffer
	buf.Grow(len(content) + len(edits)*len(LagReplacement))

	last := 0
	for _, e := range edits {
		buf.Write(content[last:e.Start])
		buf.WriteString(e.Replacement)
		last = e.End
	}
	buf.Write(content[last:])
	return buf.Bytes()
}

// verify re-analyzes the rewritten unit and checks that no fixed
// finding recurred at its line.
func (f *Fixer) verify(ctx context.Context, path string, fixed []byte, edits []Edit) ([]rules.Finding, error) {
	unit, err := f.parser.Parse(ctx, fixed, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FixVerificationError{Path: path, Cause: err}
	}

	after, err := f.engine.Evaluate(ctx, flow.Build(unit))
	if err != nil {
		return nil, err
	}

	for _, e := range edits {
		for _, fnd := range after {
			if fnd.RuleID == e.RuleID && fnd.LineStart == e.Line {
				return nil, &FixVerificationError{
					Path:   path,
					RuleID: e.RuleID,
					Line:   e.Line,
				}
			}
		}
	}
	return after, nil
}
