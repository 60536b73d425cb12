// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/flow"
)

// =============================================================================
// SEVERITY
// =============================================================================

// Severity represents how a finding affects the caller's decision.
type Severity int

const (
	// SeverityWarn marks advisory findings that never block.
	SeverityWarn Severity = iota

	// SeverityStop marks findings the caller must refuse to proceed on.
	SeverityStop
)

// String returns the wire representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "WARN"
	case SeverityStop:
		return "STOP"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the severity as its wire string.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a severity wire string.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity parses a severity string.
//
// Accepts the wire forms case-insensitively. Unknown values are an
// error rather than a silent default: severity overrides come from
// user config and a typo must not weaken a STOP rule.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARN", "WARNING":
		return SeverityWarn, nil
	case "STOP", "ERROR", "BLOCK":
		return SeverityStop, nil
	default:
		return SeverityWarn, fmt.Errorf("unknown severity %q", s)
	}
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category classifies what kind of defect a rule detects.
type Category string

const (
	CategoryLookaheadBias Category = "lookahead_bias"
	CategoryDataLeakage   Category = "data_leakage"
	CategoryCodeQuality   Category = "code_quality"
	CategorySecurity      Category = "security"
)

// Valid reports whether the category is one of the known values.
func (c Category) Valid() bool {
	switch c {
	case CategoryLookaheadBias, CategoryDataLeakage, CategoryCodeQuality, CategorySecurity:
		return true
	}
	return false
}

// =============================================================================
// FIX PLAN
// =============================================================================

// FixKind identifies which rewrite a fixable finding wants.
type FixKind int

const (
	// FixInsertLag inserts `.shift(1)` immediately after the anchor
	// span.
	FixInsertLag FixKind = iota

	// FixRewriteLabel replaces the anchor span (a quoted boundary
	// literal) with the closing-boundary value.
	FixRewriteLabel
)

// String returns a short name for the fix kind.
func (k FixKind) String() string {
	switch k {
	case FixInsertLag:
		return "insert_lag"
	case FixRewriteLabel:
		return "rewrite_label"
	default:
		return "unknown"
	}
}

// FixPlan carries the span-precise rewrite for a fixable finding.
//
// The autofix transformer consumes plans; they never appear in
// reports.
type FixPlan struct {
	// Kind selects the rewrite.
	Kind FixKind

	// Anchor is the span the rewrite is relative to: the offending
	// read for inserts, the keyword value literal for rewrites.
	Anchor ast.Span
}

// =============================================================================
// FINDING
// =============================================================================

// Finding is one rule match at one location.
//
// Thread Safety: Immutable after creation.
type Finding struct {
	// RuleID identifies the catalog rule that matched.
	RuleID string `json:"rule_id"`

	// Category is the rule's defect class.
	Category Category `json:"category"`

	// Severity is the effective severity after config overrides.
	Severity Severity `json:"severity"`

	// Path is the analyzed file.
	Path string `json:"path"`

	// LineStart is the 1-indexed first line of the match.
	LineStart int `json:"line_start"`

	// LineEnd is the 1-indexed last line of the match.
	LineEnd int `json:"line_end"`

	// Snippet is the offending source text.
	Snippet string `json:"snippet,omitempty"`

	// Message describes the specific match.
	Message string `json:"message"`

	// Suggestion describes how to resolve it.
	Suggestion string `json:"suggestion,omitempty"`

	// FixAvailable reports whether the autofix transformer can rewrite
	// this finding.
	FixAvailable bool `json:"fix_available"`

	// Fix is the rewrite plan when FixAvailable is true.
	Fix *FixPlan `json:"-"`
}

// Location returns a formatted location string (path:line).
func (f Finding) Location() string {
	return f.Path + ":" + strconv.Itoa(f.LineStart)
}

// IsStop reports whether the finding blocks.
func (f Finding) IsStop() bool {
	return f.Severity == SeverityStop
}

// SortFindings orders findings by (line start, rule id), the order
// every surface presents them in.
func SortFindings(findings []Finding) {
	// Insertion sort keeps the common small slices allocation-free
	for i := 1; i < len(findings); i++ {
		for j := i; j > 0 && findingLess(findings[j], findings[j-1]); j-- {
			findings[j], findings[j-1] = findings[j-1], findings[j]
		}
	}
}

func findingLess(a, b Finding) bool {
	if a.LineStart != b.LineStart {
		return a.LineStart < b.LineStart
	}
	return a.RuleID < b.RuleID
}

// =============================================================================
// RULE
// =============================================================================

// MatchContext is everything a matcher may inspect.
type MatchContext struct {
	// Graph is the dependency graph over the unit.
	Graph *flow.Graph

	// Unit is the parsed source.
	Unit *ast.SourceUnit

	// Config supplies the heuristic sets.
	Config *Config
}

// MatcherFunc evaluates one rule against a unit and returns its raw
// findings. Matchers run independently; they never see other rules'
// output. The rule being matched is passed in so matchers never look
// themselves up in the catalog.
type MatcherFunc func(rule Rule, mc *MatchContext) []Finding

// Rule is one catalog entry.
//
// Thread Safety: Immutable; the catalog is fixed at process start and
// config overrides are applied per evaluation, never written back.
type Rule struct {
	// ID is the stable rule identifier (e.g. "HS001").
	ID string `json:"id"`

	// Category is the defect class.
	Category Category `json:"category"`

	// Severity is the default severity before config overrides.
	Severity Severity `json:"severity"`

	// Summary is the one-line description shown by rule listings.
	Summary string `json:"summary"`

	// Suggestion is the generic remediation advice.
	Suggestion string `json:"suggestion"`

	// Fixable reports whether the rule's findings carry fix plans.
	Fixable bool `json:"fixable"`

	match MatcherFunc
}
