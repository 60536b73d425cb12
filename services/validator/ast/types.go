// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ast parses quant-strategy source into ordered assignment
// statements with column-level read and call annotations.
//
// The package is the front half of the code flow analyzer: it turns a
// pandas-style source buffer into a SourceUnit whose assignments carry
// exact byte spans, per-read shift annotations, and call-site keyword
// metadata. The flow package consumes the SourceUnit to build the
// data-dependency graph that rules evaluate.
//
// Design principles:
//   - Column-level, not symbol-level: the unit of analysis is a
//     ColumnRef, matched by exact field equality
//   - Span-precise: every read and keyword value records the byte span
//     needed for minimal textual rewrites
//   - All-or-nothing: a syntax error anywhere in the unit aborts the
//     parse with a located ParseError, never a partial result
package ast

import (
	"fmt"
)

// ColumnRef identifies a column within a dataset alias.
//
// Bare identifiers (plain variables like "position") carry an empty
// Alias. Equality is exact field equality; there is no fuzzy or
// case-insensitive matching anywhere in the analyzer.
type ColumnRef struct {
	// Alias is the dataset alias the column belongs to (e.g. "df").
	// Empty for bare identifiers.
	Alias string `json:"alias,omitempty"`

	// Column is the column or variable name (e.g. "signal").
	Column string `json:"column"`
}

// String returns the reference as it would appear in source.
//
// Format: "df['signal']" for aliased columns, "position" for bare
// identifiers, "df" for a bare alias.
func (c ColumnRef) String() string {
	if c.Alias == "" {
		return c.Column
	}
	if c.Column == "" {
		return c.Alias
	}
	return fmt.Sprintf("%s['%s']", c.Alias, c.Column)
}

// Key returns a stable map key for the reference.
func (c ColumnRef) Key() string {
	return c.Alias + "\x00" + c.Column
}

// IsZero reports whether the reference is empty.
func (c ColumnRef) IsZero() bool {
	return c.Alias == "" && c.Column == ""
}

// Span locates a syntax element in the source buffer.
//
// Byte offsets are 0-indexed half-open [StartByte, EndByte). Lines are
// 1-indexed, columns 0-indexed, matching tree-sitter points.
type Span struct {
	// StartByte is the 0-indexed byte offset where the element starts.
	StartByte int `json:"start_byte"`

	// EndByte is the 0-indexed byte offset one past the element's end.
	EndByte int `json:"end_byte"`

	// StartLine is the 1-indexed line where the element starts.
	StartLine int `json:"start_line"`

	// EndLine is the 1-indexed line where the element ends.
	EndLine int `json:"end_line"`

	// StartCol is the 0-indexed column on StartLine.
	StartCol int `json:"start_col"`

	// EndCol is the 0-indexed column on EndLine.
	EndCol int `json:"end_col"`
}

// String returns "line:col" for error messages.
func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.StartLine, s.StartCol)
}

// Overlaps reports whether two spans share any byte.
func (s Span) Overlaps(other Span) bool {
	return s.StartByte < other.EndByte && other.StartByte < s.EndByte
}

// Read is a single occurrence of a ColumnRef inside an expression.
//
// ShiftedBy records the net temporal shift applied to the read at its
// site, using the pandas sign convention: positive lags (past data),
// negative leads (future data). nil means the read was never shifted,
// which the rules treat as distinct from an explicit shift(0).
type Read struct {
	// Ref is the column being read.
	Ref ColumnRef `json:"ref"`

	// ShiftedBy is the net shift applied at the read site, or nil if
	// the read is unshifted. Chains of .shift(a).shift(b) sum.
	ShiftedBy *int `json:"shifted_by,omitempty"`

	// Span covers exactly the reference expression (the subscript or
	// identifier), excluding any trailing method calls. Autofixes
	// insert immediately after this span.
	Span Span `json:"span"`
}

// Shifted reports whether the read carries any shift annotation.
func (r Read) Shifted() bool {
	return r.ShiftedBy != nil
}

// KeywordArg is a keyword argument at a call site.
type KeywordArg struct {
	// Name is the keyword name (e.g. "label").
	Name string `json:"name"`

	// Value is the argument value text with string quotes stripped
	// (e.g. "left" for label='left').
	Value string `json:"value"`

	// ValueSpan covers the full value expression including any string
	// quotes, so a rewrite can replace the literal in place.
	ValueSpan Span `json:"value_span"`
}

// CallSite is a method or function call observed in an expression.
//
// For chained calls like df.resample('1D', label='left').mean(), the
// analyzer records one CallSite per call in the chain; each carries the
// base receiver and the method names from the base up to and including
// itself, so rules can check for interposed window methods.
type CallSite struct {
	// Method is the function or method name being invoked.
	Method string `json:"method"`

	// Chain lists the method names from the base receiver outward,
	// ending with Method. A plain function call has Chain == [Method].
	Chain []string `json:"chain,omitempty"`

	// Receiver is the base receiver of the chain: a dataset alias
	// ({Alias: "df"}), an aliased column ({Alias: "df", Column: "x"}),
	// or zero for plain function calls.
	Receiver ColumnRef `json:"receiver"`

	// Keywords are the call's keyword arguments in source order.
	Keywords []KeywordArg `json:"keywords,omitempty"`

	// Args are the column reads appearing in the call's arguments.
	Args []Read `json:"args,omitempty"`

	// Span covers the full call expression.
	Span Span `json:"span"`
}

// Keyword returns the named keyword argument, if present.
func (c CallSite) Keyword(name string) (KeywordArg, bool) {
	for _, kw := range c.Keywords {
		if kw.Name == name {
			return kw, true
		}
	}
	return KeywordArg{}, false
}

// HasInChain reports whether any of the given method names appears in
// the chain strictly before the final method.
func (c CallSite) HasInChain(names map[string]bool) bool {
	for i := 0; i < len(c.Chain)-1; i++ {
		if names[c.Chain[i]] {
			return true
		}
	}
	return false
}

// Assignment is one target = expression statement.
//
// Order within the SourceUnit is significant: the flow graph applies
// last-write-wins semantics over this order.
type Assignment struct {
	// Target is the column or variable being assigned.
	Target ColumnRef `json:"target"`

	// TargetSpan covers the assignment target expression.
	TargetSpan Span `json:"target_span"`

	// Reads are the column references the expression reads, with
	// site-level shift annotations, in source order.
	Reads []Read `json:"reads,omitempty"`

	// Calls are the call sites inside the expression, in source order.
	Calls []CallSite `json:"calls,omitempty"`

	// Span covers the full assignment statement.
	Span Span `json:"span"`
}

// Line returns the 1-indexed line the assignment starts on.
func (a Assignment) Line() int {
	return a.Span.StartLine
}

// SourceUnit is a parsed strategy source buffer.
//
// The unit is immutable once built: the analyzer only reads Content,
// and consumers must not mutate the statement slices.
type SourceUnit struct {
	// Path identifies the source file for findings and errors.
	Path string `json:"path"`

	// Content is the raw source text the spans index into.
	Content []byte `json:"-"`

	// Assignments are the unit's assignment statements in source order.
	Assignments []Assignment `json:"assignments"`

	// ExprCalls are call sites from non-assignment expression
	// statements (a bare df.resample(...).mean() line), in source
	// order. Statements without assignments never create graph nodes,
	// but their calls are still visible to rules.
	ExprCalls []CallSite `json:"expr_calls,omitempty"`

	// Hash is the SHA256 of Content at parse time.
	Hash string `json:"hash"`

	// ParsedAtMilli is the Unix timestamp in milliseconds when parsing
	// completed.
	ParsedAtMilli int64 `json:"parsed_at_milli"`
}

// AllCalls returns every call site in the unit, assignment-embedded and
// bare, ordered by span start.
func (u *SourceUnit) AllCalls() []CallSite {
	calls := make([]CallSite, 0, len(u.ExprCalls))
	for _, a := range u.Assignments {
		calls = append(calls, a.Calls...)
	}
	calls = append(calls, u.ExprCalls...)

	// Insertion sort by start byte; units are small
	for i := 1; i < len(calls); i++ {
		for j := i; j > 0 && calls[j].Span.StartByte < calls[j-1].Span.StartByte; j-- {
			calls[j], calls[j-1] = calls[j-1], calls[j]
		}
	}
	return calls
}

// Snippet returns the source text covered by the span, clamped to the
// content bounds.
func (u *SourceUnit) Snippet(s Span) string {
	start, end := s.StartByte, s.EndByte
	if start < 0 {
		start = 0
	}
	if end > len(u.Content) {
		end = len(u.Content)
	}
	if start >= end {
		return ""
	}
	return string(u.Content[start:end])
}

// Validate checks structural invariants on the unit.
//
// Returns an error naming the first violated invariant, or nil.
func (u *SourceUnit) Validate() error {
	if u.Path == "" {
		return fmt.Errorf("source unit: path is empty")
	}
	for i, a := range u.Assignments {
		if a.Target.IsZero() {
			return fmt.Errorf("source unit: assignment %d has empty target", i)
		}
		if a.Span.StartByte > a.Span.EndByte {
			return fmt.Errorf("source unit: assignment %d has inverted span", i)
		}
		for _, r := range a.Reads {
			if r.Span.EndByte > len(u.Content) {
				return fmt.Errorf("source unit: read %s span exceeds content", r.Ref)
			}
		}
	}
	return nil
}
