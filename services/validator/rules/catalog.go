// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"strings"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
)

// CatalogVersion identifies the built-in rule set. Bump when a rule's
// matcher semantics change, so ledger entries stay comparable.
const CatalogVersion = "1.0.0"

const (
	methodResample = "resample"
	boundaryLeft   = "left"
	boundaryRight  = "right"
)

// boundaryKeywords are the resample keywords that can select a bucket
// boundary.
var boundaryKeywords = []string{"label", "closed"}

// fitMethods take their full-span input as an argument rather than a
// receiver.
var fitMethods = map[string]bool{
	"fit":           true,
	"fit_transform": true,
}

// Catalog returns the built-in rules ordered by ID.
//
// The returned slice is a copy; the catalog itself is immutable at
// runtime.
func Catalog() []Rule {
	out := make([]Rule, len(builtinCatalog))
	copy(out, builtinCatalog)
	return out
}

// CatalogRule returns the built-in rule with the given ID.
func CatalogRule(id string) (Rule, bool) {
	for _, r := range builtinCatalog {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return Rule{}, false
}

// builtinCatalog is ordered by ID.
var builtinCatalog = []Rule{
	{
		ID:         "HS001",
		Category:   CategoryLookaheadBias,
		Severity:   SeverityStop,
		Summary:    "position-like assignment reads a signal-like column without a positive lag",
		Suggestion: "lag the signal with .shift(1) before it reaches the position",
		Fixable:    true,
		match:      matchUnshiftedSignalToPosition,
	},
	{
		ID:         "HS002",
		Category:   CategoryLookaheadBias,
		Severity:   SeverityStop,
		Summary:    "resample labels buckets at the opening boundary",
		Suggestion: "label buckets at the closing boundary ('right') so values are known when stamped",
		Fixable:    true,
		match:      matchMisalignedResampling,
	},
	{
		ID:         "HS003",
		Category:   CategoryLookaheadBias,
		Severity:   SeverityStop,
		Summary:    "read reaches strictly into the future",
		Suggestion: "remove the forward shift or offset; only lagged values are known at decision time",
		match:      matchForwardReference,
	},
	{
		ID:         "HS004",
		Category:   CategoryDataLeakage,
		Severity:   SeverityStop,
		Summary:    "global statistic computed over a full-span dataset",
		Suggestion: "replace the whole-series statistic with a rolling or expanding window",
		match:      matchGlobalStatisticLeakage,
	},
	{
		ID:         "HS101",
		Category:   CategoryCodeQuality,
		Severity:   SeverityWarn,
		Summary:    "signal-like assignment reads a price-like column without a lag",
		Suggestion: "verify the price is known at signal time; lag it if the signal trades on it",
		match:      matchUnshiftedPriceInSignal,
	},
	{
		ID:         "HS102",
		Category:   CategoryCodeQuality,
		Severity:   SeverityWarn,
		Summary:    "producer chain carries a net negative shift",
		Suggestion: "audit the chain of shifts; the accumulated offset reaches future data",
		match:      matchChainedNegativeShift,
	},
}

// =============================================================================
// Matchers
// =============================================================================

// finding fills the fields every matcher emits identically.
func (r Rule) finding(mc *MatchContext, span ast.Span, message string) Finding {
	return Finding{
		RuleID:       r.ID,
		Category:     r.Category,
		Severity:     r.Severity,
		Path:         mc.Unit.Path,
		LineStart:    span.StartLine,
		LineEnd:      span.EndLine,
		Snippet:      mc.Unit.Snippet(span),
		Message:      message,
		Suggestion:   r.Suggestion,
		FixAvailable: r.Fixable,
	}
}

// matchUnshiftedSignalToPosition implements HS001.
//
// Uses the dependency's net shift, not the read-site annotation, so a
// signal already lagged by its producer chain passes.
func matchUnshiftedSignalToPosition(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, node := range mc.Graph.Nodes {
		if !mc.Config.IsPositionLike(node.Ref.Column) {
			continue
		}
		for _, dep := range node.Deps {
			if !mc.Config.IsSignalLike(dep.Read.Ref.Column) {
				continue
			}
			if dep.Net != nil && *dep.Net > 0 {
				continue
			}

			f := rule.finding(mc, node.Assignment.Span, fmt.Sprintf(
				"%s is assigned from %s without a positive lag; the position trades on information not yet available",
				node.Ref, dep.Read.Ref,
			))
			f.Fix = &FixPlan{Kind: FixInsertLag, Anchor: dep.Read.Span}
			out = append(out, f)
		}
	}
	return out
}

// matchMisalignedResampling implements HS002.
func matchMisalignedResampling(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, call := range mc.Unit.AllCalls() {
		if call.Method != methodResample {
			continue
		}
		for _, name := range boundaryKeywords {
			kw, ok := call.Keyword(name)
			if !ok || !strings.EqualFold(kw.Value, boundaryLeft) {
				continue
			}

			f := rule.finding(mc, call.Span, fmt.Sprintf(
				"resample %s='%s' stamps each bucket with its opening boundary, so aggregates include data from after the stamp",
				name, kw.Value,
			))
			f.Fix = &FixPlan{Kind: FixRewriteLabel, Anchor: kw.ValueSpan}
			out = append(out, f)
		}
	}
	return out
}

// matchForwardReference implements HS003: the read site itself carries
// a strictly negative shift, whether from .shift(-k) or an index
// offset like prices[i + k].
func matchForwardReference(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, node := range mc.Graph.Nodes {
		for _, dep := range node.Deps {
			s := dep.Read.ShiftedBy
			if s == nil || *s >= 0 {
				continue
			}

			out = append(out, rule.finding(mc, dep.Read.Span, fmt.Sprintf(
				"%s is read %d step(s) into the future",
				dep.Read.Ref, -*s,
			)))
		}
	}
	return out
}

// matchGlobalStatisticLeakage implements HS004.
//
// A window method anywhere in the chain before the aggregate makes the
// statistic point-in-time and suppresses the match.
func matchGlobalStatisticLeakage(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, call := range mc.Unit.AllCalls() {
		if !mc.Config.IsGlobalAggregate(call.Method) {
			continue
		}
		if call.HasInChain(mc.Config.WindowSet()) {
			continue
		}

		subject, ok := fullSpanSubject(mc.Config, call)
		if !ok {
			continue
		}

		out = append(out, rule.finding(mc, call.Span, fmt.Sprintf(
			"%s() over full-span %s folds evaluation-period data into every row",
			call.Method, subject,
		)))
	}
	return out
}

// fullSpanSubject resolves what full-span data a global aggregate
// touches: its receiver, or for fit-style methods its arguments.
func fullSpanSubject(cfg *Config, call ast.CallSite) (string, bool) {
	if cfg.IsFullSpanAlias(call.Receiver.Alias) {
		return call.Receiver.String(), true
	}
	if !fitMethods[call.Method] {
		return "", false
	}
	for _, arg := range call.Args {
		if refIsFullSpan(cfg, arg.Ref) {
			return arg.Ref.String(), true
		}
	}
	return "", false
}

// refIsFullSpan checks a read against the full-span alias set. Bare
// reads carry the dataset name in the column field.
func refIsFullSpan(cfg *Config, ref ast.ColumnRef) bool {
	if ref.Alias != "" {
		return cfg.IsFullSpanAlias(ref.Alias)
	}
	return cfg.IsFullSpanAlias(ref.Column)
}

// matchUnshiftedPriceInSignal implements HS101. Advisory: building a
// signal from the current bar's price is common and sometimes
// legitimate.
func matchUnshiftedPriceInSignal(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, node := range mc.Graph.Nodes {
		if !mc.Config.IsSignalLike(node.Ref.Column) {
			continue
		}
		for _, dep := range node.Deps {
			if !mc.Config.IsPriceLike(dep.Read.Ref.Column) {
				continue
			}
			if dep.Net != nil && *dep.Net > 0 {
				continue
			}

			out = append(out, rule.finding(mc, node.Assignment.Span, fmt.Sprintf(
				"%s reads %s without a lag",
				node.Ref, dep.Read.Ref,
			)))
		}
	}
	return out
}

// matchChainedNegativeShift implements HS102: the read site looks
// innocent, but the producer chain's accumulated shift is negative.
// Site-level negatives are HS003's.
func matchChainedNegativeShift(rule Rule, mc *MatchContext) []Finding {
	var out []Finding

	for _, node := range mc.Graph.Nodes {
		for _, dep := range node.Deps {
			if s := dep.Read.ShiftedBy; s != nil && *s < 0 {
				continue
			}
			if dep.Net == nil || *dep.Net >= 0 {
				continue
			}

			out = append(out, rule.finding(mc, dep.Read.Span, fmt.Sprintf(
				"%s carries a net shift of %d through its producer chain",
				dep.Read.Ref, *dep.Net,
			)))
		}
	}
	return out
}
