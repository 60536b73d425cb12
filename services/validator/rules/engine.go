// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules evaluates bias rules against a strategy's flow graph.
//
// The built-in catalog covers lookahead bias and data leakage; a
// Config tunes the naming patterns the matchers key on, disables
// rules, and overrides severities. The Engine is safe for concurrent
// evaluation and supports hot config swaps.
package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hindsightlabs/hindsight/services/validator/flow"
)

// Engine evaluates the rule catalog against flow graphs.
//
// Thread Safety: all methods are safe for concurrent use. Evaluate
// snapshots the rule set and config under a read lock, so a SetConfig
// during evaluation affects only later calls.
type Engine struct {
	mu    sync.RWMutex
	rules []Rule
	cfg   *Config
}

// NewEngine creates an engine carrying the built-in catalog.
//
// Description:
//
//	A nil config selects the defaults. The config is held by pointer
//	and must not be mutated after being handed over; swap it with
//	SetConfig instead.
//
// Inputs:
//
//	cfg - pattern and override configuration, or nil for defaults.
//
// Outputs:
//
//	*Engine - ready for Evaluate.
func NewEngine(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Engine{
		rules: Catalog(),
		cfg:   cfg,
	}
}

// Evaluate runs every enabled rule against the graph.
//
// Description:
//
//	Findings come back ordered by line and rule ID with severity
//	overrides already applied. Cancellation is checked between rules;
//	a cancelled context returns ctx.Err() and no findings.
//
// Inputs:
//
//	ctx   - cancellation and tracing context. Must not be nil.
//	graph - the flow graph to evaluate. Must not be nil.
//
// Outputs:
//
//	[]Finding - ordered findings, possibly empty.
//	error     - nil ctx, nil graph, or context cancellation.
func (e *Engine) Evaluate(ctx context.Context, graph *flow.Graph) ([]Finding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}
	if graph.Unit == nil {
		return nil, nil
	}

	e.mu.RLock()
	rules := make([]Rule, len(e.rules))
	copy(rules, e.rules)
	cfg := e.cfg
	e.mu.RUnlock()

	ctx, span := startEvaluateSpan(ctx, graph.Unit.Path, len(rules))
	defer span.End()

	start := time.Now()
	mc := &MatchContext{
		Graph:  graph,
		Unit:   graph.Unit,
		Config: cfg,
	}

	var findings []Finding
	for _, rule := range rules {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !cfg.RuleEnabled(rule.ID) {
			continue
		}
		for _, f := range rule.match(rule, mc) {
			f.Severity = cfg.SeverityFor(f.RuleID, f.Severity)
			findings = append(findings, f)
		}
	}

	SortFindings(findings)

	stops := 0
	for _, f := range findings {
		if f.IsStop() {
			stops++
		}
	}
	setEvaluateSpanResult(span, len(findings), stops)
	recordEvaluateMetrics(ctx, time.Since(start), len(findings), stops)

	return findings, nil
}

// Rules returns a copy of the engine's rule set ordered by ID.
func (e *Engine) Rules() []Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Config returns the current configuration snapshot.
func (e *Engine) Config() *Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig swaps the engine's configuration.
//
// In-flight evaluations keep the snapshot they started with. A nil
// config is ignored.
func (e *Engine) SetConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}
