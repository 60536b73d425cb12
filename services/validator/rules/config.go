// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rule engine's tunable heuristics.
//
// Description:
//
//	The name-pattern sets are heuristics, documented as such: membership
//	is case-insensitive substring matching over column names, and teams
//	whose naming differs override them in YAML. Severity overrides can
//	re-classify a rule's findings; unknown severities fail validation
//	rather than weakening silently.
//
// Thread Safety: treat as immutable after Load/ApplyDefaults. The
// watcher replaces whole snapshots, never mutates.
type Config struct {
	// SignalPatterns mark signal-like column names (substrings).
	SignalPatterns []string `yaml:"signal_patterns"`

	// PositionPatterns mark position-like column names.
	PositionPatterns []string `yaml:"position_patterns"`

	// PricePatterns mark price-like column names.
	PricePatterns []string `yaml:"price_patterns"`

	// FullSpanAliases are dataset aliases assumed to span training and
	// evaluation periods.
	FullSpanAliases []string `yaml:"full_span_aliases"`

	// GlobalAggregates are method names that compute a statistic over
	// the whole of their input.
	GlobalAggregates []string `yaml:"global_aggregates"`

	// WindowMethods suppress the global-aggregate match when
	// interposed in a call chain.
	WindowMethods []string `yaml:"window_methods"`

	// DisabledRules lists rule IDs to skip entirely.
	DisabledRules []string `yaml:"disabled_rules"`

	// SeverityOverrides maps rule ID to a severity wire string.
	SeverityOverrides map[string]string `yaml:"severity_overrides"`

	// Lowered lookup sets, built by ApplyDefaults.
	signalSet    []string
	positionSet  []string
	priceSet     []string
	fullSpanSet  map[string]bool
	aggregateSet map[string]bool
	windowSet    map[string]bool
	disabledSet  map[string]bool
	overrides    map[string]Severity
}

// Built-in heuristic sets. ApplyDefaults copies these into any config
// that leaves the corresponding field empty.
var (
	defaultSignalPatterns   = []string{"signal", "alpha", "score", "pred", "forecast"}
	defaultPositionPatterns = []string{"position", "pos", "weight", "holding", "exposure", "size"}
	defaultPricePatterns    = []string{"price", "close", "open", "high", "low", "px"}
	defaultFullSpanAliases  = []string{"df", "data", "dataset", "prices"}
	defaultGlobalAggregates = []string{
		"mean", "std", "var", "min", "max", "sum", "median",
		"quantile", "fit", "fit_transform",
	}
	defaultWindowMethods = []string{"rolling", "expanding", "ewm", "groupby", "resample"}
)

// DefaultConfig returns the built-in heuristics.
func DefaultConfig() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML config file, overlays it on the defaults, and
// validates the result.
//
// A missing file is not an error: the defaults apply unchanged.
func Load(path string) (*Config, error) {
	c := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read rule config: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse rule config: %w", err)
	}

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config: %w", err)
	}
	return c, nil
}

// ApplyDefaults fills empty sets with the built-in values and rebuilds
// the lookup indexes. Safe to call repeatedly.
func (c *Config) ApplyDefaults() {
	if len(c.SignalPatterns) == 0 {
		c.SignalPatterns = append([]string(nil), defaultSignalPatterns...)
	}
	if len(c.PositionPatterns) == 0 {
		c.PositionPatterns = append([]string(nil), defaultPositionPatterns...)
	}
	if len(c.PricePatterns) == 0 {
		c.PricePatterns = append([]string(nil), defaultPricePatterns...)
	}
	if len(c.FullSpanAliases) == 0 {
		c.FullSpanAliases = append([]string(nil), defaultFullSpanAliases...)
	}
	if len(c.GlobalAggregates) == 0 {
		c.GlobalAggregates = append([]string(nil), defaultGlobalAggregates...)
	}
	if len(c.WindowMethods) == 0 {
		c.WindowMethods = append([]string(nil), defaultWindowMethods...)
	}

	c.signalSet = lowerAll(c.SignalPatterns)
	c.positionSet = lowerAll(c.PositionPatterns)
	c.priceSet = lowerAll(c.PricePatterns)
	c.fullSpanSet = lowerSet(c.FullSpanAliases)
	c.aggregateSet = lowerSet(c.GlobalAggregates)
	c.windowSet = lowerSet(c.WindowMethods)

	c.disabledSet = make(map[string]bool, len(c.DisabledRules))
	for _, id := range c.DisabledRules {
		c.disabledSet[strings.ToUpper(strings.TrimSpace(id))] = true
	}

	c.overrides = make(map[string]Severity, len(c.SeverityOverrides))
	for id, raw := range c.SeverityOverrides {
		if sev, err := ParseSeverity(raw); err == nil {
			c.overrides[strings.ToUpper(strings.TrimSpace(id))] = sev
		}
	}
}

// Validate checks the overrides for unknown severities.
func (c *Config) Validate() error {
	for id, raw := range c.SeverityOverrides {
		if _, err := ParseSeverity(raw); err != nil {
			return fmt.Errorf("severity override for %s: %w", id, err)
		}
	}
	for _, set := range [][]string{c.SignalPatterns, c.PositionPatterns, c.PricePatterns} {
		for _, p := range set {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("empty name pattern")
			}
		}
	}
	return nil
}

// IsSignalLike reports whether a column name matches the signal set.
func (c *Config) IsSignalLike(column string) bool {
	return matchAny(column, c.signalSet)
}

// IsPositionLike reports whether a column name matches the position
// set.
func (c *Config) IsPositionLike(column string) bool {
	return matchAny(column, c.positionSet)
}

// IsPriceLike reports whether a column name matches the price set.
func (c *Config) IsPriceLike(column string) bool {
	return matchAny(column, c.priceSet)
}

// IsFullSpanAlias reports whether a dataset alias is assumed to span
// training and evaluation periods.
func (c *Config) IsFullSpanAlias(alias string) bool {
	if alias == "" {
		return false
	}
	return c.fullSpanSet[strings.ToLower(alias)]
}

// IsGlobalAggregate reports whether a method name computes a whole-
// input statistic.
func (c *Config) IsGlobalAggregate(method string) bool {
	return c.aggregateSet[strings.ToLower(method)]
}

// WindowSet returns the lowered window-method set for chain checks.
func (c *Config) WindowSet() map[string]bool {
	return c.windowSet
}

// RuleEnabled reports whether a rule should run.
func (c *Config) RuleEnabled(id string) bool {
	return !c.disabledSet[strings.ToUpper(id)]
}

// SeverityFor returns the effective severity for a rule.
func (c *Config) SeverityFor(id string, base Severity) Severity {
	if sev, ok := c.overrides[strings.ToUpper(id)]; ok {
		return sev
	}
	return base
}

func matchAny(column string, patterns []string) bool {
	if column == "" {
		return false
	}
	lowered := strings.ToLower(column)
	for _, p := range patterns {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}

func lowerSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return out
}
