// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stats judges whether reported backtest performance survives
// multiple-testing scrutiny.
//
// The evaluator combines a trial-count-stepped t-statistic bar, the
// Deflated Sharpe Ratio, and the CSCV probability of backtest
// overfitting into a single pass/fail verdict with red flags for
// too-good-to-be-true numbers.
package stats

import (
	"fmt"
	"math"
)

// BacktestMetrics is the caller-supplied record of a backtest run.
//
// Returns and the optional VariantReturns matrix carry per-period
// simple returns as fractions (0.01 = 1%).
type BacktestMetrics struct {
	// Strategy is an optional identifier echoed into the verdict's
	// surrounding report.
	Strategy string `json:"strategy,omitempty"`

	// Sharpe is the headline Sharpe ratio the backtest claims.
	Sharpe float64 `json:"sharpe"`

	// Returns is the realized per-period return series.
	Returns []float64 `json:"returns"`

	// TrialCount is how many strategy configurations were tried before
	// this one was selected. Drives the required t-statistic.
	TrialCount int `json:"trial_count"`

	// VariantCount is how many variants of the selected strategy
	// family were evaluated. Drives Sharpe deflation.
	VariantCount int `json:"variant_count"`

	// WinRate is the fraction of winning periods, in [0, 1].
	WinRate float64 `json:"win_rate"`

	// MaxDrawdown is the worst peak-to-trough loss as a fraction.
	// Sign is ignored; both -0.08 and 0.08 mean an 8% drawdown.
	MaxDrawdown float64 `json:"max_drawdown"`

	// VariantReturns is an optional time-major matrix of per-variant
	// returns: VariantReturns[t][v] is variant v's return in period t.
	// Required for PBO; at least two variants wide when present.
	VariantReturns [][]float64 `json:"variant_returns,omitempty"`
}

// Validate checks the record's scalar fields.
//
// Series-length requirements surface later as InsufficientDataError
// from the computation that needs them.
func (m *BacktestMetrics) Validate() error {
	if math.IsNaN(m.Sharpe) || math.IsInf(m.Sharpe, 0) {
		return fmt.Errorf("sharpe must be finite")
	}
	if m.WinRate < 0 || m.WinRate > 1 {
		return fmt.Errorf("win_rate must be a fraction in [0, 1], got %g", m.WinRate)
	}
	if math.Abs(m.MaxDrawdown) > 1 {
		return fmt.Errorf("max_drawdown must be a fraction with magnitude <= 1, got %g", m.MaxDrawdown)
	}
	if m.TrialCount < 0 {
		return fmt.Errorf("trial_count cannot be negative")
	}
	if m.VariantCount < 0 {
		return fmt.Errorf("variant_count cannot be negative")
	}
	for i, r := range m.Returns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("returns[%d] must be finite", i)
		}
	}
	return nil
}

// RedFlag marks one implausible-performance pattern. Any red flag
// fails the verdict.
type RedFlag struct {
	// Code is a stable machine-readable identifier.
	Code string `json:"code"`

	// Message is the human-readable rationale.
	Message string `json:"message"`

	// Value is the observed quantity that tripped the flag.
	Value float64 `json:"value"`

	// Threshold is the configured limit the value crossed.
	Threshold float64 `json:"threshold"`
}

// Verdict is the evaluator's judgement of one metrics record.
type Verdict struct {
	// Passed is true when every applicable gate holds and no red flag
	// fired.
	Passed bool `json:"passed"`

	// RequiredTStat is the significance bar for the reported trial
	// count.
	RequiredTStat float64 `json:"required_t_stat"`

	// ObservedTStat is the one-sample t-statistic of the mean return.
	ObservedTStat float64 `json:"observed_t_stat"`

	// DeflatedSharpe is the probability, in [0, 1], that the true
	// Sharpe exceeds the expected maximum of VariantCount chance
	// trials.
	DeflatedSharpe float64 `json:"deflated_sharpe"`

	// PBO is the probability of backtest overfitting. Meaningful only
	// when PBOComputed.
	PBO float64 `json:"pbo"`

	// PBOComputed reports whether a variant matrix was available.
	PBOComputed bool `json:"pbo_computed"`

	// PBOCombinations is how many block combinations were scored.
	PBOCombinations int `json:"pbo_combinations,omitempty"`

	// LowConfidence is set when the sample was too short for the
	// moment-corrected deflation and the normal fallback was used.
	LowConfidence bool `json:"low_confidence"`

	// SampleSize is the number of return observations evaluated.
	SampleSize int `json:"sample_size"`

	// RedFlags lists implausible-performance patterns, in check order.
	RedFlags []RedFlag `json:"red_flags,omitempty"`
}

// HasRedFlags reports whether any implausibility check fired.
func (v *Verdict) HasRedFlags() bool {
	return len(v.RedFlags) > 0
}
