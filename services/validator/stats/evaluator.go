// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Red flag codes, stable for machine consumption.
const (
	FlagImplausibleSharpe      = "implausible_sharpe"
	FlagReturnDrawdownMismatch = "return_drawdown_mismatch"
	FlagImplausibleWinRate     = "implausible_win_rate"
)

// Evaluator applies the full statistical gauntlet to one metrics
// record. Construct once and share; it holds no per-call state.
type Evaluator struct {
	cfg *Config
}

// NewEvaluator builds an evaluator. A nil config selects defaults;
// partial configs are filled in and then validated.
func NewEvaluator(cfg *Config) (*Evaluator, error) {
	resolved := &Config{}
	if cfg != nil {
		copied := *cfg
		resolved = &copied
	}
	resolved.ApplyDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stats config: %w", err)
	}
	return &Evaluator{cfg: resolved}, nil
}

// Config returns the evaluator's resolved settings.
func (e *Evaluator) Config() *Config {
	return e.cfg
}

// Evaluate
//
// Description:
//
//	Judges one backtest record. The verdict passes only when the
//	observed t-statistic clears the trial-count bar, the deflated
//	Sharpe clears its threshold whenever the claimed Sharpe is high
//	enough to need deflating, the overfit probability stays under its
//	threshold whenever a variant matrix was supplied, and no
//	implausibility flag fires. Flags are checked independently; one
//	firing never hides another.
//
// Inputs:
//   - ctx: checked between stages. Cancellation surfaces as a
//     CancelledError; no partial verdict is returned.
//   - m: the backtest record; must be non-nil with at least 2 returns.
//
// Outputs:
//   - *Verdict: the pass/fail judgement with all intermediate scores.
//   - error: validation failure, InsufficientDataError, or
//     CancelledError.
//
// Thread Safety: safe for concurrent use.
func (e *Evaluator) Evaluate(ctx context.Context, m *BacktestMetrics) (*Verdict, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	ctx, span := startEvaluateSpan(ctx, m.Strategy, m.TrialCount, len(m.Returns))
	defer span.End()

	required := RequiredTStat(m.TrialCount)
	observed, err := tStat(m.Returns)
	if err != nil {
		recordEvaluateMetrics(ctx, time.Since(start), false, false)
		return nil, err
	}
	if err := stageErr(ctx, 1); err != nil {
		return nil, err
	}

	dsr, lowConfidence, err := DeflatedSharpe(m.Returns, m.VariantCount, e.cfg)
	if err != nil {
		recordEvaluateMetrics(ctx, time.Since(start), false, false)
		return nil, err
	}
	if err := stageErr(ctx, 2); err != nil {
		return nil, err
	}

	verdict := &Verdict{
		RequiredTStat:  required,
		ObservedTStat:  observed,
		DeflatedSharpe: dsr,
		LowConfidence:  lowConfidence,
		SampleSize:     len(m.Returns),
	}

	if len(m.VariantReturns) > 0 {
		res, err := PBO(ctx, m.VariantReturns, e.cfg)
		if err != nil {
			recordEvaluateMetrics(ctx, time.Since(start), false, false)
			return nil, err
		}
		verdict.PBO = res.PBO
		verdict.PBOComputed = true
		verdict.PBOCombinations = res.Combinations
	}

	verdict.RedFlags = e.redFlags(m)

	passed := observed >= required
	if m.Sharpe > e.cfg.SharpeTrigger && dsr < e.cfg.DSRThreshold {
		passed = false
	}
	if verdict.PBOComputed && verdict.PBO >= e.cfg.PBOThreshold {
		passed = false
	}
	if len(verdict.RedFlags) > 0 {
		passed = false
	}
	verdict.Passed = passed

	setEvaluateSpanResult(span, verdict)
	recordEvaluateMetrics(ctx, time.Since(start), true, passed)
	return verdict, nil
}

// redFlags runs every implausibility check in a fixed order.
func (e *Evaluator) redFlags(m *BacktestMetrics) []RedFlag {
	var flags []RedFlag

	if m.Sharpe > e.cfg.MaxSharpeFlag {
		flags = append(flags, RedFlag{
			Code: FlagImplausibleSharpe,
			Message: fmt.Sprintf("claimed Sharpe %.2f exceeds %.2f; sustained out-of-sample Sharpe above this level is rare",
				m.Sharpe, e.cfg.MaxSharpeFlag),
			Value:     m.Sharpe,
			Threshold: e.cfg.MaxSharpeFlag,
		})
	}

	total := compound(m.Returns)
	drawdown := math.Abs(m.MaxDrawdown)
	if total > e.cfg.MaxReturnFlag && drawdown < e.cfg.MinDrawdownCut {
		flags = append(flags, RedFlag{
			Code: FlagReturnDrawdownMismatch,
			Message: fmt.Sprintf("total return %.1f%% with max drawdown under %.1f%%; outsized gains without pain usually mean leakage",
				total*100, e.cfg.MinDrawdownCut*100),
			Value:     total,
			Threshold: e.cfg.MaxReturnFlag,
		})
	}

	if m.WinRate > e.cfg.MaxWinRateFlag {
		flags = append(flags, RedFlag{
			Code: FlagImplausibleWinRate,
			Message: fmt.Sprintf("win rate %.1f%% exceeds %.1f%%",
				m.WinRate*100, e.cfg.MaxWinRateFlag*100),
			Value:     m.WinRate,
			Threshold: e.cfg.MaxWinRateFlag,
		})
	}

	return flags
}

// stageErr converts a mid-pipeline cancellation into a CancelledError
// carrying how many stages finished.
func stageErr(ctx context.Context, completed int) error {
	if err := ctx.Err(); err != nil {
		return &CancelledError{Operation: "evaluate", Completed: completed, Cause: err}
	}
	return nil
}
