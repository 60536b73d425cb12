// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	ev, err := NewEvaluator(nil)
	require.NoError(t, err)
	return ev
}

func flagCodes(v *Verdict) []string {
	codes := make([]string, 0, len(v.RedFlags))
	for _, f := range v.RedFlags {
		codes = append(codes, f.Code)
	}
	return codes
}

func TestEvaluator_HighSharpeManyTrialsFails(t *testing.T) {
	// A 2.3 Sharpe selected from 50 trials over 20 monthly returns:
	// the bar rises to 2.5, the Sharpe flag fires, and deflation
	// against 20 variants lands well under the 0.95 requirement.
	m := &BacktestMetrics{
		Sharpe:       2.3,
		Returns:      alternating(20, 0.02, -0.005),
		TrialCount:   50,
		VariantCount: 20,
		WinRate:      0.5,
		MaxDrawdown:  -0.12,
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.False(t, v.Passed)
	assert.Equal(t, 2.5, v.RequiredTStat)
	assert.InDelta(t, 2.6152, v.ObservedTStat, 1e-3)
	assert.Less(t, v.DeflatedSharpe, 0.95)
	assert.Greater(t, v.DeflatedSharpe, 0.5)
	assert.False(t, v.LowConfidence)
	assert.False(t, v.PBOComputed)
	assert.Equal(t, 20, v.SampleSize)

	require.Len(t, v.RedFlags, 1)
	assert.Equal(t, FlagImplausibleSharpe, v.RedFlags[0].Code)
	assert.Contains(t, v.RedFlags[0].Message, "2.30")
	assert.Equal(t, 2.3, v.RedFlags[0].Value)
	assert.Equal(t, 2.0, v.RedFlags[0].Threshold)
}

func TestEvaluator_CleanPass(t *testing.T) {
	m := &BacktestMetrics{
		Sharpe:       1.2,
		Returns:      alternating(24, 0.02, -0.002),
		TrialCount:   5,
		VariantCount: 1,
		WinRate:      0.6,
		MaxDrawdown:  -0.15,
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, v.Passed)
	assert.Equal(t, 2.0, v.RequiredTStat)
	assert.Greater(t, v.ObservedTStat, 2.0)
	assert.Empty(t, v.RedFlags)
	assert.False(t, v.PBOComputed)
	assert.False(t, v.LowConfidence)
}

func TestEvaluator_ZeroTrialCountUsesLowestBar(t *testing.T) {
	m := &BacktestMetrics{
		Sharpe:  1.0,
		Returns: alternating(24, 0.02, -0.002),
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.RequiredTStat)
}

func TestEvaluator_AllFlagsFireIndependently(t *testing.T) {
	// Every period gains, so the t-stat clears its bar easily; the
	// verdict still fails on three independent flags.
	m := &BacktestMetrics{
		Sharpe:       2.5,
		Returns:      alternating(24, 0.03, 0.01),
		TrialCount:   1,
		VariantCount: 1,
		WinRate:      0.9,
		MaxDrawdown:  0.05,
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.False(t, v.Passed)
	assert.Greater(t, v.ObservedTStat, v.RequiredTStat)
	assert.Equal(t, []string{
		FlagImplausibleSharpe,
		FlagReturnDrawdownMismatch,
		FlagImplausibleWinRate,
	}, flagCodes(v))
}

func TestEvaluator_PBOGateFails(t *testing.T) {
	m := &BacktestMetrics{
		Sharpe:         1.2,
		Returns:        alternating(24, 0.02, -0.002),
		TrialCount:     5,
		VariantCount:   2,
		WinRate:        0.6,
		MaxDrawdown:    -0.15,
		VariantReturns: antisymmetricMatrix(),
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.False(t, v.Passed)
	assert.True(t, v.PBOComputed)
	assert.Equal(t, 12870, v.PBOCombinations)
	assert.Equal(t, float64(7970)/float64(12870), v.PBO)
	assert.Empty(t, v.RedFlags)
	assert.Greater(t, v.ObservedTStat, v.RequiredTStat)
}

func TestEvaluator_PBOGatePasses(t *testing.T) {
	m := &BacktestMetrics{
		Sharpe:         1.2,
		Returns:        alternating(24, 0.02, -0.002),
		TrialCount:     5,
		VariantCount:   4,
		WinRate:        0.6,
		MaxDrawdown:    -0.15,
		VariantReturns: dominantMatrix(),
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, v.Passed)
	assert.True(t, v.PBOComputed)
	assert.Equal(t, 0.0, v.PBO)
}

func TestEvaluator_VariantMatrixNotDivisible(t *testing.T) {
	series := make([][]float64, 30)
	for t := range series {
		series[t] = []float64{0.01, -0.01}
	}
	m := &BacktestMetrics{
		Sharpe:         1.2,
		Returns:        alternating(24, 0.02, -0.002),
		VariantCount:   2,
		VariantReturns: series,
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.Error(t, err)
	assert.Nil(t, v)

	var dataErr *InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, 16, dataErr.Divisor)
	assert.Equal(t, 30, dataErr.Got)
}

func TestEvaluator_ShortSampleMarksLowConfidence(t *testing.T) {
	m := &BacktestMetrics{
		Sharpe:     1.0,
		Returns:    alternating(10, 0.02, -0.002),
		TrialCount: 1,
		WinRate:    0.6,
	}

	v, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.NoError(t, err)

	assert.True(t, v.LowConfidence)
	assert.True(t, v.Passed)
	assert.Equal(t, 10, v.SampleSize)
}

func TestEvaluator_TooFewReturns(t *testing.T) {
	m := &BacktestMetrics{Sharpe: 1.0, Returns: []float64{0.01}}

	_, err := newTestEvaluator(t).Evaluate(context.Background(), m)
	require.Error(t, err)

	var dataErr *InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, 2, dataErr.Minimum)
}

func TestEvaluator_InvalidMetrics(t *testing.T) {
	tests := []struct {
		name    string
		metrics *BacktestMetrics
		wantSub string
	}{
		{
			name:    "win rate above one",
			metrics: &BacktestMetrics{Sharpe: 1, Returns: alternating(4, 0.01, -0.01), WinRate: 1.5},
			wantSub: "win_rate",
		},
		{
			name:    "non-finite sharpe",
			metrics: &BacktestMetrics{Sharpe: math.NaN(), Returns: alternating(4, 0.01, -0.01)},
			wantSub: "sharpe",
		},
		{
			name:    "negative trial count",
			metrics: &BacktestMetrics{Sharpe: 1, Returns: alternating(4, 0.01, -0.01), TrialCount: -1},
			wantSub: "trial_count",
		},
		{
			name:    "drawdown beyond total loss",
			metrics: &BacktestMetrics{Sharpe: 1, Returns: alternating(4, 0.01, -0.01), MaxDrawdown: -1.5},
			wantSub: "max_drawdown",
		},
	}

	ev := newTestEvaluator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ev.Evaluate(context.Background(), tt.metrics)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantSub)
		})
	}
}

func TestEvaluator_NilContext(t *testing.T) {
	m := &BacktestMetrics{Sharpe: 1.0, Returns: alternating(4, 0.01, -0.01)}
	_, err := newTestEvaluator(t).Evaluate(nil, m) //nolint:staticcheck
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestEvaluator_NilMetrics(t *testing.T) {
	_, err := newTestEvaluator(t).Evaluate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics")
}

func TestEvaluator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := &BacktestMetrics{Sharpe: 1.0, Returns: alternating(24, 0.02, -0.002)}
	v, err := newTestEvaluator(t).Evaluate(ctx, m)
	require.Error(t, err)
	assert.Nil(t, v)
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, context.Canceled))

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "evaluate", cancelled.Operation)
}

func TestNewEvaluator(t *testing.T) {
	ev, err := NewEvaluator(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPBOBlocks, ev.Config().PBOBlocks)

	_, err = NewEvaluator(&Config{PBOBlocks: 7})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pbo_blocks")
}

func TestNewEvaluator_CopiesConfig(t *testing.T) {
	cfg := &Config{MinSampleSize: 30}
	ev, err := NewEvaluator(cfg)
	require.NoError(t, err)

	cfg.MinSampleSize = 99
	assert.Equal(t, 30, ev.Config().MinSampleSize)
	assert.Equal(t, DefaultPBOBlocks, ev.Config().PBOBlocks)
}
