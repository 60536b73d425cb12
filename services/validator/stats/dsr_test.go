// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternating builds a length-n series flipping between hi and lo.
func alternating(n int, hi, lo float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = hi
		} else {
			out[i] = lo
		}
	}
	return out
}

func TestDeflatedSharpe_SingleVariant(t *testing.T) {
	// Per-period Sharpe around 0.33 over 24 periods deflates against a
	// zero benchmark when only one variant was tried.
	returns := alternating(24, 0.02, -0.01)

	dsr, lowConfidence, err := DeflatedSharpe(returns, 1, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, lowConfidence)
	assert.Greater(t, dsr, 0.9)
	assert.Less(t, dsr, 1.0)
}

func TestDeflatedSharpe_ManyVariantsDeflate(t *testing.T) {
	returns := alternating(24, 0.02, -0.01)
	cfg := DefaultConfig()

	one, _, err := DeflatedSharpe(returns, 1, cfg)
	require.NoError(t, err)
	hundred, _, err := DeflatedSharpe(returns, 100, cfg)
	require.NoError(t, err)

	assert.Less(t, hundred, one)
	assert.Greater(t, hundred, 0.05)
	assert.Less(t, hundred, 0.3)
}

func TestDeflatedSharpe_VariantFloorIsOne(t *testing.T) {
	returns := alternating(24, 0.02, -0.01)
	cfg := DefaultConfig()

	zero, _, err := DeflatedSharpe(returns, 0, cfg)
	require.NoError(t, err)
	one, _, err := DeflatedSharpe(returns, 1, cfg)
	require.NoError(t, err)

	assert.Equal(t, one, zero)
}

func TestDeflatedSharpe_ShortSampleFallsBack(t *testing.T) {
	returns := alternating(10, 0.02, -0.01)

	dsr, lowConfidence, err := DeflatedSharpe(returns, 1, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, lowConfidence)
	assert.GreaterOrEqual(t, dsr, 0.0)
	assert.LessOrEqual(t, dsr, 1.0)
}

func TestDeflatedSharpe_TooShort(t *testing.T) {
	_, _, err := DeflatedSharpe([]float64{0.01}, 1, DefaultConfig())
	require.Error(t, err)
	assert.True(t, IsInsufficientData(err))
}

func TestDeflatedSharpe_ZeroVariance(t *testing.T) {
	dsr, _, err := DeflatedSharpe([]float64{0.01, 0.01, 0.01, 0.01}, 5, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, dsr)

	dsr, _, err = DeflatedSharpe([]float64{-0.01, -0.01, -0.01, -0.01}, 5, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0.0, dsr)
}

func TestDeflatedSharpe_TrialVarianceOverride(t *testing.T) {
	returns := alternating(24, 0.02, -0.01)
	cfg := DefaultConfig()
	cfg.TrialVariance = 4.0

	dsr, _, err := DeflatedSharpe(returns, 16, cfg)
	require.NoError(t, err)
	assert.Less(t, dsr, 0.01)
}

func TestExpectedMaxSharpe(t *testing.T) {
	assert.Equal(t, 0.0, expectedMaxSharpe(0.04, 1))
	assert.Equal(t, 0.0, expectedMaxSharpe(0, 10))

	// The benchmark grows with the number of trials.
	e2 := expectedMaxSharpe(0.04, 2)
	e10 := expectedMaxSharpe(0.04, 10)
	e100 := expectedMaxSharpe(0.04, 100)
	assert.Greater(t, e2, 0.0)
	assert.Greater(t, e10, e2)
	assert.Greater(t, e100, e10)
}

func TestNormCDF(t *testing.T) {
	assert.Equal(t, 0.5, normCDF(0))
	assert.InDelta(t, 0.95, normCDF(1.6448536269514722), 1e-9)
	assert.InDelta(t, 0.025, normCDF(-1.9599639845400545), 1e-9)
}

func TestNormQuantile(t *testing.T) {
	assert.Equal(t, 0.0, normQuantile(0.5))
	assert.InDelta(t, 1.959964, normQuantile(0.975), 1e-5)
	assert.InDelta(t, 0.975, normCDF(normQuantile(0.975)), 1e-9)
}
