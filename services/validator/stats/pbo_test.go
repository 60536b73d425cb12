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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// antisymmetricMatrix builds a 32-period, two-variant matrix where the
// variants are exact mirrors: even blocks favor variant 0, odd blocks
// favor variant 1. Values are dyadic so every accumulated sum is exact.
//
// With 16 blocks the in-sample winner degrades out of sample in every
// split except the 70*70 splits holding exactly four even blocks,
// which tie. PBO is therefore exactly (12870-4900)/12870.
func antisymmetricMatrix() [][]float64 {
	const unit = 1.0 / 128
	series := make([][]float64, 32)
	for t := range series {
		v := -unit
		if t%2 == 0 {
			v = 3 * unit
		}
		if (t/2)%2 == 1 {
			v = -v
		}
		series[t] = []float64{v, -v}
	}
	return series
}

func TestPBO_MirroredVariantsExactFraction(t *testing.T) {
	res, err := PBO(context.Background(), antisymmetricMatrix(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, 12870, res.Combinations)
	assert.False(t, res.Sampled)
	assert.Equal(t, 7970, res.Degraded)
	assert.Equal(t, float64(7970)/float64(12870), res.PBO)
}

// dominantMatrix builds a 32-period, four-variant matrix where variant
// 0 gains every period and the rest oscillate around zero.
func dominantMatrix() [][]float64 {
	series := make([][]float64, 32)
	for t := range series {
		wiggle := 0.008
		if t%2 == 1 {
			wiggle = -0.008
		}
		blockWiggle := 0.008
		if (t/2)%2 == 1 {
			blockWiggle = -0.008
		}
		series[t] = []float64{0.01, wiggle, blockWiggle, -wiggle}
	}
	return series
}

func TestPBO_DominantVariantNeverDegrades(t *testing.T) {
	// A strategy that wins in-sample and keeps winning out of sample
	// has zero overfit probability.
	res, err := PBO(context.Background(), dominantMatrix(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Degraded)
	assert.Equal(t, 0.0, res.PBO)
}

func TestPBO_BoundsAndSmallBlockCount(t *testing.T) {
	series := make([][]float64, 8)
	vals := []float64{0.02, -0.01, 0.015, -0.005, 0.01, 0.0, -0.02, 0.03}
	for t := range series {
		series[t] = []float64{vals[t], vals[len(vals)-1-t]}
	}

	cfg := DefaultConfig()
	cfg.PBOBlocks = 4
	res, err := PBO(context.Background(), series, cfg)
	require.NoError(t, err)

	assert.Equal(t, 6, res.Combinations)
	assert.False(t, res.Sampled)
	assert.GreaterOrEqual(t, res.PBO, 0.0)
	assert.LessOrEqual(t, res.PBO, 1.0)
}

func TestPBO_SampledModeIsSeedStable(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	series := make([][]float64, 48)
	for t := range series {
		row := make([]float64, 3)
		for v := range row {
			row[v] = rng.NormFloat64() * 0.01
		}
		series[t] = row
	}

	cfg := DefaultConfig()
	cfg.PBOBlocks = 24
	cfg.PBOSampleSize = 300
	cfg.PBOSeed = 7
	cfg.Workers = 4

	first, err := PBO(context.Background(), series, cfg)
	require.NoError(t, err)
	second, err := PBO(context.Background(), series, cfg)
	require.NoError(t, err)

	assert.True(t, first.Sampled)
	assert.Equal(t, 300, first.Combinations)
	assert.Equal(t, first.Degraded, second.Degraded)
	assert.Equal(t, first.PBO, second.PBO)
	assert.GreaterOrEqual(t, first.PBO, 0.0)
	assert.LessOrEqual(t, first.PBO, 1.0)
}

func TestPBO_LengthNotDivisibleByBlocks(t *testing.T) {
	series := make([][]float64, 30)
	for t := range series {
		series[t] = []float64{0.01, -0.01}
	}

	_, err := PBO(context.Background(), series, DefaultConfig())
	require.Error(t, err)

	var dataErr *InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, "variant_returns", dataErr.Field)
	assert.Equal(t, 16, dataErr.Divisor)
	assert.Equal(t, 30, dataErr.Got)
	assert.Contains(t, err.Error(), "16")
}

func TestPBO_EmptyMatrix(t *testing.T) {
	_, err := PBO(context.Background(), [][]float64{}, DefaultConfig())
	require.Error(t, err)

	var dataErr *InsufficientDataError
	require.ErrorAs(t, err, &dataErr)
	assert.Equal(t, 16, dataErr.Minimum)
	assert.Equal(t, 0, dataErr.Got)
}

func TestPBO_SingleVariantRejected(t *testing.T) {
	series := make([][]float64, 32)
	for t := range series {
		series[t] = []float64{0.01}
	}

	_, err := PBO(context.Background(), series, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 variant")
}

func TestPBO_RaggedMatrixRejected(t *testing.T) {
	series := make([][]float64, 32)
	for t := range series {
		series[t] = []float64{0.01, -0.01}
	}
	series[3] = []float64{0.01}

	_, err := PBO(context.Background(), series, DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}

func TestPBO_NilContext(t *testing.T) {
	_, err := PBO(nil, antisymmetricMatrix(), DefaultConfig()) //nolint:staticcheck
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}

func TestPBO_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := PBO(ctx, antisymmetricMatrix(), DefaultConfig())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsCancelled(err))
	assert.True(t, errors.Is(err, context.Canceled))

	var cancelled *CancelledError
	require.ErrorAs(t, err, &cancelled)
	assert.Equal(t, "pbo", cancelled.Operation)
}

func TestAllCombinations(t *testing.T) {
	got := allCombinations(4, 2)
	want := [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	require.Equal(t, want, got)

	got = allCombinations(3, 3)
	require.Equal(t, [][]int{{0, 1, 2}}, got)
}

func TestSampleCombinations(t *testing.T) {
	first := sampleCombinations(24, 12, 5, 3)
	second := sampleCombinations(24, 12, 5, 3)
	require.Equal(t, first, second)
	require.Len(t, first, 5)

	for _, combo := range first {
		require.Len(t, combo, 12)
		seen := map[int]bool{}
		for i, b := range combo {
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, 24)
			require.False(t, seen[b], "duplicate block in combination")
			seen[b] = true
			if i > 0 {
				require.Greater(t, b, combo[i-1], "combination not sorted")
			}
		}
	}
}

func TestPartitionSharpe(t *testing.T) {
	series := []float64{1, 2, 3, 4}
	inSample := []bool{true, false}

	// In-sample block holds {1, 2}: mean 1.5, std sqrt(0.5).
	assert.InDelta(t, 2.1213203435596424, partitionSharpe(series, inSample, true, 2), 1e-9)
	// Out-of-sample block holds {3, 4}: mean 3.5, same std.
	assert.InDelta(t, 4.949747468305832, partitionSharpe(series, inSample, false, 2), 1e-9)
}
