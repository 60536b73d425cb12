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
	"math/rand"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// pboBatchSize is how many combinations one goroutine scores between
// cancellation checks.
const pboBatchSize = 64

// PBOResult carries the combinatorial cross-validation outcome.
type PBOResult struct {
	// PBO is the fraction of combinations where the in-sample winner
	// degraded out of sample, in [0, 1].
	PBO float64 `json:"pbo"`

	// Combinations is how many in-sample/out-of-sample splits were
	// scored.
	Combinations int `json:"combinations"`

	// Degraded is how many splits placed the in-sample winner strictly
	// below the out-of-sample median.
	Degraded int `json:"degraded"`

	// Sampled is true when the splits were drawn from a seeded sample
	// rather than enumerated exhaustively.
	Sampled bool `json:"sampled"`
}

// PBO
//
// Description:
//
//	Estimates the probability of backtest overfitting via combinatorial
//	symmetric cross-validation. The time axis is cut into
//	cfg.PBOBlocks contiguous equal-length blocks; for every way of
//	choosing half the blocks as in-sample, the variant with the best
//	in-sample Sharpe is ranked against all variants out of sample. PBO
//	is the fraction of splits where that winner lands strictly below
//	the out-of-sample median.
//
//	Block counts up to 20 are enumerated exhaustively; larger counts
//	score cfg.PBOSampleSize splits drawn from a generator seeded with
//	cfg.PBOSeed, so results are reproducible for a given seed. Splits
//	are scored in parallel; the degradation count is a sum over
//	per-batch tallies, so scheduling order never changes the result.
//
// Inputs:
//   - ctx: cancels scoring between batches. Cancellation surfaces as a
//     CancelledError, never as a partial result.
//   - series: time-major variant matrix, series[t][v]. Row count must
//     divide evenly into cfg.PBOBlocks; at least two columns.
//   - cfg: evaluator settings; nil selects defaults.
//
// Outputs:
//   - *PBOResult: the overfit probability and split accounting.
//   - error: validation failure, InsufficientDataError, or
//     CancelledError.
//
// Thread Safety: safe for concurrent use; all state is call-local.
func PBO(ctx context.Context, series [][]float64, cfg *Config) (*PBOResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	periods := len(series)
	if periods == 0 {
		return nil, &InsufficientDataError{Field: "variant_returns", Minimum: cfg.PBOBlocks, Got: 0}
	}
	variants := len(series[0])
	if variants < 2 {
		return nil, fmt.Errorf("variant_returns: need at least 2 variant series, got %d", variants)
	}
	for t, row := range series {
		if len(row) != variants {
			return nil, fmt.Errorf("variant_returns: row %d has %d entries, want %d", t, len(row), variants)
		}
	}
	blocks := cfg.PBOBlocks
	if periods%blocks != 0 {
		return nil, &InsufficientDataError{Field: "variant_returns", Divisor: blocks, Got: periods}
	}
	blockLen := periods / blocks

	// Transpose to variant-major so each score walks one contiguous
	// series.
	perVariant := make([][]float64, variants)
	for v := range perVariant {
		col := make([]float64, periods)
		for t := range series {
			col[t] = series[t][v]
		}
		perVariant[v] = col
	}

	half := blocks / 2
	var combos [][]int
	sampled := blocks > exactPBOBlockLimit
	if sampled {
		combos = sampleCombinations(blocks, half, cfg.PBOSampleSize, cfg.PBOSeed)
	} else {
		combos = allCombinations(blocks, half)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	batches := (len(combos) + pboBatchSize - 1) / pboBatchSize
	counts := make([]int, batches)
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for b := 0; b < batches; b++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := b * pboBatchSize
			end := start + pboBatchSize
			if end > len(combos) {
				end = len(combos)
			}
			degraded := 0
			for _, combo := range combos[start:end] {
				if scoreCombination(perVariant, combo, blocks, blockLen) {
					degraded++
				}
			}
			counts[b] = degraded
			completed.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &CancelledError{
			Operation: "pbo",
			Completed: int(completed.Load()),
			Cause:     err,
		}
	}

	total := 0
	for _, c := range counts {
		total += c
	}
	recordPBOMetrics(ctx, len(combos), sampled)
	return &PBOResult{
		PBO:          float64(total) / float64(len(combos)),
		Combinations: len(combos),
		Degraded:     total,
		Sampled:      sampled,
	}, nil
}

// scoreCombination reports whether the in-sample winner for this split
// degrades out of sample. Ties on the in-sample score keep the lowest
// variant index.
func scoreCombination(perVariant [][]float64, combo []int, blocks, blockLen int) bool {
	inSample := make([]bool, blocks)
	for _, b := range combo {
		inSample[b] = true
	}

	isScores := make([]float64, len(perVariant))
	oosScores := make([]float64, len(perVariant))
	for v, series := range perVariant {
		isScores[v] = partitionSharpe(series, inSample, true, blockLen)
		oosScores[v] = partitionSharpe(series, inSample, false, blockLen)
	}

	best := 0
	for v := 1; v < len(isScores); v++ {
		if isScores[v] > isScores[best] {
			best = v
		}
	}
	return oosScores[best] < median(oosScores)
}

// partitionSharpe is the per-period Sharpe over the blocks on one side
// of the split, with the same zero-variance convention as sharpeRatio.
func partitionSharpe(series []float64, inSample []bool, want bool, blockLen int) float64 {
	var n int
	var sum float64
	for b, in := range inSample {
		if in != want {
			continue
		}
		for t := b * blockLen; t < (b+1)*blockLen; t++ {
			sum += series[t]
			n++
		}
	}
	if n < 2 {
		return 0
	}
	mu := sum / float64(n)

	var sumSq float64
	for b, in := range inSample {
		if in != want {
			continue
		}
		for t := b * blockLen; t < (b+1)*blockLen; t++ {
			d := series[t] - mu
			sumSq += d * d
		}
	}
	sd := math.Sqrt(sumSq / float64(n-1))
	if sd == 0 {
		switch {
		case mu > 0:
			return math.Inf(1)
		case mu < 0:
			return math.Inf(-1)
		default:
			return 0
		}
	}
	return mu / sd
}

// allCombinations enumerates every way of choosing k of n block
// indices, in lexicographic order.
func allCombinations(n, k int) [][]int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	var out [][]int
	for {
		combo := make([]int, k)
		copy(combo, idx)
		out = append(out, combo)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// sampleCombinations draws count splits from a seeded source. The
// draws are sequential, so one seed always yields one split list.
func sampleCombinations(n, k, count int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]int, 0, count)
	for len(out) < count {
		combo := rng.Perm(n)[:k]
		sort.Ints(combo)
		out = append(out, combo)
	}
	return out
}
