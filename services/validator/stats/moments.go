// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import (
	"math"
	"sort"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the Bessel-corrected standard deviation (n-1 divisor).
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - mu
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

// skewness and kurtosis use population central moments, the convention
// the probabilistic Sharpe correction is stated in. kurtosis is raw,
// so a normal series scores 3, not 0.
func skewness(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := mean(xs)
	var m2, m3 float64
	for _, x := range xs {
		d := x - mu
		m2 += d * d
		m3 += d * d * d
	}
	n := float64(len(xs))
	m2 /= n
	m3 /= n
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

func kurtosis(xs []float64) float64 {
	if len(xs) < 2 {
		return 3
	}
	mu := mean(xs)
	var m2, m4 float64
	for _, x := range xs {
		d := x - mu
		d2 := d * d
		m2 += d2
		m4 += d2 * d2
	}
	n := float64(len(xs))
	m2 /= n
	m4 /= n
	if m2 == 0 {
		return 3
	}
	return m4 / (m2 * m2)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// tStat is the one-sample t-statistic of the mean return against
// zero: mean / std * sqrt(n). A zero-variance series maps to signed
// infinity by the sign of its mean.
func tStat(xs []float64) (float64, error) {
	if len(xs) < 2 {
		return 0, &InsufficientDataError{Field: "returns", Minimum: 2, Got: len(xs)}
	}
	mu := mean(xs)
	sd := sampleStd(xs)
	if sd == 0 {
		switch {
		case mu > 0:
			return math.Inf(1), nil
		case mu < 0:
			return math.Inf(-1), nil
		default:
			return 0, nil
		}
	}
	return mu / sd * math.Sqrt(float64(len(xs))), nil
}

// sharpeRatio is the per-period mean over standard deviation, with the
// same zero-variance convention as tStat.
func sharpeRatio(xs []float64) float64 {
	mu := mean(xs)
	sd := sampleStd(xs)
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

// compound is the total return from compounding the series.
func compound(xs []float64) float64 {
	total := 1.0
	for _, x := range xs {
		total *= 1 + x
	}
	return total - 1
}
