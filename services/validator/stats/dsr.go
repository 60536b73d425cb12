// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import "math"

const eulerMascheroni = 0.5772156649015329

// DeflatedSharpe
//
// Description:
//
//	Computes the Deflated Sharpe Ratio: the probability that the true
//	Sharpe of the supplied return series exceeds the expected maximum
//	Sharpe of `variants` skill-free trials. The ratio is computed from
//	the per-period returns, not from any headline figure, so the
//	deflation and the series it judges cannot disagree on units.
//
//	Series shorter than cfg.MinSampleSize use normal-distribution
//	moments instead of the observed skewness and kurtosis; the second
//	return value reports that fallback so callers can mark the verdict
//	low confidence. A single variant deflates against a zero Sharpe
//	benchmark.
//
// Inputs:
//   - returns: per-period simple returns, at least 2 observations.
//   - variants: number of strategy variants evaluated; values below 1
//     are treated as 1.
//   - cfg: evaluator settings; must be non-nil and validated.
//
// Outputs:
//   - float64: probability in [0, 1].
//   - bool: true when the normal-moment fallback was used.
//   - error: InsufficientDataError when the series is too short.
func DeflatedSharpe(returns []float64, variants int, cfg *Config) (float64, bool, error) {
	n := len(returns)
	if n < 2 {
		return 0, false, &InsufficientDataError{Field: "returns", Minimum: 2, Got: n}
	}
	if variants < 1 {
		variants = 1
	}

	sr := sharpeRatio(returns)
	if math.IsInf(sr, 1) {
		return 1, false, nil
	}
	if math.IsInf(sr, -1) {
		return 0, false, nil
	}

	skew := skewness(returns)
	kurt := kurtosis(returns)
	fallback := n < cfg.MinSampleSize

	// The moment correction 1 - skew*SR + (kurt-1)/4*SR^2 can go
	// non-positive on short heavy-tailed samples. Normal moments keep
	// it strictly positive.
	correction := momentCorrection(sr, skew, kurt)
	if fallback || correction <= 0 {
		skew = 0
		kurt = 3
		correction = momentCorrection(sr, skew, kurt)
		fallback = true
	}

	benchmark := 0.0
	if variants > 1 {
		trialVar := cfg.TrialVariance
		if trialVar <= 0 {
			// Estimator variance of the observed Sharpe, under the
			// moments in use.
			trialVar = correction / float64(n-1)
		}
		benchmark = expectedMaxSharpe(trialVar, variants)
	}

	z := (sr - benchmark) * math.Sqrt(float64(n-1)) / math.Sqrt(correction)
	return normCDF(z), fallback, nil
}

func momentCorrection(sr, skew, kurt float64) float64 {
	return 1 - skew*sr + (kurt-1)/4*sr*sr
}

// expectedMaxSharpe is the expected maximum of n independent Sharpe
// estimates with the given variance and zero true skill, via the
// Euler-Mascheroni approximation to the maximum of n Gaussians.
func expectedMaxSharpe(trialVar float64, n int) float64 {
	if n <= 1 || trialVar <= 0 {
		return 0
	}
	nf := float64(n)
	z1 := normQuantile(1 - 1/nf)
	z2 := normQuantile(1 - 1/(nf*math.E))
	return math.Sqrt(trialVar) * ((1-eulerMascheroni)*z1 + eulerMascheroni*z2)
}

func normCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func normQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
