// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

import "fmt"

// Default evaluator settings. Thresholds follow the published
// multiple-testing literature; flags mark performance that rarely
// survives out of sample.
const (
	DefaultMinSampleSize  = 20
	DefaultDSRThreshold   = 0.95
	DefaultSharpeTrigger  = 1.5
	DefaultPBOThreshold   = 0.05
	DefaultPBOBlocks      = 16
	DefaultPBOSampleSize  = 5000
	DefaultPBOSeed        = 1
	DefaultMaxSharpeFlag  = 2.0
	DefaultMaxReturnFlag  = 0.50
	DefaultMinDrawdownCut = 0.10
	DefaultMaxWinRateFlag = 0.70
)

// exactPBOBlockLimit is the largest block count whose combinations are
// enumerated exhaustively. C(20, 10) = 184756 is still cheap; beyond
// that a seeded sample is used.
const exactPBOBlockLimit = 20

// Config carries the evaluator's thresholds and sampling controls.
type Config struct {
	// MinSampleSize is the shortest return series that gets the
	// moment-corrected Sharpe deflation. Below it the normal-moment
	// fallback applies and the verdict is marked low confidence.
	MinSampleSize int `yaml:"min_sample_size"`

	// DSRThreshold is the deflated-Sharpe probability the verdict
	// requires when the claimed Sharpe exceeds SharpeTrigger.
	DSRThreshold float64 `yaml:"dsr_threshold"`

	// SharpeTrigger is the claimed-Sharpe level above which the
	// deflation gate applies.
	SharpeTrigger float64 `yaml:"sharpe_trigger"`

	// PBOThreshold is the overfit probability the verdict requires
	// when a variant matrix is supplied.
	PBOThreshold float64 `yaml:"pbo_threshold"`

	// PBOBlocks is the number of contiguous time blocks the variant
	// matrix is partitioned into. Must be even and at least 2.
	PBOBlocks int `yaml:"pbo_blocks"`

	// PBOSampleSize is how many combinations are scored when the
	// block count is too large for exact enumeration.
	PBOSampleSize int `yaml:"pbo_sample_size"`

	// PBOSeed seeds the combination sampler. Identical seeds yield
	// identical PBO values.
	PBOSeed int64 `yaml:"pbo_seed"`

	// MaxSharpeFlag flags claimed Sharpe ratios above this level.
	MaxSharpeFlag float64 `yaml:"max_sharpe_flag"`

	// MaxReturnFlag and MinDrawdownCut together flag a total return
	// above the former with a drawdown magnitude below the latter.
	MaxReturnFlag  float64 `yaml:"max_return_flag"`
	MinDrawdownCut float64 `yaml:"min_drawdown_cut"`

	// MaxWinRateFlag flags win rates above this fraction.
	MaxWinRateFlag float64 `yaml:"max_win_rate_flag"`

	// TrialVariance overrides the variance of trial Sharpes used for
	// the expected-maximum benchmark. Zero selects the estimator
	// variance of the observed series.
	TrialVariance float64 `yaml:"trial_variance"`

	// Workers bounds the combination-scoring goroutines. Zero selects
	// one per available CPU.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the evaluator defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields in place.
func (c *Config) ApplyDefaults() {
	if c.MinSampleSize == 0 {
		c.MinSampleSize = DefaultMinSampleSize
	}
	if c.DSRThreshold == 0 {
		c.DSRThreshold = DefaultDSRThreshold
	}
	if c.SharpeTrigger == 0 {
		c.SharpeTrigger = DefaultSharpeTrigger
	}
	if c.PBOThreshold == 0 {
		c.PBOThreshold = DefaultPBOThreshold
	}
	if c.PBOBlocks == 0 {
		c.PBOBlocks = DefaultPBOBlocks
	}
	if c.PBOSampleSize == 0 {
		c.PBOSampleSize = DefaultPBOSampleSize
	}
	if c.PBOSeed == 0 {
		c.PBOSeed = DefaultPBOSeed
	}
	if c.MaxSharpeFlag == 0 {
		c.MaxSharpeFlag = DefaultMaxSharpeFlag
	}
	if c.MaxReturnFlag == 0 {
		c.MaxReturnFlag = DefaultMaxReturnFlag
	}
	if c.MinDrawdownCut == 0 {
		c.MinDrawdownCut = DefaultMinDrawdownCut
	}
	if c.MaxWinRateFlag == 0 {
		c.MaxWinRateFlag = DefaultMaxWinRateFlag
	}
}

// Validate rejects settings the evaluator cannot run with.
func (c *Config) Validate() error {
	if c.MinSampleSize < 2 {
		return fmt.Errorf("min_sample_size must be at least 2, got %d", c.MinSampleSize)
	}
	if c.DSRThreshold <= 0 || c.DSRThreshold > 1 {
		return fmt.Errorf("dsr_threshold must be in (0, 1], got %g", c.DSRThreshold)
	}
	if c.PBOThreshold <= 0 || c.PBOThreshold > 1 {
		return fmt.Errorf("pbo_threshold must be in (0, 1], got %g", c.PBOThreshold)
	}
	if c.PBOBlocks < 2 || c.PBOBlocks%2 != 0 {
		return fmt.Errorf("pbo_blocks must be even and at least 2, got %d", c.PBOBlocks)
	}
	if c.PBOSampleSize < 1 {
		return fmt.Errorf("pbo_sample_size must be positive, got %d", c.PBOSampleSize)
	}
	if c.MaxSharpeFlag <= 0 {
		return fmt.Errorf("max_sharpe_flag must be positive, got %g", c.MaxSharpeFlag)
	}
	if c.MaxReturnFlag <= 0 {
		return fmt.Errorf("max_return_flag must be positive, got %g", c.MaxReturnFlag)
	}
	if c.MinDrawdownCut <= 0 || c.MinDrawdownCut > 1 {
		return fmt.Errorf("min_drawdown_cut must be in (0, 1], got %g", c.MinDrawdownCut)
	}
	if c.MaxWinRateFlag <= 0 || c.MaxWinRateFlag > 1 {
		return fmt.Errorf("max_win_rate_flag must be in (0, 1], got %g", c.MaxWinRateFlag)
	}
	if c.TrialVariance < 0 {
		return fmt.Errorf("trial_variance cannot be negative, got %g", c.TrialVariance)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	return nil
}
