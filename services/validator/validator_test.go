// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
)

const (
	biasedSource = "position = df['signal']\n"
	cleanSource  = "position = df['signal'].shift(1)\n"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	svc, err := NewService(DefaultServiceConfig())
	require.NoError(t, err)
	return svc
}

// passingMetrics is a modest single-variant record that clears every
// statistical gate.
func passingMetrics() *stats.BacktestMetrics {
	returns := make([]float64, 24)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = 0.02
		} else {
			returns[i] = -0.002
		}
	}
	return &stats.BacktestMetrics{
		Strategy:     "momentum_v1",
		Sharpe:       1.2,
		Returns:      returns,
		TrialCount:   5,
		VariantCount: 1,
		WinRate:      0.5,
		MaxDrawdown:  -0.12,
	}
}

func TestNewService_Defaults(t *testing.T) {
	svc, err := NewService(ServiceConfig{})
	require.NoError(t, err)

	assert.NotNil(t, svc.Engine())
	assert.Contains(t, svc.Languages(), "python")
}

func TestNewService_InvalidStatsConfig(t *testing.T) {
	_, err := NewService(ServiceConfig{Stats: &stats.Config{PBOBlocks: 7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pbo_blocks")
}

func TestNewService_PreparesHandBuiltRuleConfig(t *testing.T) {
	// A hand-built config has no compiled lookup sets yet; NewService
	// must prepare it before the engine sees it.
	svc, err := NewService(ServiceConfig{
		Rules: &rules.Config{DisabledRules: []string{"HS001"}},
	})
	require.NoError(t, err)

	rep, err := svc.ValidateCode(context.Background(), "strategy.py", []byte(biasedSource))
	require.NoError(t, err)
	assert.Empty(t, rep.Findings)
}

func TestService_ValidateCode(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.ValidateCode(context.Background(), "strategy.py", []byte(biasedSource))
	require.NoError(t, err)

	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, "strategy.py", rep.Path)
	require.Len(t, rep.Findings, 1)
	assert.Equal(t, "HS001", rep.Findings[0].RuleID)
	assert.True(t, rep.HasStop())
	assert.False(t, rep.Passed())
	assert.Nil(t, rep.Verdict)
}

func TestService_ValidateCode_Clean(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.ValidateCode(context.Background(), "strategy.py", []byte(cleanSource))
	require.NoError(t, err)

	assert.Empty(t, rep.Findings)
	assert.True(t, rep.Passed())
}

func TestService_ValidateCode_UnsupportedExtension(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateCode(context.Background(), "strategy.R", []byte("x <- 1\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "strategy.R")
}

func TestService_ValidateCode_SyntaxError(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.ValidateCode(context.Background(), "broken.py", []byte("pos = df['signal'\n"))
	require.Error(t, err)
	assert.True(t, ast.IsSyntaxError(err))
	assert.Nil(t, rep)
}

func TestService_ValidateFiles(t *testing.T) {
	svc := newTestService(t)
	dir := t.TempDir()

	biased := filepath.Join(dir, "biased.py")
	clean := filepath.Join(dir, "clean.py")
	require.NoError(t, os.WriteFile(biased, []byte(biasedSource), 0o600))
	require.NoError(t, os.WriteFile(clean, []byte(cleanSource), 0o600))

	reports, err := svc.ValidateFiles(context.Background(), []string{biased, clean})
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, biased, reports[0].Path, "reports keep input order")
	assert.True(t, reports[0].HasStop())
	assert.Equal(t, clean, reports[1].Path)
	assert.False(t, reports[1].HasStop())
}

func TestService_ValidateFiles_MissingFile(t *testing.T) {
	svc := newTestService(t)

	missing := filepath.Join(t.TempDir(), "absent.py")
	_, err := svc.ValidateFiles(context.Background(), []string{missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.py")
}

func TestService_ValidateFiles_Empty(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateFiles(context.Background(), nil)
	require.Error(t, err)
}

func TestService_FixCode(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.FixCode(context.Background(), "strategy.py", []byte(biasedSource))
	require.NoError(t, err)

	assert.True(t, res.Fixed)
	assert.Equal(t, cleanSource, string(res.Content))
	assert.Empty(t, res.Findings)
	assert.NotEmpty(t, res.Diff)
}

func TestService_FixCode_NothingToFix(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.FixCode(context.Background(), "strategy.py", []byte(cleanSource))
	require.NoError(t, err)

	assert.False(t, res.Fixed)
	assert.Equal(t, cleanSource, string(res.Content))
	assert.Empty(t, res.Diff)
}

func TestService_EvaluateMetrics(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.EvaluateMetrics(context.Background(), passingMetrics())
	require.NoError(t, err)

	require.NotNil(t, rep.Verdict)
	assert.True(t, rep.Verdict.Passed)
	assert.Equal(t, "momentum_v1", rep.Strategy)
	assert.Empty(t, rep.Path)
	require.NotNil(t, rep.Findings)
	assert.Empty(t, rep.Findings)
	assert.True(t, rep.Passed())
}

func TestService_EvaluateMetrics_Invalid(t *testing.T) {
	svc := newTestService(t)

	m := passingMetrics()
	m.WinRate = 1.5
	_, err := svc.EvaluateMetrics(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "win_rate")
}

func TestService_Run(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.Run(context.Background(), "strategy.py", []byte(cleanSource), passingMetrics())
	require.NoError(t, err)

	assert.Empty(t, rep.Findings)
	require.NotNil(t, rep.Verdict)
	assert.True(t, rep.Verdict.Passed)
	assert.Equal(t, "momentum_v1", rep.Strategy)
	assert.Equal(t, "strategy.py", rep.Path)
	assert.True(t, rep.Passed())
}

func TestService_Run_StopFindingFailsGate(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.Run(context.Background(), "strategy.py", []byte(biasedSource), passingMetrics())
	require.NoError(t, err)

	assert.True(t, rep.HasStop())
	require.NotNil(t, rep.Verdict)
	assert.True(t, rep.Verdict.Passed, "metrics alone pass")
	assert.False(t, rep.Passed(), "the stop finding fails the gate")
}

func TestService_Run_WithoutMetrics(t *testing.T) {
	svc := newTestService(t)

	rep, err := svc.Run(context.Background(), "strategy.py", []byte(cleanSource), nil)
	require.NoError(t, err)

	assert.Nil(t, rep.Verdict)
	assert.Empty(t, rep.Strategy)
	assert.True(t, rep.Passed())
}

func TestService_Run_MetricsError(t *testing.T) {
	svc := newTestService(t)

	m := passingMetrics()
	m.Sharpe = 0
	m.Returns = []float64{0.01}
	rep, err := svc.Run(context.Background(), "strategy.py", []byte(cleanSource), m)
	require.Error(t, err)
	assert.Nil(t, rep)
}

func TestService_NilContext(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.ValidateCode(nil, "strategy.py", []byte(cleanSource)) //nolint:staticcheck
	require.Error(t, err)

	_, err = svc.ValidateFiles(nil, []string{"strategy.py"}) //nolint:staticcheck
	require.Error(t, err)

	_, err = svc.FixCode(nil, "strategy.py", []byte(cleanSource)) //nolint:staticcheck
	require.Error(t, err)

	_, err = svc.EvaluateMetrics(nil, passingMetrics()) //nolint:staticcheck
	require.Error(t, err)

	_, err = svc.Run(nil, "strategy.py", []byte(cleanSource), nil) //nolint:staticcheck
	require.Error(t, err)
}
