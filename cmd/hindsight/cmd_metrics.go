// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
	"github.com/spf13/cobra"
)

func runMetrics(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		commandError(metricsJSON, "Failed to read metrics file", err)
	}

	var m stats.BacktestMetrics
	if err := json.Unmarshal(raw, &m); err != nil {
		commandError(metricsJSON, "Failed to parse metrics file", err)
	}
	if err := m.Validate(); err != nil {
		commandError(metricsJSON, "Invalid metrics record", err)
	}

	svc, err := buildService(0)
	if err != nil {
		commandError(metricsJSON, "Failed to configure service", err)
	}

	rep, err := svc.EvaluateMetrics(ctx, &m)
	if err != nil {
		commandError(metricsJSON, "Evaluation failed", err)
	}

	if metricsJSON {
		encodeJSON(validator.ReportResponse{
			Report:  rep,
			Passed:  rep.Passed(),
			HasStop: rep.HasStop(),
		})
	} else {
		outputMetricsText(&m, rep.Verdict)
	}

	if rep.Verdict.Passed {
		os.Exit(ExitClean)
	}
	os.Exit(ExitFindings)
}

func outputMetricsText(m *stats.BacktestMetrics, v *stats.Verdict) {
	ux.Title(fmt.Sprintf("Backtest gate: %s", m.Strategy))
	ux.Info(fmt.Sprintf("t-stat: %.2f observed, %.2f required after %d trial(s)",
		v.ObservedTStat, v.RequiredTStat, m.TrialCount))
	ux.Info(fmt.Sprintf("deflated Sharpe: %.3f over %d periods", v.DeflatedSharpe, v.SampleSize))
	if v.PBOComputed {
		ux.Info(fmt.Sprintf("overfit probability: %.3f across %d split(s)", v.PBO, v.PBOCombinations))
	}
	if v.LowConfidence {
		ux.Warning("Short sample; the deflation estimate used the normal fallback")
	}
	for _, flag := range v.RedFlags {
		ux.Warning(fmt.Sprintf("%s: %s", flag.Code, flag.Message))
	}

	ux.Verdict(v.Passed, verdictReason(m, v))
}

// verdictReason names the first check the verdict failed, mirroring
// the evaluator's gate order.
func verdictReason(m *stats.BacktestMetrics, v *stats.Verdict) string {
	cfg := stats.DefaultConfig()

	if v.Passed {
		return fmt.Sprintf("t-stat %.2f clears the %.2f bar; deflated Sharpe %.3f",
			v.ObservedTStat, v.RequiredTStat, v.DeflatedSharpe)
	}
	if v.ObservedTStat < v.RequiredTStat {
		return fmt.Sprintf("t-stat %.2f is below the %.2f required after %d trial(s)",
			v.ObservedTStat, v.RequiredTStat, m.TrialCount)
	}
	if m.Sharpe > cfg.SharpeTrigger && v.DeflatedSharpe < cfg.DSRThreshold {
		return fmt.Sprintf("deflated Sharpe %.3f is below the %.2f confidence bar",
			v.DeflatedSharpe, cfg.DSRThreshold)
	}
	if v.PBOComputed && v.PBO >= cfg.PBOThreshold {
		return fmt.Sprintf("overfit probability %.3f crosses %.2f", v.PBO, cfg.PBOThreshold)
	}
	if len(v.RedFlags) > 0 {
		return fmt.Sprintf("%d plausibility red flag(s) raised", len(v.RedFlags))
	}
	return "statistical checks failed"
}
