// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command hindsight validates quantitative strategy code and backtest
// results before they reach a trading decision.
//
// Hindsight provides:
//   - Static analysis of strategy source for lookahead bias and data
//     leakage (unlagged signals, centered windows, leaky resampling)
//   - Automatic rewrites for the mechanical defect classes, with diffs
//   - Statistical evaluation of backtest metrics: trial-adjusted
//     t-stat thresholds, the deflated Sharpe ratio, and overfit
//     probability via combinatorial cross-validation
//   - An HTTP service exposing the same pipeline, with an optional
//     append-only run ledger
//
// Usage:
//
//	hindsight validate ./strategies
//	hindsight fix strategy.py --write
//	hindsight metrics backtest.json
//	hindsight rules --config hindsight.yaml
//	hindsight serve --ledger ~/.hindsight/ledger
//
// Exit codes for validate, fix, and metrics:
//
//	0 = Clean (no blocking findings, verdict passed)
//	1 = Blocking findings or a failed verdict
//	2 = Error (bad input, unparsable source)
package main

import (
	"log"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
