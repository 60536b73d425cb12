// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	personalityLevel string // UX personality level (full/minimal/machine)
	rulesConfigPath  string // Rule configuration YAML, empty means defaults

	// validate flags
	validateJSON    bool
	validateQuiet   bool
	validateWorkers int

	// fix flags
	fixJSON  bool
	fixWrite bool

	// metrics flags
	metricsJSON bool

	// rules flags
	rulesJSON bool

	// serve flags
	serveAddr       string
	serveLedgerPath string
	serveDebug      bool
	serveRateLimit  float64
	serveRateBurst  int
	serveNoMetrics  bool

	rootCmd = &cobra.Command{
		Use:   "hindsight",
		Short: "Catch lookahead bias and overfit backtests before they trade",
		Long: `Hindsight analyzes quantitative strategy source for temporal bias
				defects and judges backtest metrics against multiple-testing
				statistics, so impossible results are caught before capital
				is allocated to them.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Initialize UX personality from flag or environment
			if personalityLevel != "" {
				ux.SetPersonalityLevel(ux.ParsePersonalityLevel(personalityLevel))
			} else {
				ux.InitPersonality()
			}
		},
	}

	// --- Analysis ---
	validateCmd = &cobra.Command{
		Use:   "validate [path...]",
		Short: "Analyze strategy source files for temporal bias defects",
		Args:  cobra.MinimumNArgs(1),
		Run:   runValidate, // Defined in cmd_validate.go
	}

	fixCmd = &cobra.Command{
		Use:   "fix [file]",
		Short: "Rewrite the fixable findings in one file and show the diff",
		Args:  cobra.ExactArgs(1),
		Run:   runFix, // Defined in cmd_fix.go
	}

	// --- Statistical gate ---
	metricsCmd = &cobra.Command{
		Use:   "metrics [metrics.json]",
		Short: "Judge a backtest metrics record against the statistical gate",
		Args:  cobra.ExactArgs(1),
		Run:   runMetrics, // Defined in cmd_metrics.go
	}

	// --- Catalog ---
	rulesCmd = &cobra.Command{
		Use:   "rules",
		Short: "List the rule catalog with any config overrides applied",
		Run:   runRules, // Defined in cmd_rules.go
	}

	// --- Service ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the validator HTTP service",
		Run:   runServe, // Defined in cmd_serve.go
	}
)

// init runs when the Go program starts
func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full (default), minimal, or machine (scripting)")
	rootCmd.PersistentFlags().StringVar(&rulesConfigPath, "config", "",
		"Path to a rule configuration YAML (built-in defaults when omitted)")

	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output as JSON")
	validateCmd.Flags().BoolVar(&validateQuiet, "quiet", false, "Only exit code, no output")
	validateCmd.Flags().IntVar(&validateWorkers, "workers", 0,
		"Parallel analysis workers (0 = GOMAXPROCS)")

	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVar(&fixJSON, "json", false, "Output as JSON")
	fixCmd.Flags().BoolVar(&fixWrite, "write", false, "Write the fixed source back to the file")

	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveLedgerPath, "ledger", "",
		"Directory for the append-only run ledger (disabled when omitted)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode and request logging")
	serveCmd.Flags().Float64Var(&serveRateLimit, "rate-limit", 20,
		"Per-client sustained requests per second (0 disables limiting)")
	serveCmd.Flags().IntVar(&serveRateBurst, "rate-burst", 40, "Per-client burst allowance")
	serveCmd.Flags().BoolVar(&serveNoMetrics, "no-metrics", false,
		"Disable the Prometheus /metrics endpoint")
}
