// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"

	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
	"github.com/spf13/cobra"
)

// ruleListing is one catalog row with config overrides applied.
type ruleListing struct {
	ID       string         `json:"id"`
	Category rules.Category `json:"category"`
	Severity string         `json:"severity"`
	Enabled  bool           `json:"enabled"`
	Fixable  bool           `json:"fixable"`
	Summary  string         `json:"summary"`
}

func runRules(cmd *cobra.Command, args []string) {
	cfg := rules.DefaultConfig()
	if rulesConfigPath != "" {
		loaded, err := rules.Load(rulesConfigPath)
		if err != nil {
			commandError(rulesJSON, "Failed to load rule config", err)
		}
		cfg = loaded
	}

	listings := make([]ruleListing, 0)
	for _, r := range rules.Catalog() {
		listings = append(listings, ruleListing{
			ID:       r.ID,
			Category: r.Category,
			Severity: cfg.SeverityFor(r.ID, r.Severity).String(),
			Enabled:  cfg.RuleEnabled(r.ID),
			Fixable:  r.Fixable,
			Summary:  r.Summary,
		})
	}

	if rulesJSON {
		encodeJSON(listings)
	} else {
		outputRulesText(listings)
	}
	os.Exit(ExitClean)
}

func outputRulesText(listings []ruleListing) {
	ux.Title("Rule catalog")
	for _, r := range listings {
		line := fmt.Sprintf("%-7s %-5s %-15s %s", r.ID, r.Severity, r.Category, r.Summary)
		if r.Fixable {
			line += " (fixable)"
		}
		if !r.Enabled {
			ux.Muted(line + "  [disabled]")
			continue
		}
		ux.Info(line)
	}
}
