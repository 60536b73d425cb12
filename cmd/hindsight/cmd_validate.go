// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator"
	"github.com/hindsightlabs/hindsight/services/validator/report"
	"github.com/spf13/cobra"
)

// validateResult is the --json output shape.
type validateResult struct {
	Reports []validator.ReportResponse `json:"reports"`
	Files   int                        `json:"files"`
	Stops   int                        `json:"stops"`
	Warns   int                        `json:"warns"`
}

func runValidate(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc, err := buildService(validateWorkers)
	if err != nil {
		commandError(validateJSON, "Failed to configure service", err)
	}

	files, err := collectSources(args)
	if err != nil {
		commandError(validateJSON, "Failed to collect files", err)
	}
	if len(files) == 0 {
		commandError(validateJSON,
			fmt.Sprintf("No supported source files under %s", strings.Join(args, ", ")), nil)
	}

	reports, err := svc.ValidateFiles(ctx, files)
	if err != nil {
		commandError(validateJSON, "Validation failed", err)
	}

	stops, warns := 0, 0
	for _, rep := range reports {
		s, w := rep.Counts()
		stops += s
		warns += w
	}

	if !validateQuiet {
		if validateJSON {
			outputValidateJSON(reports, stops, warns)
		} else {
			outputValidateText(reports, stops, warns)
		}
	}

	if stops > 0 {
		os.Exit(ExitFindings)
	}
	os.Exit(ExitClean)
}

func outputValidateJSON(reports []*report.Report, stops, warns int) {
	result := validateResult{
		Reports: make([]validator.ReportResponse, 0, len(reports)),
		Files:   len(reports),
		Stops:   stops,
		Warns:   warns,
	}
	for _, rep := range reports {
		result.Reports = append(result.Reports, validator.ReportResponse{
			Report:  rep,
			Passed:  rep.Passed(),
			HasStop: rep.HasStop(),
		})
	}
	encodeJSON(result)
}

func outputValidateText(reports []*report.Report, stops, warns int) {
	fixable := 0
	for _, rep := range reports {
		for _, f := range rep.Findings {
			if f.Fix != nil {
				fixable++
			}
			ux.Finding(strings.ToUpper(f.Severity.String()), f.RuleID, rep.Path, f.LineStart, f.Message)
		}
	}

	if stops == 0 && warns == 0 {
		ux.Success(fmt.Sprintf("%d file(s) clean", len(reports)))
		return
	}
	ux.Summary(stops, warns, fixable)
	if fixable > 0 {
		ux.Muted("Run 'hindsight fix <file>' to rewrite the fixable findings.")
	}
}
