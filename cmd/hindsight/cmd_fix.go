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
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator"
	"github.com/spf13/cobra"
)

func runFix(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	svc, err := buildService(0)
	if err != nil {
		commandError(fixJSON, "Failed to configure service", err)
	}

	path := args[0]
	source, err := os.ReadFile(path)
	if err != nil {
		commandError(fixJSON, "Failed to read file", err)
	}

	res, err := svc.FixCode(ctx, path, source)
	if err != nil {
		commandError(fixJSON, "Fix failed", err)
	}

	if fixWrite && res.Fixed {
		mode := fs.FileMode(0o644)
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode()
		}
		if err := os.WriteFile(path, res.Content, mode); err != nil {
			commandError(fixJSON, "Failed to write fixed source", err)
		}
	}

	if fixJSON {
		encodeJSON(validator.FixCodeResponse{
			Result:  res,
			Content: string(res.Content),
		})
	} else {
		outputFixText(res.Fixed, res.Diff, len(res.Applied), res.Path)
		for _, f := range res.Findings {
			ux.Finding(strings.ToUpper(f.Severity.String()), f.RuleID, res.Path, f.LineStart, f.Message)
		}
	}

	// Findings that survive the rewrite still gate the exit code.
	for _, f := range res.Findings {
		if f.IsStop() {
			os.Exit(ExitFindings)
		}
	}
	os.Exit(ExitClean)
}

func outputFixText(fixed bool, diff string, applied int, path string) {
	if !fixed {
		ux.Info(fmt.Sprintf("Nothing to fix in %s", path))
		return
	}

	ux.Success(fmt.Sprintf("Applied %d fix(es) to %s", applied, path))
	if diff != "" {
		fmt.Println(diff)
	}
	if !fixWrite {
		ux.Muted("Re-run with --write to apply the rewrite in place.")
	}
}
