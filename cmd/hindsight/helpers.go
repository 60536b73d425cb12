// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hindsightlabs/hindsight/pkg/ux"
	"github.com/hindsightlabs/hindsight/services/validator"
	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
)

// Exit codes shared by validate, fix, and metrics.
const (
	ExitClean    = 0
	ExitFindings = 1
	ExitError    = 2
)

// buildService assembles a validator service from the global --config
// flag. A zero workers value keeps the service default.
func buildService(workers int) (*validator.Service, error) {
	cfg := validator.DefaultServiceConfig()
	if workers > 0 {
		cfg.Workers = workers
	}
	if rulesConfigPath != "" {
		rc, err := rules.Load(rulesConfigPath)
		if err != nil {
			return nil, err
		}
		cfg.Rules = rc
	}
	return validator.NewService(cfg)
}

// collectSources expands the command arguments into source files.
//
// Files are taken as given; directories are walked recursively and
// filtered to extensions a registered parser claims, so stray assets
// under a strategy tree do not abort the run.
func collectSources(args []string) ([]string, error) {
	registry := ast.DefaultRegistry()

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}

		walkErr := filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // Continue on error
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if _, ok := registry.GetByExtension(ext); ok {
				files = append(files, path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return files, nil
}

// commandError reports a fatal command error and exits with ExitError.
func commandError(jsonOut bool, msg string, err error) {
	text := msg
	if err != nil {
		text = fmt.Sprintf("%s: %v", msg, err)
	}

	if jsonOut {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(map[string]interface{}{
			"success": false,
			"error":   text,
		})
	} else {
		ux.Error(text)
	}
	os.Exit(ExitError)
}

// encodeJSON writes v to stdout as indented JSON.
func encodeJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(ExitError)
	}
}
