// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validator orchestrates bias analysis and backtest evaluation
// behind one stateless facade.
//
// The facade wires the parser registry, flow analysis, rule engine,
// autofix transformer, and statistics evaluator together; the HTTP
// surface and the CLI both call it. It holds no per-run state, and
// aggregation across runs belongs to the caller (see the ledger
// package).
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hindsightlabs/hindsight/services/validator/ast"
	"github.com/hindsightlabs/hindsight/services/validator/autofix"
	"github.com/hindsightlabs/hindsight/services/validator/flow"
	"github.com/hindsightlabs/hindsight/services/validator/report"
	"github.com/hindsightlabs/hindsight/services/validator/rules"
	"github.com/hindsightlabs/hindsight/services/validator/stats"
)

// ServiceConfig configures the validator service.
type ServiceConfig struct {
	// Rules is the rule configuration, usually from rules.Load.
	// Nil selects the built-in defaults.
	Rules *rules.Config

	// Stats is the statistical evaluation configuration.
	// Nil selects the defaults.
	Stats *stats.Config

	// Workers bounds concurrent unit analysis in ValidateFiles.
	// Default: runtime.GOMAXPROCS(0).
	Workers int

	// Logger receives operational logs. Nil disables them.
	Logger *slog.Logger
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Workers: runtime.GOMAXPROCS(0),
	}
}

// Service is the validator facade.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	registry  *ast.ParserRegistry
	engine    *rules.Engine
	evaluator *stats.Evaluator
	workers   int
	logger    *slog.Logger
}

// NewService creates a validator service.
//
// Description:
//
//	Prepares the rule and statistics configurations, builds the rule
//	engine and evaluator, and registers the default parsers.
//
// Inputs:
//
//	cfg - Service configuration. Zero value selects all defaults.
//
// Outputs:
//
//	*Service - The configured service.
//	error - Non-nil if a supplied configuration is invalid.
func NewService(cfg ServiceConfig) (*Service, error) {
	rulesCfg := cfg.Rules
	if rulesCfg == nil {
		rulesCfg = rules.DefaultConfig()
	} else {
		rulesCfg.ApplyDefaults()
		if err := rulesCfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid rule config: %w", err)
		}
	}

	evaluator, err := stats.NewEvaluator(cfg.Stats)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Service{
		registry:  ast.DefaultRegistry(),
		engine:    rules.NewEngine(rulesCfg),
		evaluator: evaluator,
		workers:   workers,
		logger:    cfg.Logger,
	}, nil
}

// Engine returns the rule engine.
//
// The engine is shared with the config watcher, which swaps rule
// configuration on the live service via SetConfig.
func (s *Service) Engine() *rules.Engine {
	return s.engine
}

// Languages returns the language names the service can analyze.
func (s *Service) Languages() []string {
	return s.registry.Languages()
}

// ValidateCode analyzes one source unit and assembles a report.
//
// Description:
//
//	Parses the unit, builds its dependency graph, evaluates the rule
//	catalog, and wraps the findings in a report. The source is never
//	modified.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	path - The unit's path; selects the parser by extension.
//	source - Raw source bytes.
//
// Outputs:
//
//	*report.Report - Findings in (line, rule id) order, no verdict.
//	error - ast.ErrUnsupportedLanguage, a located *ast.ParseError, or
//	        context cancellation.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) ValidateCode(ctx context.Context, path string, source []byte) (*report.Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	_, findings, err := s.analyze(ctx, path, source)
	if err != nil {
		return nil, err
	}

	rep := report.New(path, findings, nil)
	s.logReport(rep)
	return rep, nil
}

// ValidateFiles analyzes several files from disk concurrently.
//
// Description:
//
//	Reads and validates each path with a bounded worker pool. Reports
//	come back in input order. The first failure cancels the remaining
//	work and is returned.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	paths - Files to analyze. Must not be empty.
//
// Outputs:
//
//	[]*report.Report - One report per path, in input order.
//	error - Read, parse, or evaluation failure for any path.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) ValidateFiles(ctx context.Context, paths []string) ([]*report.Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to validate")
	}

	reports := make([]*report.Report, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range paths {
		g.Go(func() error {
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			rep, err := s.ValidateCode(gctx, path, source)
			if err != nil {
				return err
			}
			reports[i] = rep
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// FixCode analyzes a unit and applies one rewrite pass.
//
// Description:
//
//	Runs the same analysis as ValidateCode, then hands the findings to
//	the autofix transformer. The returned result carries the rewritten
//	source, a unified diff, and the findings that remain after
//	re-analysis. The input slice is never modified; writing the fixed
//	content anywhere is the caller's decision.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	path - The unit's path; selects the parser by extension.
//	source - Raw source bytes.
//
// Outputs:
//
//	*autofix.Result - Rewrite outcome, including remaining findings.
//	error - Analysis failure, *autofix.OverlapError, or
//	        *autofix.FixVerificationError.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) FixCode(ctx context.Context, path string, source []byte) (*autofix.Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	parser, findings, err := s.analyze(ctx, path, source)
	if err != nil {
		return nil, err
	}

	fixer, err := autofix.NewFixer(parser, s.engine)
	if err != nil {
		return nil, err
	}

	res, err := fixer.Fix(ctx, path, source, findings)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Debug("fix pass completed",
			slog.String("path", path),
			slog.Int("applied", len(res.Applied)),
			slog.Int("remaining", len(res.Findings)))
	}
	return res, nil
}

// EvaluateMetrics judges a backtest metrics record.
//
// Description:
//
//	Runs the statistical evaluation and wraps the verdict in a report
//	with no findings. The report's Strategy echoes the record's
//	identifier.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	metrics - The backtest metrics record. Must not be nil.
//
// Outputs:
//
//	*report.Report - Carries only the verdict.
//	error - Validation failure, *stats.InsufficientDataError, or
//	        *stats.CancelledError.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) EvaluateMetrics(ctx context.Context, metrics *stats.BacktestMetrics) (*report.Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	verdict, err := s.evaluator.Evaluate(ctx, metrics)
	if err != nil {
		return nil, err
	}

	rep := report.New("", nil, verdict)
	rep.Strategy = metrics.Strategy
	s.logReport(rep)
	return rep, nil
}

// Run analyzes a unit and judges its backtest metrics in one report.
//
// Description:
//
//	The full pipeline: code analysis exactly as ValidateCode, then,
//	when a metrics record is supplied, statistical evaluation exactly
//	as EvaluateMetrics. Findings and verdict land in a single report
//	so the policy gate reads one record per run.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing. Must not be nil.
//	path - The unit's path; selects the parser by extension.
//	source - Raw source bytes.
//	metrics - Optional backtest metrics. Nil skips evaluation.
//
// Outputs:
//
//	*report.Report - Findings plus verdict (verdict nil when metrics
//	                 were not supplied).
//	error - The first failure from either half of the pipeline.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Run(ctx context.Context, path string, source []byte, metrics *stats.BacktestMetrics) (*report.Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}

	_, findings, err := s.analyze(ctx, path, source)
	if err != nil {
		return nil, err
	}

	var verdict *stats.Verdict
	var strategy string
	if metrics != nil {
		verdict, err = s.evaluator.Evaluate(ctx, metrics)
		if err != nil {
			return nil, err
		}
		strategy = metrics.Strategy
	}

	rep := report.New(path, findings, verdict)
	rep.Strategy = strategy
	s.logReport(rep)
	return rep, nil
}

// analyze runs the shared parse → graph → rules pipeline.
func (s *Service) analyze(ctx context.Context, path string, source []byte) (ast.Parser, []rules.Finding, error) {
	parser, err := s.parserFor(path)
	if err != nil {
		return nil, nil, err
	}

	unit, err := parser.Parse(ctx, source, path)
	if err != nil {
		return nil, nil, err
	}

	findings, err := s.engine.Evaluate(ctx, flow.Build(unit))
	if err != nil {
		return nil, nil, err
	}
	return parser, findings, nil
}

// parserFor selects a parser by file extension.
func (s *Service) parserFor(path string) (ast.Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := s.registry.GetByExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ast.ErrUnsupportedLanguage)
	}
	return parser, nil
}

func (s *Service) logReport(rep *report.Report) {
	if s.logger == nil {
		return
	}
	stops, warnings := rep.Counts()
	s.logger.Debug("report assembled",
		slog.String("report_id", rep.ID),
		slog.String("path", rep.Path),
		slog.Int("stops", stops),
		slog.Int("warnings", warnings),
		slog.Bool("passed", rep.Passed()))
}
