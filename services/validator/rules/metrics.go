// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("hindsight.rules")
	meter  = otel.Meter("hindsight.rules")

	evaluateLatency metric.Float64Histogram
	evaluateTotal   metric.Int64Counter
	findingsEmitted metric.Int64Histogram
	configReloads   metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		evaluateLatency, metricsErr = meter.Float64Histogram(
			"rules_evaluate_duration_seconds",
			metric.WithDescription("Latency of rule evaluation over a flow graph"),
			metric.WithUnit("s"),
		)
		if metricsErr != nil {
			return
		}

		evaluateTotal, metricsErr = meter.Int64Counter(
			"rules_evaluate_total",
			metric.WithDescription("Total rule evaluations"),
		)
		if metricsErr != nil {
			return
		}

		findingsEmitted, metricsErr = meter.Int64Histogram(
			"rules_findings_emitted",
			metric.WithDescription("Findings emitted per evaluation"),
		)
		if metricsErr != nil {
			return
		}

		configReloads, metricsErr = meter.Int64Counter(
			"rules_config_reloads_total",
			metric.WithDescription("Rule config hot reloads, by outcome"),
		)
	})
	return metricsErr
}

func recordEvaluateMetrics(ctx context.Context, duration time.Duration, findings, stops int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("has_stop", stops > 0),
	)
	evaluateLatency.Record(ctx, duration.Seconds(), attrs)
	evaluateTotal.Add(ctx, 1, attrs)
	findingsEmitted.Record(ctx, int64(findings), attrs)
}

func recordConfigReload(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	configReloads.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

func startEvaluateSpan(ctx context.Context, path string, ruleCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Engine.Evaluate",
		trace.WithAttributes(
			attribute.String("rules.path", path),
			attribute.Int("rules.count", ruleCount),
		),
	)
}

func setEvaluateSpanResult(span trace.Span, findings, stops int) {
	span.SetAttributes(
		attribute.Int("rules.findings", findings),
		attribute.Int("rules.stops", stops),
	)
}
