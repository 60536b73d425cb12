// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package autofix

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
	tracer = otel.Tracer("hindsight.autofix")
	meter  = otel.Meter("hindsight.autofix")

	fixLatency   metric.Float64Histogram
	fixTotal     metric.Int64Counter
	editsApplied metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		fixLatency, metricsErr = meter.Float64Histogram(
			"autofix_duration_seconds",
			metric.WithDescription("Latency of a fix pass including verification"),
			metric.WithUnit("s"),
		)
		if metricsErr != nil {
			return
		}

		fixTotal, metricsErr = meter.Int64Counter(
			"autofix_total",
			metric.WithDescription("Total fix passes, by outcome"),
		)
		if metricsErr != nil {
			return
		}

		editsApplied, metricsErr = meter.Int64Histogram(
			"autofix_edits_applied",
			metric.WithDescription("Edits applied per successful fix pass"),
		)
	})
	return metricsErr
}

func recordFixMetrics(ctx context.Context, duration time.Duration, applied int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
	)
	fixLatency.Record(ctx, duration.Seconds(), attrs)
	fixTotal.Add(ctx, 1, attrs)
	if success {
		editsApplied.Record(ctx, int64(applied), attrs)
	}
}

func startFixSpan(ctx context.Context, path string, findingCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Fixer.Fix",
		trace.WithAttributes(
			attribute.String("autofix.path", path),
			attribute.Int("autofix.findings", findingCount),
		),
	)
}

func setFixSpanResult(span trace.Span, applied, remaining int) {
	span.SetAttributes(
		attribute.Int("autofix.applied", applied),
		attribute.Int("autofix.remaining", remaining),
	)
}
