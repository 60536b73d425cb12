// Copyright (C) 2025 Hindsight Labs (oss@hindsightlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stats

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
	tracer = otel.Tracer("hindsight.stats")
	meter  = otel.Meter("hindsight.stats")

	evaluateLatency metric.Float64Histogram
	evaluateTotal   metric.Int64Counter
	pboCombinations metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		evaluateLatency, metricsErr = meter.Float64Histogram(
			"stats_evaluate_duration_seconds",
			metric.WithDescription("Latency of statistical verdict evaluation"),
			metric.WithUnit("s"),
		)
		if metricsErr != nil {
			return
		}

		evaluateTotal, metricsErr = meter.Int64Counter(
			"stats_evaluate_total",
			metric.WithDescription("Total verdict evaluations, by outcome"),
		)
		if metricsErr != nil {
			return
		}

		pboCombinations, metricsErr = meter.Int64Histogram(
			"stats_pbo_combinations",
			metric.WithDescription("Block combinations scored per overfit estimate"),
		)
	})
	return metricsErr
}

func recordEvaluateMetrics(ctx context.Context, duration time.Duration, success, passed bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.Bool("success", success),
		attribute.Bool("passed", passed),
	)
	evaluateLatency.Record(ctx, duration.Seconds(), attrs)
	evaluateTotal.Add(ctx, 1, attrs)
}

func recordPBOMetrics(ctx context.Context, combinations int, sampled bool) {
	if err := initMetrics(); err != nil {
		return
	}
	pboCombinations.Record(ctx, int64(combinations), metric.WithAttributes(
		attribute.Bool("sampled", sampled),
	))
}

func startEvaluateSpan(ctx context.Context, strategy string, trials, sampleSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Evaluator.Evaluate",
		trace.WithAttributes(
			attribute.String("stats.strategy", strategy),
			attribute.Int("stats.trials", trials),
			attribute.Int("stats.sample_size", sampleSize),
		),
	)
}

func setEvaluateSpanResult(span trace.Span, v *Verdict) {
	span.SetAttributes(
		attribute.Bool("stats.passed", v.Passed),
		attribute.Bool("stats.pbo_computed", v.PBOComputed),
		attribute.Int("stats.red_flags", len(v.RedFlags)),
	)
}
