package ratelimiting

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type ratelimitingMetricsCollection struct {
	decisionCount metric.Int64Counter
	failOpenCount metric.Int64Counter
}

var metrics ratelimitingMetricsCollection

func init() {
	const name = "tavolo/ratelimiting"
	meter := otel.Meter(name)

	decisionCount, err := meter.Int64Counter(
		"ratelimiting/decision_count",
		metric.WithDescription("Rate limit decisions made with a working counter store"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create decision count metric: %w", err))
	}

	failOpenCount, err := meter.Int64Counter(
		"ratelimiting/fail_open_count",
		metric.WithDescription("Requests allowed because the counter store was missing or failing"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create fail open count metric: %w", err))
	}

	metrics = ratelimitingMetricsCollection{
		decisionCount: decisionCount,
		failOpenCount: failOpenCount,
	}
}

func (m ratelimitingMetricsCollection) recordDecision(ctx context.Context, limiter string, allowed bool) {
	m.decisionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter", limiter),
		attribute.Bool("allowed", allowed),
	))
}

func (m ratelimitingMetricsCollection) recordFailOpen(ctx context.Context, limiter string, reason string) {
	m.failOpenCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter", limiter),
		attribute.String("reason", reason),
	))
}
