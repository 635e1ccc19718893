package idempotency

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type idempotencyMetricsCollection struct {
	eventCount metric.Int64Counter
}

var metrics idempotencyMetricsCollection

func init() {
	const name = "tavolo/idempotency"
	meter := otel.Meter(name)

	eventCount, err := meter.Int64Counter(
		"idempotency/event_count",
		metric.WithDescription("Events checked against the idempotency guard"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create event count metric: %w", err))
	}

	metrics = idempotencyMetricsCollection{
		eventCount: eventCount,
	}
}

func (m idempotencyMetricsCollection) recordEvent(ctx context.Context, duplicate bool) {
	m.eventCount.Add(ctx, 1, metric.WithAttributes(attribute.Bool("duplicate", duplicate)))
}
