package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type cacheMetricsCollection struct {
	lookupCount        metric.Int64Counter
	producerCallCount  metric.Int64Counter
	producerErrorCount metric.Int64Counter
	invalidatedCount   metric.Int64Counter
}

var metrics cacheMetricsCollection

func init() {
	const name = "tavolo/cache"
	meter := otel.Meter(name)

	lookupCount, err := meter.Int64Counter(
		"cache/lookup_count",
		metric.WithDescription("Cache lookups by result"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create lookup count metric: %w", err))
	}

	producerCallCount, err := meter.Int64Counter(
		"cache/producer_call_count",
		metric.WithDescription("Number of producer calls made to fill the cache"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create producer call count metric: %w", err))
	}

	producerErrorCount, err := meter.Int64Counter(
		"cache/producer_error_count",
		metric.WithDescription("Number of producer calls that failed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create producer error count metric: %w", err))
	}

	invalidatedCount, err := meter.Int64Counter(
		"cache/invalidated_count",
		metric.WithDescription("Number of cache entries removed by invalidation"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create invalidated count metric: %w", err))
	}

	metrics = cacheMetricsCollection{
		lookupCount:        lookupCount,
		producerCallCount:  producerCallCount,
		producerErrorCount: producerErrorCount,
		invalidatedCount:   invalidatedCount,
	}
}

func (m cacheMetricsCollection) recordLookup(ctx context.Context, result string) {
	m.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m cacheMetricsCollection) recordProducerCall(ctx context.Context) {
	m.producerCallCount.Add(ctx, 1)
}

func (m cacheMetricsCollection) recordProducerError(ctx context.Context) {
	m.producerErrorCount.Add(ctx, 1)
}

func (m cacheMetricsCollection) recordInvalidated(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.invalidatedCount.Add(ctx, int64(count))
}
