package artifact

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("gocontext.artifact")

var (
	cacheHits      metric.Int64Counter
	cacheMisses    metric.Int64Counter
	cacheEvictions metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		cacheHits, err = meter.Int64Counter(
			"artifact_cache_hits_total",
			metric.WithDescription("Total number of artifact cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheMisses, err = meter.Int64Counter(
			"artifact_cache_misses_total",
			metric.WithDescription("Total number of artifact cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		cacheEvictions, err = meter.Int64Counter(
			"artifact_cache_evictions_total",
			metric.WithDescription("Total number of capacity evictions"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCacheHit(ctx context.Context, table string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

func recordCacheMiss(ctx context.Context, table string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheMisses.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}

func recordCacheEviction(ctx context.Context, table string) {
	if err := initMetrics(); err != nil {
		return
	}
	cacheEvictions.Add(ctx, 1, metric.WithAttributes(attribute.String("table", table)))
}
