package scheduler

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
	tracer = otel.Tracer("gocontext.scheduler")
	meter  = otel.Meter("gocontext.scheduler")
)

var (
	analysisLatency       metric.Float64Histogram
	analysisQueueDelay    metric.Float64Histogram
	analysisTotal         metric.Int64Counter
	analysisCancellations metric.Int64Counter
	analysisFailures      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"analysis_duration_seconds",
			metric.WithDescription("Duration of analysis pipeline runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisQueueDelay, err = meter.Float64Histogram(
			"analysis_queue_delay_seconds",
			metric.WithDescription("Time from scheduling a job to the start of its run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"analysis_runs_total",
			metric.WithDescription("Total number of completed analysis runs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisCancellations, err = meter.Int64Counter(
			"analysis_cancellations_total",
			metric.WithDescription("Total number of superseded or cancelled jobs"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisFailures, err = meter.Int64Counter(
			"analysis_failures_total",
			metric.WithDescription("Total number of runs that failed or panicked"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalyzeSpan creates a span for one pipeline run
func startAnalyzeSpan(ctx context.Context, uri string, version int32) (context.Context, trace.Span) {
	return tracer.Start(ctx, "scheduler.analyze",
		trace.WithAttributes(
			attribute.String("document.uri", uri),
			attribute.Int("document.version", int(version)),
		),
	)
}

func recordAnalysis(ctx context.Context, duration time.Duration, cached bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("cached", cached))
	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)
}

func recordQueueDelay(ctx context.Context, priority Priority, delay time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisQueueDelay.Record(ctx, delay.Seconds(), metric.WithAttributes(attribute.String("priority", priority.String())))
}

func recordCancellation(ctx context.Context, priority Priority) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisCancellations.Add(ctx, 1, metric.WithAttributes(attribute.String("priority", priority.String())))
}

func recordFailure(ctx context.Context, stage string) {
	if err := initMetrics(); err != nil {
		return
	}
	analysisFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
