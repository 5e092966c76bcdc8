package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records controller metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordFetch records one intercepted fetch.
	RecordFetch(ctx context.Context, meta FetchMeta, outcome Outcome, duration time.Duration, err error)

	// RecordLifecycle records an install, activate or claim event.
	RecordLifecycle(ctx context.Context, event, version string, err error)

	// RecordCacheWriteError records a failed partition put.
	RecordCacheWriteError(ctx context.Context, partition string)
}

type metricsImpl struct {
	fetchTotal     metric.Int64Counter
	fetchErrors    metric.Int64Counter
	fetchDuration  metric.Float64Histogram
	lifecycleTotal metric.Int64Counter
	writeErrors    metric.Int64Counter
}

// NewMetrics creates the controller instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	fetchTotal, err := meter.Int64Counter(
		"sw.fetch.total",
		metric.WithDescription("Total number of intercepted fetches"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"sw.fetch.errors",
		metric.WithDescription("Fetches that exhausted every fallback"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"sw.fetch.duration_ms",
		metric.WithDescription("Fetch handling duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	lifecycleTotal, err := meter.Int64Counter(
		"sw.lifecycle.total",
		metric.WithDescription("Lifecycle events by outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	writeErrors, err := meter.Int64Counter(
		"sw.cache.write_errors",
		metric.WithDescription("Failed cache partition writes"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		fetchTotal:     fetchTotal,
		fetchErrors:    fetchErrors,
		fetchDuration:  fetchDuration,
		lifecycleTotal: lifecycleTotal,
		writeErrors:    writeErrors,
	}, nil
}

func (m *metricsImpl) RecordFetch(ctx context.Context, meta FetchMeta, outcome Outcome, duration time.Duration, err error) {
	source := outcome.Source
	if err != nil {
		source = "none"
	}
	opt := metric.WithAttributes(
		attribute.String("sw.version", meta.Version),
		attribute.String("sw.strategy", meta.Strategy),
		attribute.String("sw.source", source),
	)

	m.fetchTotal.Add(ctx, 1, opt)
	if err != nil {
		m.fetchErrors.Add(ctx, 1, opt)
	}
	m.fetchDuration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordLifecycle(ctx context.Context, event, version string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.lifecycleTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sw.event", event),
		attribute.String("sw.version", version),
		attribute.String("sw.outcome", outcome),
	))
}

func (m *metricsImpl) RecordCacheWriteError(ctx context.Context, partition string) {
	m.writeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("sw.partition", partition)))
}

type noopMetrics struct{}

// NopMetrics returns metrics that record nothing.
func NopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) RecordFetch(context.Context, FetchMeta, Outcome, time.Duration, error) {}
func (noopMetrics) RecordLifecycle(context.Context, string, string, error)                {}
func (noopMetrics) RecordCacheWriteError(context.Context, string)                         {}
