package observe

import (
	"context"
	"time"
)

// FetchFunc handles one fetch and reports where the response came from.
type FetchFunc func(ctx context.Context, meta FetchMeta) (Outcome, error)

// Middleware wraps fetch handling with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe FetchFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NopMiddleware returns a middleware that records nothing.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Logger returns the middleware logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Metrics returns the middleware metrics.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Wrap wraps a FetchFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn FetchFunc) FetchFunc {
	return func(ctx context.Context, meta FetchMeta) (Outcome, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		outcome, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, outcome, err)
		m.metrics.RecordFetch(ctx, meta, outcome, duration, err)

		fields := append(meta.Fields(),
			Field{Key: "sw.source", Value: outcome.Source},
			Field{Key: "http.status", Value: outcome.Status},
			Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		)
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Warn(ctx, "fetch failed", fields...)
		} else {
			m.logger.Debug(ctx, "fetch handled", fields...)
		}

		return outcome, err
	}
}

// Lifecycle records a lifecycle event and logs it.
func (m *Middleware) Lifecycle(ctx context.Context, event, version string, err error, fields ...Field) {
	m.metrics.RecordLifecycle(ctx, event, version, err)

	fields = append([]Field{
		{Key: "sw.event", Value: event},
		{Key: "sw.version", Value: version},
	}, fields...)
	if err != nil {
		fields = append(fields, Field{Key: "error", Value: err.Error()})
		m.logger.Error(ctx, "lifecycle event failed", fields...)
		return
	}
	m.logger.Info(ctx, "lifecycle event completed", fields...)
}

// CacheWriteFailed records and logs a failed partition put.
func (m *Middleware) CacheWriteFailed(ctx context.Context, partition, key string, err error) {
	m.metrics.RecordCacheWriteError(ctx, partition)
	m.logger.Warn(ctx, "cache write failed",
		Field{Key: "sw.partition", Value: partition},
		Field{Key: "cache.key", Value: key},
		Field{Key: "error", Value: err.Error()},
	)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
