package worker

import (
	"time"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/observe"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	logger     observe.Logger
	metrics    observe.Metrics
	tracer     observe.Tracer
	middleware *observe.Middleware
	rules      []Rule
	keyer      cache.Keyer
	now        func() time.Time
}

// WithLogger sets the structured logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the span tracer.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMiddleware sets a prebuilt middleware. It takes precedence over
// WithLogger, WithMetrics and WithTracer.
func WithMiddleware(m *observe.Middleware) Option {
	return func(o *options) { o.middleware = m }
}

// WithRules replaces the default classification rules.
func WithRules(rules []Rule) Option {
	return func(o *options) { o.rules = append([]Rule(nil), rules...) }
}

// WithKeyer sets the request key derivation.
func WithKeyer(k cache.Keyer) Option {
	return func(o *options) { o.keyer = k }
}

// WithClock sets the clock used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}
