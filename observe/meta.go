package observe

import "context"

// FetchMeta describes one intercepted fetch for telemetry purposes.
type FetchMeta struct {
	Version   string // Controller version tag
	Strategy  string // navigation|asset|media|other
	Rule      string // Name of the matching classification rule
	Method    string
	Path      string
	RequestID string // Optional correlation id
}

// SpanName returns the span name for this fetch.
// Format: sw.fetch.<strategy>
func (m FetchMeta) SpanName() string {
	if m.Strategy == "" {
		return "sw.fetch"
	}
	return "sw.fetch." + m.Strategy
}

// Fields returns the log fields describing the fetch.
func (m FetchMeta) Fields() []Field {
	fields := []Field{
		{Key: "sw.version", Value: m.Version},
		{Key: "sw.strategy", Value: m.Strategy},
		{Key: "http.method", Value: m.Method},
		{Key: "http.path", Value: m.Path},
	}
	if m.Rule != "" {
		fields = append(fields, Field{Key: "sw.rule", Value: m.Rule})
	}
	if m.RequestID != "" {
		fields = append(fields, Field{Key: "request.id", Value: m.RequestID})
	}
	return fields
}

// Outcome is what a fetch produced.
type Outcome struct {
	// Source is network, cache or fallback.
	Source string
	// Status is the HTTP status returned to the page, zero on failure.
	Status int
}

// Lifecycle event names.
const (
	EventInstall  = "install"
	EventActivate = "activate"
	EventClaim    = "claim"
)

type requestIDKey struct{}

// WithRequestID returns a context carrying the correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the correlation id, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
