package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/resilience"
)

// ShellSource reports the shell of the active controller.
type ShellSource interface {
	// ActiveShell returns the shell partition name and the cache keys that
	// must be present in it. ok is false when no controller is active.
	ActiveShell() (partition string, keys []string, ok bool)
}

// ShellChecker verifies that every shell entry is cached.
type ShellChecker struct {
	storage cache.Storage
	source  ShellSource
}

// NewShellChecker creates a checker over storage for the source's shell.
func NewShellChecker(storage cache.Storage, source ShellSource) *ShellChecker {
	return &ShellChecker{storage: storage, source: source}
}

// Name returns "shell".
func (c *ShellChecker) Name() string { return "shell" }

// Check reports unhealthy when no controller is active or an entry is missing.
func (c *ShellChecker) Check(ctx context.Context) Result {
	name, keys, ok := c.source.ActiveShell()
	if !ok {
		return Unhealthy("no active controller", ErrNoActiveShell)
	}

	exists, err := c.storage.Has(ctx, name)
	if err != nil {
		return Unhealthy("look up shell partition", err)
	}
	if !exists {
		return Unhealthy("shell partition "+name+" missing", ErrShellIncomplete)
	}
	part, err := c.storage.Open(ctx, name)
	if err != nil {
		return Unhealthy("open shell partition", err)
	}

	var missing []string
	for _, key := range keys {
		if _, hit := part.Match(ctx, key); !hit {
			missing = append(missing, key)
		}
	}

	details := map[string]any{
		"partition": name,
		"entries":   len(keys),
	}
	if len(missing) > 0 {
		details["missing"] = missing
		return Unhealthy(fmt.Sprintf("%d of %d shell entries missing", len(missing), len(keys)),
			ErrShellIncomplete).WithDetails(details)
	}
	return Healthy("shell complete").WithDetails(details)
}

// UpstreamChecker reports the origin circuit breaker state.
type UpstreamChecker struct {
	breaker *resilience.CircuitBreaker
}

// NewUpstreamChecker creates a checker for breaker.
func NewUpstreamChecker(breaker *resilience.CircuitBreaker) *UpstreamChecker {
	return &UpstreamChecker{breaker: breaker}
}

// Name returns "upstream".
func (c *UpstreamChecker) Name() string { return "upstream" }

// Check reports degraded while the breaker is open or probing.
func (c *UpstreamChecker) Check(context.Context) Result {
	m := c.breaker.Metrics()
	details := map[string]any{
		"state":    m.State.String(),
		"failures": m.Failures,
		"rejected": m.Rejected,
	}
	switch m.State {
	case resilience.StateOpen:
		return Degraded("origin circuit open, serving from cache").WithDetails(details)
	case resilience.StateHalfOpen:
		return Degraded("origin circuit probing").WithDetails(details)
	default:
		return Healthy("origin reachable").WithDetails(details)
	}
}

var (
	_ Checker = (*ShellChecker)(nil)
	_ Checker = (*UpstreamChecker)(nil)
	_ Checker = (*CheckerFunc)(nil)
)
