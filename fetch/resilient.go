package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/resilience"
)

// Resilient guards a Fetcher with a resilience.Executor.
//
// Rejections from the executor (timeout, open circuit, full bulkhead) are
// reported as network failures so callers take their offline fallback.
type Resilient struct {
	next     Fetcher
	executor *resilience.Executor
}

// NewResilient wraps next. A nil executor passes calls straight through.
func NewResilient(next Fetcher, executor *resilience.Executor) *Resilient {
	if executor == nil {
		executor = resilience.NewExecutor()
	}
	return &Resilient{next: next, executor: executor}
}

// Executor returns the guarding executor.
func (r *Resilient) Executor() *resilience.Executor {
	return r.executor
}

// Fetch runs the wrapped fetch through the executor.
func (r *Resilient) Fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	var resp *cache.Response
	err := r.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = r.next.Fetch(ctx, req)
		return err
	})
	if err != nil {
		if resilience.IsRejection(err) && !errors.Is(err, ErrNetwork) {
			return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return nil, err
	}
	return resp, nil
}

// IsUpstreamFailure is the circuit breaker failure predicate for fetches:
// network failures count; invalid requests and fetches the caller
// cancelled do not.
func IsUpstreamFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrNetwork) || errors.Is(err, resilience.ErrTimeout)
}

var _ Fetcher = (*Resilient)(nil)
