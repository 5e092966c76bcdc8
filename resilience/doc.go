// Package resilience bounds and guards calls to the upstream origin.
//
// The offline cache controller never lets a network failure escape; it falls
// back to cached copies instead. The patterns here decide how quickly a
// failing network call is declared failed:
//
//   - Timeout: caps the latency of a single call. A call that exceeds it
//     fails with ErrTimeout and the caller takes its fallback path.
//
//   - Circuit Breaker: after a run of consecutive failures, calls fail fast
//     with ErrCircuitOpen until the reset timeout elapses, so an offline
//     origin does not cost a full timeout per request.
//
//   - Bulkhead: caps the number of concurrent upstream calls.
//
//   - Retry: retries with backoff. Used for install-time prefetch only;
//     the request path never retries.
//
// # Usage
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    MaxFailures:  5,
//	    ResetTimeout: 10 * time.Second,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithTimeout(3*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    resp, err = upstream.Fetch(ctx, req)
//	    return err
//	})
package resilience
