// Package health provides health checks and HTTP probes for shellcache.
//
// A Checker reports the health of one component as Healthy, Degraded or
// Unhealthy. An Aggregator runs a set of checkers under a shared timeout and
// reduces their results to one overall status.
//
// Two checkers are specific to the offline cache controller:
//
//   - ShellChecker verifies that every shell entry of the active controller
//     is present in its shell partition. A missing entry is unhealthy: the
//     application would not boot offline.
//   - UpstreamChecker reports the origin circuit breaker. An open breaker is
//     degraded because fetches are still answered from the cache.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
//	// /healthz  liveness, always 200
//	// /readyz   200 unless a check is unhealthy
//	// /health   JSON detail of every check
package health
