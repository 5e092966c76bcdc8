// Package server is the HTTP front end of a shellcache scope.
//
// Handler translates page requests into fetch.Request values and routes them
// through the active worker.Controller. Responses carry X-Cache-Source and
// X-Cache-Strategy so callers can tell cached answers from live ones. When
// every strategy is exhausted the handler answers 504, the equivalent of a
// browser's native offline error.
//
// The admin API under /_sw/ exposes lifecycle state and lets an operator
// skip waiting or re-run install. NewMux assembles the handler, the admin
// API, health probes and the Prometheus /metrics endpoint; Server runs the
// mux with graceful shutdown.
package server
