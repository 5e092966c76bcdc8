package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/shellcache/health"
)

// MuxConfig lists the components NewMux assembles.
type MuxConfig struct {
	// Handler serves the controlled scope. Required.
	Handler http.Handler

	// Admin serves AdminPrefix. Nil disables the admin API.
	Admin http.Handler

	// Health backs /healthz, /readyz and /health. Nil disables them.
	Health *health.Aggregator

	// Registry backs /metrics. Nil disables the endpoint.
	Registry *prometheus.Registry
}

// NewMux routes the admin API, health probes and metrics, and sends every
// other path to the scope handler.
func NewMux(config MuxConfig) *http.ServeMux {
	mux := http.NewServeMux()
	if config.Health != nil {
		health.RegisterHandlers(mux, config.Health)
	}
	if config.Registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(config.Registry, promhttp.HandlerOpts{
			Registry: config.Registry,
		}))
	}
	if config.Admin != nil {
		mux.Handle(AdminPrefix, config.Admin)
	}
	mux.Handle("/", config.Handler)
	return mux
}
