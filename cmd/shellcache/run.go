package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonwraymond/shellcache/auth"
	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/cache/sqlite"
	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/health"
	"github.com/jonwraymond/shellcache/observe"
	"github.com/jonwraymond/shellcache/resilience"
	"github.com/jonwraymond/shellcache/server"
	"github.com/jonwraymond/shellcache/worker"
)

const serviceName = "shellcache"

// app is the assembled process.
type app struct {
	reg      *worker.Registration
	mux      http.Handler
	server   *server.Server
	observer observe.Observer
	closers  []io.Closer
}

// Run assembles the process from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg Config, logOutput io.Writer) error {
	a, err := build(ctx, cfg, logOutput)
	if err != nil {
		return err
	}
	defer a.close()

	return a.server.ListenAndServe(ctx)
}

func build(ctx context.Context, cfg Config, logOutput io.Writer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var manifest *Manifest
	if cfg.ManifestPath != "" {
		if manifest, err = LoadManifest(cfg.ManifestPath); err != nil {
			return nil, err
		}
	}
	workerCfg, err := cfg.WorkerConfig(manifest)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	a.observer, err = observe.NewObserver(ctx, observe.Config{
		ServiceName: serviceName,
		Version:     workerCfg.Version,
		Tracing: observe.TracingConfig{
			Enabled:   cfg.TracingExporter != "none",
			Exporter:  cfg.TracingExporter,
			SamplePct: cfg.TraceSamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  cfg.MetricsExporter != "none",
			Exporter: cfg.MetricsExporter,
			Registry: registry,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   cfg.LogLevel,
			Output:  logOutput,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("init observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return nil, fmt.Errorf("init fetch middleware: %w", err)
	}
	logger := mw.Logger()

	storage, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := storage.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	origin, err := fetch.NewHTTPFetcher(fetch.HTTPConfig{Origin: cfg.Origin, UserAgent: serviceName + "/" + workerCfg.Version})
	if err != nil {
		return nil, err
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerReset,
		IsFailure:    fetch.IsUpstreamFailure,
		OnStateChange: func(from, to resilience.State) {
			logger.Warn(context.Background(), "upstream circuit changed",
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})
	upstream := fetch.NewResilient(origin, resilience.NewExecutor(
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.UpstreamMaxActive,
			MaxWait:       time.Second,
		})),
		resilience.WithCircuitBreaker(breaker),
	))

	reg := worker.NewRegistration(mw)
	factory := func(context.Context) (*worker.Controller, error) {
		return worker.New(workerCfg, storage, upstream, worker.WithMiddleware(mw))
	}
	ctrl, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	if err := reg.Register(ctx, ctrl); err != nil {
		// The process still serves: a later POST /_sw/update can install
		// once the origin is reachable.
		logger.Error(ctx, "initial install failed", observe.Field{Key: "error", Value: err.Error()})
	}

	agg := health.NewAggregator()
	agg.Register(health.NewShellChecker(storage, reg))
	agg.Register(health.NewUpstreamChecker(breaker))

	var metricsRegistry *prometheus.Registry
	if cfg.MetricsExporter == "prometheus" {
		metricsRegistry = registry
	}
	mux := server.NewMux(server.MuxConfig{
		Handler: server.NewHandler(server.HandlerConfig{
			Registration: reg,
			Upstream:     upstream,
			Logger:       logger,
		}),
		Admin: server.NewAdminHandler(server.AdminConfig{
			Registration:  reg,
			Storage:       storage,
			Factory:       factory,
			Authenticator: adminAuthenticator(cfg),
			Role:          cfg.AdminRole,
			Logger:        logger,
		}),
		Health:   agg,
		Registry: metricsRegistry,
	})

	a.reg, a.mux = reg, mux
	a.server, err = server.New(server.Config{
		Addr:    cfg.Addr,
		Handler: mux,
		Drainer: reg,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openStorage(cfg Config) (cache.Storage, error) {
	if cfg.StoragePath == "" {
		return cache.NewMemoryStorage(cache.MemoryConfig{MaxBytes: cfg.MemoryMaxSize}), nil
	}
	store, err := sqlite.Open(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite storage: %w", err)
	}
	return store, nil
}

// adminAuthenticator returns nil when no admin credential is configured,
// which leaves the admin API open.
func adminAuthenticator(cfg Config) auth.Authenticator {
	var auths []auth.Authenticator
	if cfg.AdminJWTSecret != "" {
		auths = append(auths, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret: []byte(cfg.AdminJWTSecret),
			Issuer: cfg.AdminJWTIssuer,
		}))
	}
	if len(cfg.AdminAPIKeyHashes) > 0 {
		var roles []string
		if cfg.AdminRole != "" {
			roles = []string{cfg.AdminRole}
		}
		keys := make([]auth.APIKey, 0, len(cfg.AdminAPIKeyHashes))
		for i, hash := range cfg.AdminAPIKeyHashes {
			keys = append(keys, auth.APIKey{
				Hash:      strings.ToLower(strings.TrimSpace(hash)),
				Principal: fmt.Sprintf("api-key-%d", i),
				Roles:     roles,
			})
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator("", keys...))
	}
	switch len(auths) {
	case 0:
		return nil
	case 1:
		return auths[0]
	default:
		return auth.NewComposite(auths...)
	}
}

func (a *app) close() {
	var errs []error
	if a.observer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		errs = append(errs, a.observer.Shutdown(ctx))
		cancel()
	}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	if err := errors.Join(errs...); err != nil && a.observer != nil {
		a.observer.Logger().Error(context.Background(), "shutdown", observe.Field{Key: "error", Value: err.Error()})
	}
}
