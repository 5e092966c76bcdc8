package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/observe"
	"github.com/jonwraymond/shellcache/resilience"
)

// Result is the response handed back to the page.
type Result struct {
	Response *cache.Response
	Strategy Strategy
	// Rule is the name of the classification rule that matched.
	Rule   string
	Source Source
}

// ActivateReport describes the partition cleanup done by Activate.
type ActivateReport struct {
	Version string
	Kept    []string
	Deleted []string
	// Failed lists partitions whose deletion failed; Err joins the causes.
	Failed []string
	Err    error
}

// Controller is one version of the offline cache controller.
//
// Contract:
//   - Concurrency: Fetch is safe for concurrent use. Install and Activate
//     must each be called once, in that order.
//   - Errors: Fetch only fails with ErrNotActive, ErrNoResponse, or
//     fetch.ErrInvalidRequest; network failures are absorbed by fallbacks.
type Controller struct {
	cfg     Config
	storage cache.Storage
	fetcher fetch.Fetcher
	rules   []Rule
	keyer   cache.Keyer
	now     func() time.Time
	mw      *observe.Middleware
	writer  *cache.Writer

	shellKeys      []string
	rootKey        string
	offlineKey     string
	placeholderKey string

	mu          sync.RWMutex
	state       State
	installedAt time.Time
	activatedAt time.Time
}

// New creates a controller for cfg in StateParsed.
func New(cfg Config, storage cache.Storage, fetcher fetch.Fetcher, opts ...Option) (*Controller, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if storage == nil || fetcher == nil {
		return nil, fmt.Errorf("%w: storage and fetcher are required", ErrInvalidConfig)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.keyer == nil {
		o.keyer = cache.NewDefaultKeyer()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if len(o.rules) == 0 {
		o.rules = DefaultRules(cfg)
	}
	mw := o.middleware
	if mw == nil {
		mw = observe.NewMiddleware(o.tracer, o.metrics, o.logger)
	}

	c := &Controller{
		cfg:     cfg,
		storage: storage,
		fetcher: fetcher,
		rules:   o.rules,
		keyer:   o.keyer,
		now:     o.now,
		mw:      mw,
	}
	c.writer = cache.NewWriter(cfg.WriteMode, func(ctx context.Context, partition, key string, err error) {
		c.mw.CacheWriteFailed(ctx, partition, key, err)
	})

	var err error
	for _, u := range cfg.ShellURLs {
		key, kerr := c.keyer.Key(http.MethodGet, u)
		if kerr != nil {
			return nil, fmt.Errorf("%w: shell url %q: %w", ErrInvalidConfig, u, kerr)
		}
		c.shellKeys = append(c.shellKeys, key)
	}
	if c.rootKey, err = c.keyer.Key(http.MethodGet, cfg.RootDocument); err != nil {
		return nil, fmt.Errorf("%w: root document: %w", ErrInvalidConfig, err)
	}
	if c.offlineKey, err = c.keyer.Key(http.MethodGet, cfg.OfflineDocument); err != nil {
		return nil, fmt.Errorf("%w: offline document: %w", ErrInvalidConfig, err)
	}
	if c.placeholderKey, err = c.keyer.Key(http.MethodGet, cfg.Placeholder); err != nil {
		return nil, fmt.Errorf("%w: placeholder: %w", ErrInvalidConfig, err)
	}
	return c, nil
}

// Config returns the controller configuration.
func (c *Controller) Config() Config { return c.cfg }

// Version returns the version tag.
func (c *Controller) Version() string { return c.cfg.Version }

// ShellKeys returns the cache keys written by Install.
func (c *Controller) ShellKeys() []string { return append([]string(nil), c.shellKeys...) }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// InstalledAt returns when install completed, zero before.
func (c *Controller) InstalledAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.installedAt
}

// ActivatedAt returns when activation completed, zero before.
func (c *Controller) ActivatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activatedAt
}

// Wait blocks until background cache writes have finished.
func (c *Controller) Wait() { c.writer.Wait() }

func (c *Controller) transition(from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = to
	switch to {
	case StateInstalled:
		c.installedAt = c.now()
	case StateActivated:
		c.activatedAt = c.now()
	}
	return true
}

func (c *Controller) retire() {
	c.mu.Lock()
	c.state = StateRedundant
	c.mu.Unlock()
}

// Install fetches every shell URL and stores them in the shell partition.
// Nothing is stored unless every fetch returns a 2xx response. On failure
// the controller becomes redundant and the error wraps ErrInstallFailed
// along with one cause per failed URL.
func (c *Controller) Install(ctx context.Context) error {
	if !c.transition(StateParsed, StateInstalling) {
		return fmt.Errorf("%w: install in state %s", ErrInvalidState, c.State())
	}

	partition := c.cfg.ShellPartition()
	err := c.install(ctx, partition)
	c.mw.Lifecycle(ctx, observe.EventInstall, c.cfg.Version, err,
		observe.Field{Key: "sw.partition", Value: partition},
		observe.Field{Key: "sw.shell_entries", Value: len(c.shellKeys)},
	)
	if err != nil {
		c.retire()
		return err
	}
	c.transition(StateInstalling, StateInstalled)
	return nil
}

func (c *Controller) install(ctx context.Context, partition string) error {
	urls := c.cfg.ShellURLs
	responses := make([]*cache.Response, len(urls))
	errs := make([]error, len(urls))

	retry := resilience.NewRetry(resilience.RetryConfig{
		MaxAttempts: c.cfg.InstallAttempts,
		Strategy:    resilience.BackoffExponential,
		Jitter:      true,
		RetryIf: func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, fetch.ErrInvalidRequest)
		},
	})

	var g errgroup.Group
	g.SetLimit(c.cfg.InstallConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			err := retry.Execute(ctx, func(ctx context.Context) error {
				req, err := fetch.NewRequest(http.MethodGet, u, fetch.ModeSameOrigin)
				if err != nil {
					return err
				}
				resp, err := c.network(ctx, req)
				if err != nil {
					return err
				}
				if !resp.OK() {
					return fmt.Errorf("unexpected status %d", resp.Status)
				}
				responses[i] = resp
				return nil
			})
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", u, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}

	existed, err := c.storage.Has(ctx, partition)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
	part, err := c.storage.Open(ctx, partition)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrInstallFailed, partition, err)
	}
	for i, key := range c.shellKeys {
		if err := part.Put(ctx, key, responses[i]); err != nil {
			if !existed {
				_, _ = c.storage.Delete(context.WithoutCancel(ctx), partition)
			}
			return fmt.Errorf("%w: store %s: %w", ErrInstallFailed, urls[i], err)
		}
	}
	return nil
}

// Activate deletes every partition outside the allow list and moves the
// controller to StateActivated. Deletion failures are reported, never
// returned; the only error is ErrInvalidState.
func (c *Controller) Activate(ctx context.Context) (ActivateReport, error) {
	return c.activate(ctx, nil)
}

// activate is Activate with extra partition names that must survive
// cleanup, such as shells other controllers are still installing.
func (c *Controller) activate(ctx context.Context, keep []string) (ActivateReport, error) {
	if !c.transition(StateInstalled, StateActivating) {
		return ActivateReport{}, fmt.Errorf("%w: activate in state %s", ErrInvalidState, c.State())
	}

	report := c.cleanup(ctx, keep)
	c.transition(StateActivating, StateActivated)

	c.mw.Lifecycle(ctx, observe.EventActivate, c.cfg.Version, nil,
		observe.Field{Key: "sw.deleted", Value: report.Deleted},
		observe.Field{Key: "sw.kept", Value: report.Kept},
	)
	if report.Err != nil {
		c.mw.Logger().Warn(ctx, "partition cleanup incomplete",
			observe.Field{Key: "sw.version", Value: c.cfg.Version},
			observe.Field{Key: "sw.failed", Value: report.Failed},
			observe.Field{Key: "error", Value: report.Err.Error()},
		)
	}
	return report, nil
}

func (c *Controller) cleanup(ctx context.Context, keep []string) ActivateReport {
	report := ActivateReport{Version: c.cfg.Version}

	names, err := c.storage.Names(ctx)
	if err != nil {
		report.Err = err
		return report
	}

	allowed := make(map[string]bool, 2)
	for _, name := range c.cfg.AllowList() {
		allowed[name] = true
	}
	protected := make(map[string]bool, len(keep))
	for _, name := range keep {
		protected[name] = true
	}

	var errs []error
	for _, name := range names {
		if allowed[name] {
			report.Kept = append(report.Kept, name)
			continue
		}
		if protected[name] {
			continue
		}
		deleted, err := c.storage.Delete(ctx, name)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, name)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		case deleted:
			report.Deleted = append(report.Deleted, name)
		}
	}
	report.Err = errors.Join(errs...)
	return report
}

// Fetch classifies req and serves it through the matching strategy.
func (c *Controller) Fetch(ctx context.Context, req *fetch.Request) (*Result, error) {
	if req == nil || req.URL == nil {
		return nil, fetch.ErrInvalidRequest
	}
	if c.State() != StateActivated {
		return nil, ErrNotActive
	}

	rule := Classify(c.rules, req)
	meta := observe.FetchMeta{
		Version:   c.cfg.Version,
		Strategy:  rule.Strategy.String(),
		Rule:      rule.Name,
		Method:    req.Method,
		Path:      req.Path(),
		RequestID: observe.RequestIDFromContext(ctx),
	}

	var result *Result
	handle := c.mw.Wrap(func(ctx context.Context, _ observe.FetchMeta) (observe.Outcome, error) {
		res, err := c.serve(ctx, rule, req)
		if err != nil {
			return observe.Outcome{}, err
		}
		result = res
		return observe.Outcome{Source: string(res.Source), Status: res.Response.Status}, nil
	})
	if _, err := handle(ctx, meta); err != nil {
		return nil, err
	}
	return result, nil
}
