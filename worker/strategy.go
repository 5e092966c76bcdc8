package worker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/observe"
	"github.com/jonwraymond/shellcache/resilience"
)

func (c *Controller) serve(ctx context.Context, rule Rule, req *fetch.Request) (*Result, error) {
	res := &Result{Strategy: rule.Strategy, Rule: rule.Name}

	key, err := c.keyer.Key(req.Method, req.URL.String())
	if req.Method != http.MethodGet || err != nil {
		// Only GET responses are cacheable.
		return c.passthrough(ctx, res, req)
	}

	switch rule.Strategy {
	case StrategyNavigation:
		return c.networkFirst(ctx, res, storable(req), c.rootKey, true, c.rootKey, c.offlineKey)
	case StrategyAsset:
		return c.cacheFirst(ctx, res, storable(req), key)
	case StrategyMedia:
		// Never written, so ranges and revalidation reach the origin as sent.
		return c.networkFirst(ctx, res, req, key, false, key, c.placeholderKey)
	default:
		return c.cacheFirst(ctx, res, storable(req), key, c.offlineKey)
	}
}

// partialHeaders make the origin answer with a partial or empty body.
var partialHeaders = []string{
	"Range",
	"If-Range",
	"If-Match",
	"If-None-Match",
	"If-Modified-Since",
	"If-Unmodified-Since",
}

// storable returns req without the headers that would stop the origin from
// sending the full body, so the response can be written under the key.
func storable(req *fetch.Request) *fetch.Request {
	found := false
	for _, h := range partialHeaders {
		if _, ok := req.Header[http.CanonicalHeaderKey(h)]; ok {
			found = true
			break
		}
	}
	if !found {
		return req
	}
	clone := *req
	clone.Header = req.Header.Clone()
	for _, h := range partialHeaders {
		clone.Header.Del(h)
	}
	return &clone
}

// cacheable reports whether resp may be written: a complete 2xx response.
func cacheable(resp *cache.Response) bool {
	return resp.OK() && resp.Status != http.StatusPartialContent
}

// networkFirst tries the network, writing OK responses under writeKey when
// write is set, then walks fallbacks in order. The first fallback is
// reported as a cache hit, later ones as fallbacks.
func (c *Controller) networkFirst(ctx context.Context, res *Result, req *fetch.Request, writeKey string, write bool, fallbacks ...string) (*Result, error) {
	resp, netErr := c.network(ctx, req)
	if netErr == nil {
		if write && cacheable(resp) {
			c.write(ctx, writeKey, resp)
		}
		return res.with(resp, SourceNetwork), nil
	}

	c.logFallback(ctx, req, res, netErr)
	for i, key := range fallbacks {
		if cached, ok := c.match(ctx, key); ok {
			source := SourceCache
			if i > 0 {
				source = SourceFallback
			}
			return res.with(cached, source), nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Path(), netErr)
}

// cacheFirst serves key from the cache, else from the network with
// write-through of OK responses, else from the fallbacks.
func (c *Controller) cacheFirst(ctx context.Context, res *Result, req *fetch.Request, key string, fallbacks ...string) (*Result, error) {
	if cached, ok := c.match(ctx, key); ok {
		return res.with(cached, SourceCache), nil
	}

	resp, netErr := c.network(ctx, req)
	if netErr == nil {
		if cacheable(resp) {
			c.write(ctx, key, resp)
		}
		return res.with(resp, SourceNetwork), nil
	}

	c.logFallback(ctx, req, res, netErr)
	for _, fb := range fallbacks {
		if cached, ok := c.match(ctx, fb); ok {
			return res.with(cached, SourceFallback), nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Path(), netErr)
}

func (c *Controller) passthrough(ctx context.Context, res *Result, req *fetch.Request) (*Result, error) {
	resp, err := c.network(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResponse, req.Path(), err)
	}
	return res.with(resp, SourceNetwork), nil
}

func (r *Result) with(resp *cache.Response, source Source) *Result {
	r.Response = resp
	r.Source = source
	return r
}

// network performs one upstream fetch bounded by FetchTimeout. A timeout is
// reported as a network failure.
func (c *Controller) network(ctx context.Context, req *fetch.Request) (*cache.Response, error) {
	if c.cfg.FetchTimeout <= 0 {
		return c.fetcher.Fetch(ctx, req)
	}

	var resp *cache.Response
	err := resilience.ExecuteWithTimeout(ctx, c.cfg.FetchTimeout, func(ctx context.Context) error {
		r, err := c.fetcher.Fetch(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		if resilience.IsRejection(err) {
			return nil, fmt.Errorf("%w: %w", fetch.ErrNetwork, err)
		}
		return nil, err
	}
	return resp, nil
}

// match looks key up in the runtime partition, then the shell partition.
func (c *Controller) match(ctx context.Context, key string) (*cache.Response, bool) {
	for _, name := range []string{c.cfg.RuntimePartition(), c.cfg.ShellPartition()} {
		exists, err := c.storage.Has(ctx, name)
		if err != nil || !exists {
			continue
		}
		part, err := c.storage.Open(ctx, name)
		if err != nil {
			continue
		}
		if resp, ok := part.Match(ctx, key); ok {
			return resp, true
		}
	}
	return nil, false
}

// write stores resp in the runtime partition. Failures are reported to the
// middleware and never reach the caller.
func (c *Controller) write(ctx context.Context, key string, resp *cache.Response) {
	c.mu.RLock()
	if c.state != StateActivated {
		c.mu.RUnlock()
		return
	}
	if c.writer.Mode() == cache.WriteAwait {
		c.mu.RUnlock()
	} else {
		// Held until the background put is registered so that once retire
		// returns no new put can start.
		defer c.mu.RUnlock()
	}
	name := c.cfg.RuntimePartition()
	part, err := c.storage.Open(ctx, name)
	if err != nil {
		c.mw.CacheWriteFailed(ctx, name, key, err)
		return
	}
	c.writer.Put(ctx, part, key, resp)
}

func (c *Controller) logFallback(ctx context.Context, req *fetch.Request, res *Result, err error) {
	c.mw.Logger().Debug(ctx, "network failed, trying cache",
		observe.Field{Key: "sw.version", Value: c.cfg.Version},
		observe.Field{Key: "sw.strategy", Value: res.Strategy.String()},
		observe.Field{Key: "http.path", Value: req.Path()},
		observe.Field{Key: "request.id", Value: observe.RequestIDFromContext(ctx)},
		observe.Field{Key: "error", Value: err.Error()},
	)
}
