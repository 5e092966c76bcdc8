package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonwraymond/shellcache/cache"
)

// DefaultMaxBodyBytes is the default response body limit (32 MiB).
const DefaultMaxBodyBytes = 32 << 20

// hopHeaders are connection-level headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// HTTPConfig configures an HTTPFetcher.
type HTTPConfig struct {
	// Origin is the upstream base URL, e.g. "https://example.com".
	Origin string

	// Client is the HTTP client. Default: a client with no overall timeout.
	Client *http.Client

	// MaxBodyBytes caps response bodies. Default: DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// UserAgent is sent when the request carries none.
	UserAgent string

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// HTTPFetcher fetches requests from an upstream origin over HTTP.
type HTTPFetcher struct {
	origin *url.URL
	config HTTPConfig
}

// NewHTTPFetcher creates a fetcher for the configured origin.
func NewHTTPFetcher(config HTTPConfig) (*HTTPFetcher, error) {
	origin, err := url.Parse(strings.TrimSpace(config.Origin))
	if err != nil {
		return nil, fmt.Errorf("fetch: parse origin: %w", err)
	}
	if origin.Scheme != "http" && origin.Scheme != "https" {
		return nil, fmt.Errorf("fetch: origin %q must be http or https", config.Origin)
	}
	if origin.Host == "" {
		return nil, fmt.Errorf("fetch: origin %q has no host", config.Origin)
	}

	if config.Client == nil {
		// Redirects are followed by default, matching fetch() "follow" mode.
		config.Client = &http.Client{}
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &HTTPFetcher{origin: origin, config: config}, nil
}

// Origin returns the upstream base URL.
func (f *HTTPFetcher) Origin() *url.URL {
	u := *f.origin
	return &u
}

// Resolve maps a request URL onto the origin: scheme and host come from the
// origin, path and query from the request.
func (f *HTTPFetcher) Resolve(req *Request) *url.URL {
	target := *f.origin
	if req.URL != nil {
		base := strings.TrimSuffix(f.origin.Path, "/")
		target.Path = base + req.URL.Path
		target.RawPath = ""
		if req.URL.RawPath != "" {
			target.RawPath = strings.TrimSuffix(f.origin.EscapedPath(), "/") + req.URL.EscapedPath()
		}
		target.RawQuery = req.URL.RawQuery
	}
	target.Fragment = ""
	return &target
}

// Fetch performs the request against the origin.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	if req == nil || req.Method == "" {
		return nil, ErrInvalidRequest
	}

	target := f.Resolve(req)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrInvalidRequest, err)
	}
	copyHeader(httpReq.Header, req.Header)
	if httpReq.Header.Get("User-Agent") == "" && f.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.config.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNetwork, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body of %s: %w", ErrNetwork, target, err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return nil, fmt.Errorf("%w: %s", ErrBodyTooLarge, target)
	}

	header := http.Header{}
	copyHeader(header, resp.Header)

	return &cache.Response{
		Status:   resp.StatusCode,
		Header:   header,
		Body:     body,
		URL:      req.URL.RequestURI(),
		StoredAt: f.config.Now(),
	}, nil
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
}

var _ Fetcher = (*HTTPFetcher)(nil)
