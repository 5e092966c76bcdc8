package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jonwraymond/shellcache/cache"
)

// Mode is the request mode as reported by the Sec-Fetch-Mode header.
type Mode int

const (
	// ModeNoCORS is the default mode for subresources.
	ModeNoCORS Mode = iota
	// ModeNavigate is a top-level page load.
	ModeNavigate
	// ModeSameOrigin is a same-origin request.
	ModeSameOrigin
	// ModeCORS is a cross-origin request.
	ModeCORS
)

// String returns the Sec-Fetch-Mode token for the mode.
func (m Mode) String() string {
	switch m {
	case ModeNavigate:
		return "navigate"
	case ModeSameOrigin:
		return "same-origin"
	case ModeCORS:
		return "cors"
	default:
		return "no-cors"
	}
}

// ParseMode parses a Sec-Fetch-Mode token. Unknown tokens map to ModeNoCORS.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "navigate":
		return ModeNavigate
	case "same-origin":
		return ModeSameOrigin
	case "cors":
		return ModeCORS
	default:
		return ModeNoCORS
	}
}

// Request is an outgoing fetch from a controlled page.
type Request struct {
	Method string
	URL    *url.URL
	Mode   Mode
	Header http.Header
}

// NewRequest builds a request. An empty method means GET.
func NewRequest(method, rawURL string, mode Mode) (*Request, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrInvalidRequest
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method: strings.ToUpper(method),
		URL:    u,
		Mode:   mode,
		Header: http.Header{},
	}, nil
}

// MustRequest is like NewRequest but panics on error. Intended for tests and
// fixed shell lists.
func MustRequest(method, rawURL string, mode Mode) *Request {
	req, err := NewRequest(method, rawURL, mode)
	if err != nil {
		panic(err)
	}
	return req
}

// Path returns the URL path, "/" when empty.
func (r *Request) Path() string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

// IsNavigation reports whether the request is a top-level page load.
func (r *Request) IsNavigation() bool {
	return r.Mode == ModeNavigate
}

// String returns "<METHOD> <url>".
func (r *Request) String() string {
	if r.URL == nil {
		return r.Method
	}
	return r.Method + " " + r.URL.String()
}

// Fetcher performs network fetches.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation; a cancelled fetch returns an error
//   wrapping ErrNetwork.
// - Errors: only failures that produced no response are errors.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*cache.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*cache.Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	return f(ctx, req)
}
