package cache

import (
	"fmt"
	"net/url"
	"strings"
)

// Keyer derives the request identity used as a partition key.
//
// Contract:
// - Determinism: the same method and URL must produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(method, rawURL string) (string, error)
}

// DefaultKeyer builds keys of the form "<METHOD> <path>[?query]".
//
// The method is upper-cased and defaults to GET. Scheme, host and fragment
// are dropped because a controller only ever serves a single origin.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates the cache key for method and rawURL.
func (k *DefaultKeyer) Key(method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cache: parse url %q: %w", rawURL, err)
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "GET"
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	key := method + " " + path
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

var _ Keyer = (*DefaultKeyer)(nil)
