package cache

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrInvalidKey       = errors.New("cache: key is invalid")
	ErrKeyTooLong       = errors.New("cache: key exceeds max length")
	ErrNilResponse      = errors.New("cache: response is nil")
	ErrQuotaExceeded    = errors.New("cache: storage quota exceeded")
	ErrInvalidPartition = errors.New("cache: partition name is invalid")
)

// Response is a stored HTTP response.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	URL      string
	StoredAt time.Time
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Clone returns a deep copy of the response. Header and body are not shared.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := *r
	out.Header = r.Header.Clone()
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// Size returns the approximate number of bytes the response occupies.
func (r *Response) Size() int64 {
	if r == nil {
		return 0
	}
	n := int64(len(r.Body) + len(r.URL))
	for k, vs := range r.Header {
		n += int64(len(k))
		for _, v := range vs {
			n += int64(len(v))
		}
	}
	return n
}

// Partition is a named key-value store of responses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Put overwrites by key and stores a copy; later mutation of the argument
//   must not affect the stored entry.
// - Match never errors; a backend failure is reported as a miss.
type Partition interface {
	// Name returns the partition name.
	Name() string

	// Match returns a copy of the stored response for key.
	Match(ctx context.Context, key string) (*Response, bool)

	// Put stores resp under key, replacing any previous entry.
	Put(ctx context.Context, key string, resp *Response) error

	// Delete removes key. Idempotent - no error on miss.
	Delete(ctx context.Context, key string) error

	// Keys returns the stored keys in sorted order.
	Keys(ctx context.Context) ([]string, error)
}

// Storage manages named partitions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Open creates the partition when it does not exist yet.
// - Names returns partition names in sorted order.
type Storage interface {
	Open(ctx context.Context, name string) (Partition, error)
	Has(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) (bool, error)
	Names(ctx context.Context) ([]string, error)
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidatePartitionName checks if name can be used as a partition name.
func ValidatePartitionName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "\n\r") {
		return ErrInvalidPartition
	}
	return nil
}
