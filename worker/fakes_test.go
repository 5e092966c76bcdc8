package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
)

// origin is a scripted upstream. Paths missing from pages answer 404.
type origin struct {
	mu      sync.Mutex
	pages   map[string]string
	offline bool
	hang    bool
	fail    map[string]int // path -> remaining failures
	calls   map[string]int
	total   atomic.Int64
}

func newOrigin(pages map[string]string) *origin {
	return &origin{pages: pages, fail: map[string]int{}, calls: map[string]int{}}
}

func (o *origin) Fetch(ctx context.Context, req *fetch.Request) (*cache.Response, error) {
	o.total.Add(1)
	o.mu.Lock()
	path := req.Path()
	o.calls[path]++
	offline, hang := o.offline, o.hang
	remaining := o.fail[path]
	if remaining > 0 {
		o.fail[path] = remaining - 1
	}
	body, ok := o.pages[path]
	o.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", fetch.ErrNetwork, ctx.Err())
	}
	if offline || remaining > 0 {
		return nil, fmt.Errorf("%w: connection refused", fetch.ErrNetwork)
	}
	if !ok {
		return &cache.Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("not found"), URL: path}, nil
	}
	return &cache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(body),
		URL:    path,
	}, nil
}

func (o *origin) setOffline(v bool) {
	o.mu.Lock()
	o.offline = v
	o.mu.Unlock()
}

func (o *origin) set(path, body string) {
	o.mu.Lock()
	o.pages[path] = body
	o.mu.Unlock()
}

func (o *origin) callsTo(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[path]
}

func shellPages() map[string]string {
	return map[string]string{
		"/app/":                     "root",
		"/app/index.html":           "index v1",
		"/app/offline.html":         "offline",
		"/app/manifest.webmanifest": "{}",
		"/app/icon-192.png":         "icon",
		"/app/placeholder.svg":      "<svg/>",
	}
}

// failingStorage wraps a storage and fails selected operations.
type failingStorage struct {
	cache.Storage
	deleteErr error
	putErr    error
}

func (s *failingStorage) Delete(ctx context.Context, name string) (bool, error) {
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.Storage.Delete(ctx, name)
}

func (s *failingStorage) Open(ctx context.Context, name string) (cache.Partition, error) {
	p, err := s.Storage.Open(ctx, name)
	if err != nil || s.putErr == nil {
		return p, err
	}
	return failingPartition{Partition: p, err: s.putErr}, nil
}

type failingPartition struct {
	cache.Partition
	err error
}

func (p failingPartition) Put(context.Context, string, *cache.Response) error { return p.err }

var errDisk = errors.New("disk full")

func newActive(t *testing.T, cfg Config, storage cache.Storage, o *origin, opts ...Option) *Controller {
	t.Helper()
	ctrl, err := New(cfg, storage, o, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ctrl.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := ctrl.Activate(context.Background()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return ctrl
}

func navigate(path string) *fetch.Request {
	return fetch.MustRequest(http.MethodGet, path, fetch.ModeNavigate)
}

func get(path string) *fetch.Request {
	return fetch.MustRequest(http.MethodGet, path, fetch.ModeNoCORS)
}

func mustMatch(t *testing.T, s cache.Storage, partition, key string) *cache.Response {
	t.Helper()
	p, err := s.Open(context.Background(), partition)
	if err != nil {
		t.Fatal(err)
	}
	resp, ok := p.Match(context.Background(), key)
	if !ok {
		t.Fatalf("%s: no entry for %q", partition, key)
	}
	return resp
}
