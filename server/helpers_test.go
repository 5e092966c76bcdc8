package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/worker"
)

// origin serves "<version> <path>" for every path except missing ones.
type origin struct {
	offline atomic.Bool

	mu      sync.Mutex
	version string
	methods []string
}

func newOrigin(version string) *origin {
	return &origin{version: version}
}

func (o *origin) Fetch(_ context.Context, req *fetch.Request) (*cache.Response, error) {
	o.mu.Lock()
	o.methods = append(o.methods, req.Method)
	version := o.version
	o.mu.Unlock()

	if o.offline.Load() {
		return nil, fetch.ErrNetwork
	}
	if req.Path() == "/app/missing" {
		return &cache.Response{Status: http.StatusNotFound, Header: http.Header{}, Body: []byte("nope")}, nil
	}
	return &cache.Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(version + " " + req.Path()),
		URL:    req.URL.RequestURI(),
	}, nil
}

func (o *origin) setVersion(v string) {
	o.mu.Lock()
	o.version = v
	o.mu.Unlock()
}

type fixture struct {
	storage *cache.MemoryStorage
	origin  *origin
	reg     *worker.Registration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		storage: cache.NewMemoryStorage(),
		origin:  newOrigin("v1"),
		reg:     worker.NewRegistration(nil),
	}
	if err := f.reg.Register(context.Background(), f.controller(t, "v1", true)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return f
}

func (f *fixture) controller(t *testing.T, version string, skipWaiting bool) *worker.Controller {
	t.Helper()
	cfg := worker.DefaultConfig("/app/", version)
	cfg.SkipWaiting = skipWaiting
	ctrl, err := worker.New(cfg, f.storage, f.origin)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctrl
}
