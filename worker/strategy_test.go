package worker

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
)

// rangeOrigin honors Range and If-None-Match like a real origin. With
// alwaysPartial set it answers 206 even to full requests.
type rangeOrigin struct {
	alwaysPartial bool

	mu   sync.Mutex
	seen []http.Header
}

func (o *rangeOrigin) Fetch(_ context.Context, req *fetch.Request) (*cache.Response, error) {
	o.mu.Lock()
	o.seen = append(o.seen, req.Header.Clone())
	o.mu.Unlock()

	body, ok := shellPages()[req.Path()]
	if !ok {
		body = "full " + req.Path()
	}
	switch {
	case o.alwaysPartial || req.Header.Get("Range") != "":
		return &cache.Response{Status: http.StatusPartialContent, Header: http.Header{}, Body: []byte(body[:4]), URL: req.Path()}, nil
	case req.Header.Get("If-None-Match") != "":
		return &cache.Response{Status: http.StatusNotModified, Header: http.Header{}, URL: req.Path()}, nil
	}
	return &cache.Response{Status: http.StatusOK, Header: http.Header{"Etag": {`"v1"`}}, Body: []byte(body), URL: req.Path()}, nil
}

func (o *rangeOrigin) last() http.Header {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seen[len(o.seen)-1]
}

func newRangeController(t *testing.T, o *rangeOrigin) (*Controller, *cache.MemoryStorage) {
	t.Helper()
	storage := cache.NewMemoryStorage()
	ctrl, err := New(DefaultConfig("/app/", "v1"), storage, o)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := ctrl.Install(context.Background()); err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if _, err := ctrl.Activate(context.Background()); err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	return ctrl, storage
}

func withHeader(req *fetch.Request, key, value string) *fetch.Request {
	req.Header.Set(key, value)
	return req
}

func TestFetch_RangedAssetStoresFullBody(t *testing.T) {
	o := &rangeOrigin{}
	ctrl, _ := newRangeController(t, o)
	ctx := context.Background()

	req := withHeader(get("/app/assets/clip.mp4"), "Range", "bytes=0-3")
	res, err := ctrl.Fetch(ctx, req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := o.last().Get("Range"); got != "" {
		t.Errorf("Range forwarded on the cache-first path: %q", got)
	}
	if req.Header.Get("Range") == "" {
		t.Error("caller request headers were modified")
	}
	if res.Response.Status != http.StatusOK {
		t.Fatalf("status = %d, want the full response", res.Response.Status)
	}

	res, err = ctrl.Fetch(ctx, get("/app/assets/clip.mp4"))
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if res.Source != SourceCache || res.Response.Status != http.StatusOK || string(res.Response.Body) != "full /app/assets/clip.mp4" {
		t.Errorf("second fetch = %s %d %q, want full body from cache", res.Source, res.Response.Status, res.Response.Body)
	}
}

func TestFetch_PartialContentNeverStored(t *testing.T) {
	o := &rangeOrigin{}
	ctrl, storage := newRangeController(t, o)
	o.alwaysPartial = true
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := ctrl.Fetch(ctx, get("/app/assets/clip.mp4"))
		if err != nil {
			t.Fatalf("Fetch() #%d error = %v", i, err)
		}
		if res.Source != SourceNetwork || res.Response.Status != http.StatusPartialContent {
			t.Errorf("Fetch() #%d = %s %d, want the live 206", i, res.Source, res.Response.Status)
		}
	}
	if ok, _ := storage.Has(ctx, ctrl.Config().RuntimePartition()); ok {
		p, _ := storage.Open(ctx, ctrl.Config().RuntimePartition())
		if _, hit := p.Match(ctx, "GET /app/assets/clip.mp4"); hit {
			t.Error("206 response was written to the runtime partition")
		}
	}
}

func TestFetch_ConditionalMissIsStored(t *testing.T) {
	o := &rangeOrigin{}
	ctrl, _ := newRangeController(t, o)
	ctx := context.Background()

	req := withHeader(get("/app/assets/app.js"), "If-None-Match", `"v0"`)
	res, err := ctrl.Fetch(ctx, req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Response.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200 instead of a revalidation answer", res.Response.Status)
	}
	if got := o.last().Get("If-None-Match"); got != "" {
		t.Errorf("If-None-Match forwarded on the cache-first path: %q", got)
	}

	res, err = ctrl.Fetch(ctx, get("/app/assets/app.js"))
	if err != nil {
		t.Fatalf("second Fetch() error = %v", err)
	}
	if res.Source != SourceCache {
		t.Errorf("second fetch source = %s, want cache", res.Source)
	}
}

func TestFetch_NavigationDropsConditionalHeaders(t *testing.T) {
	o := &rangeOrigin{}
	ctrl, _ := newRangeController(t, o)

	req := withHeader(navigate("/app/settings"), "If-Modified-Since", "Mon, 01 Jan 2024 00:00:00 GMT")
	res, err := ctrl.Fetch(context.Background(), req)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Response.Status != http.StatusOK || o.last().Get("If-Modified-Since") != "" {
		t.Errorf("navigation = %d, forwarded If-Modified-Since %q", res.Response.Status, o.last().Get("If-Modified-Since"))
	}
}

func TestFetch_MediaForwardsRange(t *testing.T) {
	o := &rangeOrigin{}
	ctrl, _ := newRangeController(t, o)

	res, err := ctrl.Fetch(context.Background(), withHeader(get("/app/uploads/talk.webm"), "Range", "bytes=0-3"))
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if o.last().Get("Range") != "bytes=0-3" {
		t.Error("Range not forwarded for media")
	}
	if res.Response.Status != http.StatusPartialContent || res.Source != SourceNetwork {
		t.Errorf("media = %s %d, want the live 206", res.Source, res.Response.Status)
	}
}
