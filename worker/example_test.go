package worker_test

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/worker"
)

func Example() {
	ctx := context.Background()
	online := true
	origin := fetch.FetcherFunc(func(ctx context.Context, req *fetch.Request) (*cache.Response, error) {
		if !online {
			return nil, fetch.ErrNetwork
		}
		return &cache.Response{Status: http.StatusOK, Body: []byte("page " + req.Path())}, nil
	})

	cfg := worker.DefaultConfig("/app/", "v1")
	cfg.ShellURLs = []string{"/app/", "/app/index.html", "/app/offline.html", "/app/placeholder.svg"}
	ctrl, err := worker.New(cfg, cache.NewMemoryStorage(), origin)
	if err != nil {
		fmt.Println(err)
		return
	}

	reg := worker.NewRegistration(nil)
	if err := reg.Register(ctx, ctrl); err != nil {
		fmt.Println(err)
		return
	}

	online = false
	res, _ := reg.Fetch(ctx, fetch.MustRequest(http.MethodGet, "/app/uploads/cat.png", fetch.ModeNoCORS))
	fmt.Println(res.Strategy, res.Source, string(res.Response.Body))
	// Output: media fallback page /app/placeholder.svg
}
