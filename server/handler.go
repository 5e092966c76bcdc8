package server

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/observe"
	"github.com/jonwraymond/shellcache/worker"
)

// Response headers describing how a request was served.
const (
	HeaderRequestID     = "X-Request-Id"
	HeaderCacheSource   = "X-Cache-Source"
	HeaderCacheStrategy = "X-Cache-Strategy"
)

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Registration routes GET and HEAD requests. Required.
	Registration *worker.Registration

	// Upstream serves every other method. When nil those requests answer 405.
	Upstream fetch.Fetcher

	// Logger records request failures. Default: observe.NopLogger()
	Logger observe.Logger
}

// Handler serves the controlled scope.
type Handler struct {
	reg      *worker.Registration
	upstream fetch.Fetcher
	logger   observe.Logger
}

// NewHandler creates a handler.
func NewHandler(config HandlerConfig) *Handler {
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	return &Handler{
		reg:      config.Registration,
		upstream: config.Upstream,
		logger:   config.Logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(HeaderRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(HeaderRequestID, id)
	ctx := observe.WithRequestID(r.Context(), id)

	req, err := TranslateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger := h.logger.With(
		observe.Field{Key: "request.id", Value: id},
		observe.Field{Key: "http.method", Value: req.Method},
		observe.Field{Key: "http.path", Value: req.Path()},
	)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		if h.upstream == nil {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		resp, err := h.upstream.Fetch(ctx, req)
		if err != nil {
			logger.Warn(ctx, "upstream request failed", observe.Field{Key: "error", Value: err.Error()})
			http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
			return
		}
		writeResponse(w, r, &worker.Result{Response: resp, Source: worker.SourceNetwork, Strategy: worker.StrategyOther})
		return
	}

	// HEAD is routed as GET so it shares cache entries; the body is dropped.
	if r.Method == http.MethodHead {
		req.Method = http.MethodGet
	}

	res, err := h.reg.Fetch(ctx, req)
	switch {
	case err == nil:
		writeResponse(w, r, res)
	case errors.Is(err, worker.ErrNoResponse):
		logger.Warn(ctx, "no response available", observe.Field{Key: "error", Value: err.Error()})
		http.Error(w, "offline: no cached response available", http.StatusGatewayTimeout)
	case errors.Is(err, worker.ErrNoActiveWorker), errors.Is(err, worker.ErrNotActive):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, fetch.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Error(ctx, "fetch failed", observe.Field{Key: "error", Value: err.Error()})
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeResponse(w http.ResponseWriter, r *http.Request, res *worker.Result) {
	resp := res.Response
	header := w.Header()
	for k, vs := range resp.Header {
		header[k] = append([]string(nil), vs...)
	}
	header.Set(HeaderCacheSource, string(res.Source))
	header.Set(HeaderCacheStrategy, res.Strategy.String())
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(resp.Body)
	}
}

// TranslateRequest converts an incoming request into a fetch.Request. The
// mode comes from Sec-Fetch-Mode; without it a GET that prefers text/html
// is treated as a navigation.
func TranslateRequest(r *http.Request) (*fetch.Request, error) {
	mode := fetch.ModeNoCORS
	if v := r.Header.Get("Sec-Fetch-Mode"); v != "" {
		mode = fetch.ParseMode(v)
	} else if r.Method == http.MethodGet && prefersHTML(r.Header.Get("Accept")) {
		mode = fetch.ModeNavigate
	}

	req, err := fetch.NewRequest(r.Method, r.URL.RequestURI(), mode)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		req.Header[k] = append([]string(nil), vs...)
	}
	req.Header.Del(HeaderRequestID)
	return req, nil
}

// prefersHTML reports whether text/html has the highest quality of the
// media ranges in an Accept header.
func prefersHTML(accept string) bool {
	if accept == "" {
		return false
	}
	htmlQ, bestOther := -1.0, -1.0
	for _, part := range strings.Split(accept, ",") {
		mediaType, params, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		q := 1.0
		if v, ok := params["q"]; ok {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				q = parsed
			}
		}
		if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
			htmlQ = max(htmlQ, q)
			continue
		}
		bestOther = max(bestOther, q)
	}
	return htmlQ > 0 && htmlQ >= bestOther
}

var _ http.Handler = (*Handler)(nil)
