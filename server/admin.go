package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/jonwraymond/shellcache/auth"
	"github.com/jonwraymond/shellcache/cache"
	"github.com/jonwraymond/shellcache/observe"
	"github.com/jonwraymond/shellcache/worker"
)

// AdminPrefix is the path prefix of the admin API.
const AdminPrefix = "/_sw/"

// ControllerFactory builds a fresh controller for the configured version.
type ControllerFactory func(ctx context.Context) (*worker.Controller, error)

// AdminConfig configures the admin API.
type AdminConfig struct {
	Registration *worker.Registration
	Storage      cache.Storage

	// Factory backs POST /_sw/update. When nil the endpoint answers 501.
	Factory ControllerFactory

	// Authenticator guards every admin endpoint. Nil leaves them open.
	Authenticator auth.Authenticator

	// Role, when set, is required of authenticated callers.
	Role string

	Logger observe.Logger
}

// StatusResponse is the JSON body of GET /_sw/status.
type StatusResponse struct {
	Active     *ControllerStatus `json:"active,omitempty"`
	Waiting    *ControllerStatus `json:"waiting,omitempty"`
	Partitions []string          `json:"partitions"`
}

// ControllerStatus describes one controller.
type ControllerStatus struct {
	Version     string     `json:"version"`
	State       string     `json:"state"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type admin struct {
	reg     *worker.Registration
	storage cache.Storage
	factory ControllerFactory
	logger  observe.Logger
}

// NewAdminHandler returns the admin API. Paths are absolute, rooted at
// AdminPrefix.
func NewAdminHandler(config AdminConfig) http.Handler {
	if config.Logger == nil {
		config.Logger = observe.NopLogger()
	}
	a := &admin{
		reg:     config.Registration,
		storage: config.Storage,
		factory: config.Factory,
		logger:  config.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AdminPrefix+"status", a.status)
	mux.HandleFunc("POST "+AdminPrefix+"skip-waiting", a.skipWaiting)
	mux.HandleFunc("POST "+AdminPrefix+"update", a.update)

	var h http.Handler = mux
	if config.Role != "" {
		h = auth.RequireRole(config.Role, h)
	}
	return auth.Middleware(config.Authenticator, h)
}

func (a *admin) status(w http.ResponseWriter, r *http.Request) {
	a.writeStatus(w, r)
}

func (a *admin) skipWaiting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := a.reg.SkipWaiting(ctx); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, worker.ErrNoWaitingWorker) {
			code = http.StatusConflict
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}
	a.logger.Info(ctx, "skip waiting requested", a.caller(ctx)...)
	a.writeStatus(w, r)
}

func (a *admin) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if a.factory == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "update is not configured"})
		return
	}
	ctrl, err := a.factory(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	a.logger.Info(ctx, "update requested", append(a.caller(ctx), observe.Field{Key: "sw.version", Value: ctrl.Version()})...)
	if err := a.reg.Register(ctx, ctrl); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, worker.ErrInstallFailed) {
			code = http.StatusBadGateway
		}
		writeJSON(w, code, errorResponse{Error: err.Error()})
		return
	}
	a.writeStatus(w, r)
}

func (a *admin) writeStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := a.snapshot(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *admin) snapshot(ctx context.Context) (StatusResponse, error) {
	names, err := a.storage.Names(ctx)
	if err != nil {
		return StatusResponse{}, err
	}
	if names == nil {
		names = []string{}
	}
	return StatusResponse{
		Active:     describe(a.reg.Active()),
		Waiting:    describe(a.reg.Waiting()),
		Partitions: names,
	}, nil
}

func (a *admin) caller(ctx context.Context) []observe.Field {
	if p := auth.PrincipalFromContext(ctx); p != "" {
		return []observe.Field{{Key: "principal", Value: p}}
	}
	return nil
}

func describe(ctrl *worker.Controller) *ControllerStatus {
	if ctrl == nil {
		return nil
	}
	s := &ControllerStatus{Version: ctrl.Version(), State: ctrl.State().String()}
	if t := ctrl.InstalledAt(); !t.IsZero() {
		s.InstalledAt = &t
	}
	if t := ctrl.ActivatedAt(); !t.IsZero() {
		s.ActivatedAt = &t
	}
	return s
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
