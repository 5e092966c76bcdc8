package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonwraymond/shellcache/auth"
	"github.com/jonwraymond/shellcache/worker"
)

func adminDo(t *testing.T, h http.Handler, method, path string, header http.Header) (*httptest.ResponseRecorder, StatusResponse) {
	t.Helper()
	rec := do(h, method, path, header)
	var status StatusResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec, status
}

func TestAdmin_Status(t *testing.T) {
	f := newFixture(t)
	h := NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage})

	rec, status := adminDo(t, h, http.MethodGet, "/_sw/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if status.Active == nil || status.Active.Version != "v1" || status.Active.State != "activated" {
		t.Fatalf("active = %+v", status.Active)
	}
	if status.Active.ActivatedAt == nil {
		t.Error("activated_at missing")
	}
	if status.Waiting != nil {
		t.Errorf("waiting = %+v, want none", status.Waiting)
	}
	if len(status.Partitions) != 1 || status.Partitions[0] != "lph-shell-v1" {
		t.Errorf("partitions = %v", status.Partitions)
	}
}

func TestAdmin_SkipWaiting(t *testing.T) {
	f := newFixture(t)
	h := NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage})

	if rec := do(h, http.MethodPost, "/_sw/skip-waiting", nil); rec.Code != http.StatusConflict {
		t.Fatalf("nothing waiting: status = %d, want 409", rec.Code)
	}

	f.origin.setVersion("v2")
	if err := f.reg.Register(context.Background(), f.controller(t, "v2", false)); err != nil {
		t.Fatalf("Register v2: %v", err)
	}
	_, status := adminDo(t, h, http.MethodGet, "/_sw/status", nil)
	if status.Waiting == nil || status.Waiting.State != "installed" {
		t.Fatalf("waiting = %+v", status.Waiting)
	}

	rec, status := adminDo(t, h, http.MethodPost, "/_sw/skip-waiting", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("skip-waiting = %d %s", rec.Code, rec.Body.String())
	}
	if status.Active == nil || status.Active.Version != "v2" || status.Waiting != nil {
		t.Fatalf("after skip-waiting: active %+v waiting %+v", status.Active, status.Waiting)
	}
	for _, name := range status.Partitions {
		if name == "lph-shell-v1" {
			t.Error("v1 shell survived activation of v2")
		}
	}
}

func TestAdmin_Update(t *testing.T) {
	f := newFixture(t)

	h := NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage})
	if rec := do(h, http.MethodPost, "/_sw/update", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("no factory: status = %d, want 501", rec.Code)
	}

	factory := func(context.Context) (*worker.Controller, error) {
		return f.controller(t, "v1", true), nil
	}
	h = NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage, Factory: factory})

	before := f.reg.Active()
	rec, status := adminDo(t, h, http.MethodPost, "/_sw/update", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	if f.reg.Active() == before {
		t.Error("update did not replace the active controller")
	}
	if before.State() != worker.StateRedundant {
		t.Errorf("previous controller state = %v", before.State())
	}
	if status.Active.Version != "v1" {
		t.Errorf("active version = %q", status.Active.Version)
	}

	f.origin.offline.Store(true)
	current := f.reg.Active()
	if rec := do(h, http.MethodPost, "/_sw/update", nil); rec.Code != http.StatusBadGateway {
		t.Fatalf("offline update: status = %d, want 502", rec.Code)
	}
	if f.reg.Active() != current {
		t.Error("failed update replaced the active controller")
	}

	failing := func(context.Context) (*worker.Controller, error) { return nil, errors.New("bad manifest") }
	h = NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage, Factory: failing})
	if rec := do(h, http.MethodPost, "/_sw/update", nil); rec.Code != http.StatusInternalServerError {
		t.Errorf("factory error: status = %d, want 500", rec.Code)
	}
}

func TestAdmin_Auth(t *testing.T) {
	f := newFixture(t)
	keys := auth.NewAPIKeyAuthenticator("", auth.APIKey{
		Hash:      auth.HashAPIKey("operator-key"),
		Principal: "operator",
		Roles:     []string{"viewer"},
	})

	h := NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage, Authenticator: keys})
	if rec := do(h, http.MethodGet, "/_sw/status", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/_sw/status", http.Header{"X-Api-Key": {"operator-key"}}); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}

	h = NewAdminHandler(AdminConfig{Registration: f.reg, Storage: f.storage, Authenticator: keys, Role: "admin"})
	if rec := do(h, http.MethodGet, "/_sw/status", http.Header{"X-Api-Key": {"operator-key"}}); rec.Code != http.StatusForbidden {
		t.Errorf("missing role: status = %d, want 403", rec.Code)
	}
}
