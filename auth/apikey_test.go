package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAPIKeyAuthenticator(t *testing.T) {
	a := NewAPIKeyAuthenticator("", APIKey{Hash: HashAPIKey("k-123"), Principal: "ops", Roles: []string{"admin"}})

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"valid", "k-123", nil},
		{"valid with whitespace", "  k-123 ", nil},
		{"wrong key", "k-999", ErrInvalidCredentials},
		{"missing", "", ErrMissingCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/_sw/skip-waiting", nil)
			if tt.key != "" {
				r.Header.Set("X-API-Key", tt.key)
			}
			id, err := a.Authenticate(r)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (id.Principal != "ops" || id.Method != AuthMethodAPIKey) {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}

func TestHashAPIKey(t *testing.T) {
	if HashAPIKey("a") == HashAPIKey("b") {
		t.Fatal("distinct keys must hash differently")
	}
	if len(HashAPIKey("a")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(HashAPIKey("a")))
	}
}
