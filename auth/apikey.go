package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// APIKey is a registered admin key.
type APIKey struct {
	// Hash is the SHA-256 hex digest of the key.
	Hash      string
	Principal string
	Roles     []string
}

// APIKeyAuthenticator validates static API keys.
type APIKeyAuthenticator struct {
	header string
	keys   []APIKey
}

// NewAPIKeyAuthenticator creates an authenticator reading header.
// An empty header defaults to "X-API-Key".
func NewAPIKeyAuthenticator(header string, keys ...APIKey) *APIKeyAuthenticator {
	if header == "" {
		header = "X-API-Key"
	}
	return &APIKeyAuthenticator{header: header, keys: keys}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Supports reports whether the request carries the API key header.
func (a *APIKeyAuthenticator) Supports(r *http.Request) bool {
	return r.Header.Get(a.header) != ""
}

// Authenticate hashes the presented key and compares it against every
// registered hash in constant time.
func (a *APIKeyAuthenticator) Authenticate(r *http.Request) (*Identity, error) {
	key := strings.TrimSpace(r.Header.Get(a.header))
	if key == "" {
		return nil, ErrMissingCredentials
	}

	presented := HashAPIKey(key)
	var match *APIKey
	for i := range a.keys {
		if subtle.ConstantTimeCompare([]byte(presented), []byte(a.keys[i].Hash)) == 1 {
			match = &a.keys[i]
		}
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}

	return &Identity{
		Principal: match.Principal,
		Roles:     match.Roles,
		Method:    AuthMethodAPIKey,
		Claims:    map[string]any{},
	}, nil
}

// HashAPIKey returns the SHA-256 hex digest used to register a key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

var _ Authenticator = (*APIKeyAuthenticator)(nil)
