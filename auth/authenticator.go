package auth

import "net/http"

// Authenticator validates the credentials carried by a request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns ErrMissingCredentials, ErrInvalidCredentials,
//   ErrTokenExpired or ErrTokenMalformed (possibly wrapped) on failure.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports reports whether the request carries this kind of credential.
	Supports(r *http.Request) bool

	// Authenticate validates credentials and returns the identity.
	Authenticate(r *http.Request) (*Identity, error)
}

// AuthenticatorFunc adapts a function to an Authenticator that supports
// every request.
type AuthenticatorFunc struct {
	name string
	fn   func(r *http.Request) (*Identity, error)
}

// NewAuthenticatorFunc creates an AuthenticatorFunc.
func NewAuthenticatorFunc(name string, fn func(r *http.Request) (*Identity, error)) *AuthenticatorFunc {
	return &AuthenticatorFunc{name: name, fn: fn}
}

// Name returns the authenticator name.
func (f *AuthenticatorFunc) Name() string { return f.name }

// Supports always returns true.
func (f *AuthenticatorFunc) Supports(*http.Request) bool { return true }

// Authenticate calls the wrapped function.
func (f *AuthenticatorFunc) Authenticate(r *http.Request) (*Identity, error) { return f.fn(r) }

var _ Authenticator = (*AuthenticatorFunc)(nil)
