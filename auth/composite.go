package auth

import "net/http"

// Composite tries authenticators in order and returns the first success.
type Composite struct {
	authenticators []Authenticator
}

// NewComposite creates a composite authenticator.
func NewComposite(auths ...Authenticator) *Composite {
	return &Composite{authenticators: auths}
}

// Name returns "composite".
func (c *Composite) Name() string { return "composite" }

// Supports reports whether any member supports the request.
func (c *Composite) Supports(r *http.Request) bool {
	for _, a := range c.authenticators {
		if a.Supports(r) {
			return true
		}
	}
	return false
}

// Authenticate returns the first successful identity. When every supporting
// member fails, the last failure is returned.
func (c *Composite) Authenticate(r *http.Request) (*Identity, error) {
	err := ErrMissingCredentials
	for _, a := range c.authenticators {
		if !a.Supports(r) {
			continue
		}
		id, aerr := a.Authenticate(r)
		if aerr == nil {
			return id, nil
		}
		err = aerr
	}
	return nil, err
}

var _ Authenticator = (*Composite)(nil)
