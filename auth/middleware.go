package auth

import (
	"errors"
	"net/http"
)

// Middleware authenticates every request before next. Failures answer 401.
// A nil authenticator passes every request through.
func Middleware(a Authenticator, next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="shellcache"`)
			http.Error(w, unauthorizedMessage(err), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole answers 403 unless the authenticated identity has role.
// Requests without an identity (open admin API) pass through.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := IdentityFromContext(r.Context()); id != nil && !id.HasRole(role) {
			http.Error(w, ErrForbidden.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorizedMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredentials):
		return ErrMissingCredentials.Error()
	case errors.Is(err, ErrTokenExpired):
		return ErrTokenExpired.Error()
	default:
		return ErrInvalidCredentials.Error()
	}
}
