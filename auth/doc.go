// Package auth guards the shellcache admin endpoints.
//
// Two credential kinds are supported: HMAC-signed JWT bearer tokens and
// static API keys. Authenticators are combined with Composite and applied to
// an http.Handler with Middleware. The authenticated Identity is attached to
// the request context.
package auth
