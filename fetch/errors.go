package fetch

import "errors"

var (
	// ErrNetwork marks a request that produced no response at all.
	ErrNetwork = errors.New("fetch: network error")

	// ErrBodyTooLarge is returned when a response body exceeds the limit.
	ErrBodyTooLarge = errors.New("fetch: response body too large")

	// ErrInvalidRequest is returned for requests without a method or URL.
	ErrInvalidRequest = errors.New("fetch: invalid request")
)

// IsNetworkError reports whether err means the network gave no response.
func IsNetworkError(err error) bool {
	return errors.Is(err, ErrNetwork)
}
