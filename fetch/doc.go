// Package fetch models the requests a controlled page issues and the network
// side that answers them.
//
// A Fetcher resolves a Request to a cache.Response or fails with an error
// wrapping ErrNetwork. HTTP error statuses are responses, not failures;
// only transport problems (refused connections, resets, timeouts, open
// circuits) count as network failures.
package fetch
