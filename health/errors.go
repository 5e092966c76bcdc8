package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrNoActiveShell indicates no controller is active yet.
	ErrNoActiveShell = errors.New("health: no active shell")

	// ErrShellIncomplete indicates shell entries are missing from the shell partition.
	ErrShellIncomplete = errors.New("health: shell partition incomplete")
)
