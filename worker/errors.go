package worker

import "errors"

var (
	// ErrInvalidConfig indicates a Config failed validation.
	ErrInvalidConfig = errors.New("worker: invalid config")

	// ErrInstallFailed indicates a shell resource could not be fetched or stored.
	ErrInstallFailed = errors.New("worker: install failed")

	// ErrInvalidState indicates a lifecycle call out of order.
	ErrInvalidState = errors.New("worker: invalid lifecycle state")

	// ErrNotActive indicates a fetch on a controller that is not activated.
	ErrNotActive = errors.New("worker: controller not active")

	// ErrNoResponse indicates every fallback layer was exhausted.
	ErrNoResponse = errors.New("worker: no response available")

	// ErrNoActiveWorker indicates a registration with no active controller.
	ErrNoActiveWorker = errors.New("worker: no active controller")

	// ErrNoWaitingWorker indicates SkipWaiting with nothing waiting.
	ErrNoWaitingWorker = errors.New("worker: no waiting controller")
)
