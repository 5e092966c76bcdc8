package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/shellcache/fetch"
	"github.com/jonwraymond/shellcache/observe"
)

// Registration is the host scope of a controller lineage. It holds at most
// one active and one waiting controller.
type Registration struct {
	mw *observe.Middleware

	// mu guards the slots. Fetch never takes it and installs run outside it.
	mu      sync.Mutex
	active  atomic.Pointer[Controller]
	waiting *Controller
	// retired holds redundant controllers with background writes left.
	retired []*Controller
	// installing counts in-flight installs per shell partition; activation
	// leaves those partitions alone.
	installing map[string]int
}

// NewRegistration creates an empty registration. A nil middleware records
// nothing.
func NewRegistration(mw *observe.Middleware) *Registration {
	if mw == nil {
		mw = observe.NopMiddleware()
	}
	return &Registration{mw: mw, installing: map[string]int{}}
}

// Register installs ctrl. Install failure leaves the current active
// controller serving and returns the error. On success ctrl is activated
// when it skips waiting or nothing is active yet; otherwise it replaces any
// waiting controller. Concurrent registrations are settled in the order
// their installs complete.
func (r *Registration) Register(ctx context.Context, ctrl *Controller) error {
	shell := ctrl.cfg.ShellPartition()
	r.mu.Lock()
	r.installing[shell]++
	r.mu.Unlock()

	err := ctrl.Install(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installing[shell]--; r.installing[shell] <= 0 {
		delete(r.installing, shell)
	}
	if err != nil {
		return err
	}
	if ctrl.cfg.SkipWaiting || r.active.Load() == nil {
		if r.waiting != nil {
			r.retireLocked(r.waiting)
			r.waiting = nil
		}
		return r.activateLocked(ctx, ctrl)
	}

	if r.waiting != nil {
		r.retireLocked(r.waiting)
	}
	r.waiting = ctrl
	return nil
}

// SkipWaiting activates the waiting controller.
func (r *Registration) SkipWaiting(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.waiting == nil {
		return ErrNoWaitingWorker
	}
	ctrl := r.waiting
	r.waiting = nil
	return r.activateLocked(ctx, ctrl)
}

func (r *Registration) activateLocked(ctx context.Context, ctrl *Controller) error {
	keep := make([]string, 0, len(r.installing))
	for name := range r.installing {
		keep = append(keep, name)
	}
	if _, err := ctrl.activate(ctx, keep); err != nil {
		return err
	}

	// Claim: every fetch from here on routes to ctrl.
	previous := r.active.Swap(ctrl)
	fields := []observe.Field{}
	if previous != nil && previous != ctrl {
		r.retireLocked(previous)
		fields = append(fields, observe.Field{Key: "sw.previous", Value: previous.Version()})
	}
	r.mw.Lifecycle(ctx, observe.EventClaim, ctrl.Version(), nil, fields...)
	return nil
}

// retireLocked marks ctrl redundant and keeps it only while it has
// background writes left; controllers that finished draining are dropped.
func (r *Registration) retireLocked(ctrl *Controller) {
	ctrl.retire()
	var kept []*Controller
	for _, c := range append(r.retired, ctrl) {
		if c.writer.Pending() > 0 {
			kept = append(kept, c)
		}
	}
	r.retired = kept
}

// Active returns the active controller, or nil.
func (r *Registration) Active() *Controller {
	return r.active.Load()
}

// Waiting returns the installed controller waiting for activation, or nil.
func (r *Registration) Waiting() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waiting
}

// Fetch routes req to the active controller. A fetch that raced an
// activation is retried once on the new controller.
func (r *Registration) Fetch(ctx context.Context, req *fetch.Request) (*Result, error) {
	ctrl := r.active.Load()
	if ctrl == nil {
		return nil, ErrNoActiveWorker
	}
	res, err := ctrl.Fetch(ctx, req)
	if errors.Is(err, ErrNotActive) {
		if next := r.active.Load(); next != nil && next != ctrl {
			return next.Fetch(ctx, req)
		}
	}
	return res, err
}

// ActiveShell reports the shell partition and keys of the active controller.
func (r *Registration) ActiveShell() (string, []string, bool) {
	ctrl := r.active.Load()
	if ctrl == nil {
		return "", nil, false
	}
	return ctrl.cfg.ShellPartition(), ctrl.ShellKeys(), true
}

// Drain waits for background writes of every controller this registration
// has held.
func (r *Registration) Drain() {
	r.mu.Lock()
	ctrls := append([]*Controller(nil), r.retired...)
	r.retired = nil
	if w := r.waiting; w != nil {
		ctrls = append(ctrls, w)
	}
	if a := r.active.Load(); a != nil {
		ctrls = append(ctrls, a)
	}
	r.mu.Unlock()

	for _, c := range ctrls {
		c.Wait()
	}
}
