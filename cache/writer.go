package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// WriteMode controls whether a write-through completes before the response
// is handed back to the caller.
type WriteMode int

const (
	// WriteAwait performs the put before returning.
	WriteAwait WriteMode = iota
	// WriteBestEffort performs the put in the background. A reload issued
	// immediately after the response may not observe the entry yet.
	WriteBestEffort
)

// String returns the string representation of the mode.
func (m WriteMode) String() string {
	switch m {
	case WriteAwait:
		return "await"
	case WriteBestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// ParseWriteMode parses "await" or "best-effort". Empty means WriteAwait.
func ParseWriteMode(s string) (WriteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "await":
		return WriteAwait, nil
	case "best-effort", "besteffort", "background":
		return WriteBestEffort, nil
	default:
		return WriteAwait, fmt.Errorf("cache: unknown write mode %q", s)
	}
}

// WriteErrorFunc receives put failures. Failures never reach the response
// path; this hook exists so they can be logged and counted.
type WriteErrorFunc func(ctx context.Context, partition, key string, err error)

// Writer applies a WriteMode to partition puts.
type Writer struct {
	mode    WriteMode
	onError WriteErrorFunc
	wg      sync.WaitGroup
	pending atomic.Int64
}

// NewWriter creates a writer. onError may be nil.
func NewWriter(mode WriteMode, onError WriteErrorFunc) *Writer {
	return &Writer{mode: mode, onError: onError}
}

// Mode returns the configured write mode.
func (w *Writer) Mode() WriteMode {
	return w.mode
}

// Put stores a copy of resp in p under key. In best-effort mode the copy is
// taken synchronously and the put runs on its own goroutine, detached from
// ctx cancellation.
func (w *Writer) Put(ctx context.Context, p Partition, key string, resp *Response) {
	if resp == nil {
		w.report(ctx, p.Name(), key, ErrNilResponse)
		return
	}
	stored := resp.Clone()

	if w.mode == WriteBestEffort {
		bg := context.WithoutCancel(ctx)
		w.wg.Add(1)
		w.pending.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.pending.Add(-1)
			if err := p.Put(bg, key, stored); err != nil {
				w.report(bg, p.Name(), key, err)
			}
		}()
		return
	}

	if err := p.Put(ctx, key, stored); err != nil {
		w.report(ctx, p.Name(), key, err)
	}
}

// Pending returns the number of background puts still running.
func (w *Writer) Pending() int64 {
	return w.pending.Load()
}

// Wait blocks until all background puts have finished.
func (w *Writer) Wait() {
	w.wg.Wait()
}

func (w *Writer) report(ctx context.Context, partition, key string, err error) {
	if w.onError != nil {
		w.onError(ctx, partition, key, err)
	}
}
