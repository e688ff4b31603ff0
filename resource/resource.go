// Package resource implements the two-phase asset lifecycle shared by every
// loadable asset (images, skins, beatmap metadata, fonts): a worker-thread
// phase that produces CPU-side state, followed by a main-thread phase that
// finalizes it (typically a GPU upload). Every resource is cancellable at
// coarse checkpoints via an interrupt flag, and every load is single-flight
// per name.
package resource

import (
	"sync/atomic"

	"github.com/kiwec/neosu-sub001/errors"
)

// Lifecycle is implemented by anything loadable through a Manager. Hooks are
// invoked by the Manager in the order InitAsync (worker), Init (main
// thread), Destroy (main thread, on release, repeat-safe).
type Lifecycle interface {
	// InitAsync produces CPU-side state. It runs on a worker goroutine and
	// must poll Interrupted at coarse points, returning early (with no
	// error) if it reports true.
	InitAsync(interrupted func() bool) error

	// Init finalizes the resource on the caller's goroutine after InitAsync
	// has succeeded. Typically a GPU upload or similar handoff.
	Init() error

	// Destroy releases any resources held. Must be safe to call more than
	// once and must not block on anything that InitAsync/Init could still
	// be running.
	Destroy()
}

type state int32

const (
	stateNotLoaded state = iota
	stateLoading
	stateAsyncReady
	stateReady
	stateFailed
)

// Handle is the lifecycle state machine for a single named resource. A
// Handle is created by Manager.Load and is safe to poll from any goroutine.
type Handle struct {
	name string
	impl Lifecycle

	state       atomic.Int32
	interrupted atomic.Bool

	asyncErr error
	initErr  error
}

// Name returns the resource's identifying name, used for single-flight
// coalescing by the owning Manager.
func (h *Handle) Name() string { return h.name }

// IsAsyncReady reports whether InitAsync has completed successfully and Init
// has not yet run.
func (h *Handle) IsAsyncReady() bool { return state(h.state.Load()) == stateAsyncReady }

// IsReady reports whether both lifecycle phases have completed
// successfully.
func (h *Handle) IsReady() bool { return state(h.state.Load()) == stateReady }

// IsFailed reports whether either lifecycle phase returned an error or
// observed an interruption before async_ready was reached.
func (h *Handle) IsFailed() bool { return state(h.state.Load()) == stateFailed }

// IsLoading reports whether the resource has been submitted but has not yet
// reached async_ready, ready, or failed.
func (h *Handle) IsLoading() bool { return state(h.state.Load()) == stateLoading }

// Err returns whichever lifecycle error occurred, or nil.
func (h *Handle) Err() error {
	if h.asyncErr != nil {
		return h.asyncErr
	}
	return h.initErr
}

// InterruptLoad is the universal cancellation primitive: it asks an
// in-flight InitAsync to return early. Safe to call from any goroutine, any
// number of times.
func (h *Handle) InterruptLoad() { h.interrupted.Store(true) }

// Interrupted reports whether InterruptLoad has been called. Lifecycle
// implementations should poll this via the function passed to InitAsync
// rather than calling it directly, keeping the contract symmetric with the
// worker-side closure.
func (h *Handle) Interrupted() bool { return h.interrupted.Load() }

// runAsync executes InitAsync and transitions state accordingly. Called
// only by a Manager worker.
func (h *Handle) runAsync() {
	err := h.impl.InitAsync(h.Interrupted)
	if h.Interrupted() {
		h.state.Store(int32(stateFailed))
		h.asyncErr = errors.ErrInterrupted
		return
	}
	if err != nil {
		h.state.Store(int32(stateFailed))
		h.asyncErr = err
		return
	}
	h.state.Store(int32(stateAsyncReady))
}

// finalize executes Init and transitions state accordingly. Called only by
// Manager.Update on the caller's goroutine.
func (h *Handle) finalize() {
	if err := h.impl.Init(); err != nil {
		h.state.Store(int32(stateFailed))
		h.initErr = err
		return
	}
	h.state.Store(int32(stateReady))
}

// Destroy tears the resource down and resets it to not-loaded, so it can be
// reloaded. Idempotent: it first marks the resource interrupted (so any
// InitAsync still in flight on a worker goroutine observes it and returns
// early rather than racing the destroy hook), then calls the subtype's
// Destroy, then clears state. Must run on the caller's goroutine (typically
// the main thread), matching Lifecycle.Destroy's contract.
func (h *Handle) Destroy() {
	h.InterruptLoad()
	h.impl.Destroy()
	h.state.Store(int32(stateNotLoaded))
	h.asyncErr = nil
	h.initErr = nil
	h.interrupted.Store(false)
}
