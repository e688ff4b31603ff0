// Package gpuupload runs a dedicated goroutine that owns a GPU device and
// queue, consuming upload requests produced by decode workers and producing
// fence handles that the requesting image later waits on. This keeps GPU
// API calls off both the render thread and the decode workers.
package gpuupload

import (
	"sync/atomic"
)

// fenceState is the tagged union backing Slot: NotQueued, Pending, or Ready
// (with a texture attached). Go has no sum types, so the state int and the
// texture pointer are updated together under the same atomic handoff.
type fenceState int32

const (
	// NotQueued means no upload has ever been requested for this slot.
	NotQueued fenceState = iota
	// Pending means a request was submitted and is waiting in the queue or
	// being processed by the GPU goroutine.
	Pending
	// Ready means the upload finished and Texture() returns a usable handle.
	Ready
)

// Slot is an atomic handoff point between a decode worker, the uploader
// goroutine, and the main thread's finalize step. One Slot is embedded per
// image. It must not be copied after first use.
type Slot struct {
	state   atomic.Int32
	texture atomic.Pointer[Texture]
}

// State reports the slot's current tagged-union state.
func (s *Slot) State() fenceState { return fenceState(s.state.Load()) }

// markPending CAS-stores the pending sentinel. It returns false if the slot
// was already Pending or Ready, meaning the image was already queued (or
// uploaded) and the caller must not submit a duplicate request.
func (s *Slot) markPending() bool {
	return s.state.CompareAndSwap(int32(NotQueued), int32(Pending))
}

// resolve stores tex and flips the slot to Ready, overwriting the pending
// sentinel. Called only by the uploader goroutine.
func (s *Slot) resolve(tex *Texture) {
	s.texture.Store(tex)
	s.state.Store(int32(Ready))
}

// reset clears the slot back to NotQueued, used when a request is dropped
// because the image was interrupted before upload started.
func (s *Slot) reset() {
	s.texture.Store(nil)
	s.state.Store(int32(NotQueued))
}

// Texture retrieves and clears a Ready slot's handle in one step, the
// pattern Image.Init uses: take ownership of the handle and return the slot
// to NotQueued so a future reload can reuse it.
func (s *Slot) Texture() *Texture {
	tex := s.texture.Load()
	if tex == nil {
		return nil
	}
	s.texture.Store(nil)
	s.state.Store(int32(NotQueued))
	return tex
}
