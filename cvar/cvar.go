package cvar

import (
	"sync"
	"sync/atomic"
)

// ChangeCallback is invoked synchronously, in registration order, whenever
// a write changes a cvar's effective value.
type ChangeCallback func(oldValue, newValue Value)

// CVar is a single named configuration value. Reads go through Effective,
// a lock-free load of a cached snapshot; every setter recomputes that
// snapshot before returning.
type CVar struct {
	name  string
	kind  Kind
	flags Flag
	def   Value

	mu        sync.Mutex
	client    Value
	server    Value
	serverSet bool
	skin      Value
	skinSet   bool
	callbacks []ChangeCallback

	multiplayer *atomic.Bool
	snapshot    atomic.Pointer[Value]
}

func newCVar(name string, kind Kind, def Value, flags Flag, multiplayer *atomic.Bool) *CVar {
	cv := &CVar{
		name:        name,
		kind:        kind,
		flags:       flags,
		def:         def,
		client:      def,
		multiplayer: multiplayer,
	}
	cv.recompute()
	return cv
}

// Name returns the cvar's registered name.
func (cv *CVar) Name() string { return cv.name }

// Kind returns the cvar's value type.
func (cv *CVar) Kind() Kind { return cv.kind }

// Flags returns the cvar's flag bits.
func (cv *CVar) Flags() Flag { return cv.flags }

// Default returns the cvar's default value.
func (cv *CVar) Default() Value { return cv.def }

// Effective returns the cvar's current resolved value. Lock-free: it loads
// the cached snapshot, never touching cv.mu.
func (cv *CVar) Effective() Value {
	return *cv.snapshot.Load()
}

// resolveLocked computes (server if set) else (skin if set) else client,
// with protected cvars forced to default during multiplayer. Caller holds
// cv.mu.
func (cv *CVar) resolveLocked() Value {
	if cv.flags.Has(FlagProtected) && cv.multiplayer != nil && cv.multiplayer.Load() {
		return cv.def
	}
	if cv.serverSet {
		return cv.server
	}
	if cv.skinSet {
		return cv.skin
	}
	return cv.client
}

// recompute stores a fresh snapshot. Caller holds cv.mu, or calls this
// during construction before cv is shared.
func (cv *CVar) recompute() {
	v := cv.resolveLocked()
	cv.snapshot.Store(&v)
}

func (cv *CVar) setLocked(newVal Value) {
	old := cv.Effective()
	cv.recompute()
	newEffective := cv.Effective()
	if newEffective == old {
		return
	}
	callbacks := make([]ChangeCallback, len(cv.callbacks))
	copy(callbacks, cv.callbacks)
	for _, cb := range callbacks {
		cb(old, newEffective)
	}
}

// SetClient sets the client-side value. Returns false if FlagClientMutable
// is not set.
func (cv *CVar) SetClient(v Value) bool {
	if !cv.flags.Has(FlagClientMutable) {
		return false
	}
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.client = v
	cv.setLocked(v)
	return true
}

// PushServer sets the server override. Returns false if FlagServerPushed
// is not set.
func (cv *CVar) PushServer(v Value) bool {
	if !cv.flags.Has(FlagServerPushed) {
		return false
	}
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.server = v
	cv.serverSet = true
	cv.setLocked(v)
	return true
}

// ClearServer removes the server override, falling back to skin/client.
func (cv *CVar) ClearServer() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.serverSet = false
	cv.setLocked(cv.client)
}

// PushSkin sets the skin override. Returns false if FlagSkinPushed is not
// set.
func (cv *CVar) PushSkin(v Value) bool {
	if !cv.flags.Has(FlagSkinPushed) {
		return false
	}
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.skin = v
	cv.skinSet = true
	cv.setLocked(v)
	return true
}

// ClearSkin removes the skin override.
func (cv *CVar) ClearSkin() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.skinSet = false
	cv.setLocked(cv.client)
}

// onMultiplayerChanged recomputes the snapshot after the registry's
// multiplayer flag toggles, since Protected resolution depends on it.
func (cv *CVar) onMultiplayerChanged() {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.setLocked(cv.client)
}

// OnChange registers a callback fired (on the calling goroutine, i.e.
// whichever goroutine performed the write) whenever Effective changes.
func (cv *CVar) OnChange(cb ChangeCallback) {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	cv.callbacks = append(cv.callbacks, cb)
}
