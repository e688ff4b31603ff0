package cvar

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kiwec/neosu-sub001/errors"
	"github.com/kiwec/neosu-sub001/logger"
)

// Registry owns every registered CVar by name and the multiplayer flag
// that Protected cvars consult.
type Registry struct {
	log *zap.SugaredLogger

	mu   sync.RWMutex
	vars map[string]*CVar

	multiplayer atomic.Bool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		log:  logger.ComponentLogger("cvar"),
		vars: make(map[string]*CVar),
	}
}

// Register creates and stores a new cvar. Panics if name is already
// registered, since that indicates a programming error (two subsystems
// claiming the same cvar name), not a runtime condition to recover from.
func (r *Registry) Register(name string, kind Kind, def Value, flags Flag) *CVar {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.vars[name]; exists {
		panic("cvar: duplicate registration: " + name)
	}
	cv := newCVar(name, kind, def, flags, &r.multiplayer)
	r.vars[name] = cv
	return cv
}

// Get returns the cvar named name, or nil if it was never registered.
func (r *Registry) Get(name string) *CVar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.vars[name]
}

// Names returns every registered cvar name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.vars))
	for name := range r.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetMultiplayer toggles the flag Protected cvars consult, recomputing
// every protected cvar's cached snapshot so reads observe it immediately.
func (r *Registry) SetMultiplayer(on bool) {
	if r.multiplayer.Swap(on) == on {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cv := range r.vars {
		if cv.Flags().Has(FlagProtected) {
			cv.onMultiplayerChanged()
		}
	}
}

// InMultiplayer reports the current multiplayer flag.
func (r *Registry) InMultiplayer() bool { return r.multiplayer.Load() }

// LoadFromViper restores every client-mutable, loadable cvar's client
// value from v, leaving unset keys (and NoLoad cvars) at their default.
func (r *Registry) LoadFromViper(v *viper.Viper) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, cv := range r.vars {
		if cv.Flags().Has(FlagNoLoad) || !cv.Flags().Has(FlagClientMutable) {
			continue
		}
		if !v.IsSet(name) {
			continue
		}
		val, err := valueFromViper(v, name, cv.Kind())
		if err != nil {
			return errors.Wrapf(err, "loading cvar %s", name)
		}
		cv.client = val
		cv.recompute()
	}
	return nil
}

// SaveToViper writes every saveable cvar's client value into v, leaving
// NoSave cvars untouched.
func (r *Registry) SaveToViper(v *viper.Viper) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, cv := range r.vars {
		if cv.Flags().Has(FlagNoSave) {
			continue
		}
		cv.mu.Lock()
		client := cv.client
		cv.mu.Unlock()

		switch client.Kind {
		case KindBool:
			v.Set(name, client.Bool)
		case KindInt:
			v.Set(name, client.Int)
		case KindFloat:
			v.Set(name, client.Float)
		case KindString:
			v.Set(name, client.String)
		}
	}
}

func valueFromViper(v *viper.Viper, name string, kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		return BoolValue(v.GetBool(name)), nil
	case KindInt:
		return IntValue(v.GetInt64(name)), nil
	case KindFloat:
		return FloatValue(v.GetFloat64(name)), nil
	case KindString:
		return StringValue(v.GetString(name)), nil
	default:
		return Value{}, errors.Newf("unknown cvar kind for %s", name)
	}
}
