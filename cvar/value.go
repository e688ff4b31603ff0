// Package cvar implements the named, typed, flagged configuration values
// ("cvars") the core reads every frame: bool/int/float/string settings
// with a default, an optional server-pushed and skin-pushed override, and
// a resolution order the multiplayer state can override. Reads are
// lock-free cached snapshots invalidated on any write, so a hot render
// loop never blocks on a writer.
package cvar

// Kind tags which field of Value is meaningful.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindFloat
	KindString
)

// Value is a tagged union over the four cvar value types. It is copied by
// value (never pointed to across goroutines) so snapshotting it is just an
// atomic pointer swap to a freshly allocated copy.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	String string
}

// BoolValue, IntValue, FloatValue, and StringValue build a Value of the
// matching Kind.
func BoolValue(v bool) Value      { return Value{Kind: KindBool, Bool: v} }
func IntValue(v int64) Value      { return Value{Kind: KindInt, Int: v} }
func FloatValue(v float64) Value  { return Value{Kind: KindFloat, Float: v} }
func StringValue(v string) Value  { return Value{Kind: KindString, String: v} }

// Flag marks cross-cutting behavior a cvar opts into. A cvar can carry any
// combination simultaneously (e.g. both NoSave and Protected).
type Flag uint32

const (
	// FlagClientMutable allows the local client/UI to change the value
	// directly (as opposed to only being set by server/skin push).
	FlagClientMutable Flag = 1 << iota
	// FlagServerPushed allows a connected server to override the value.
	FlagServerPushed
	// FlagSkinPushed allows the active skin to override the value.
	FlagSkinPushed
	// FlagProtected forces the cvar back to its default while in
	// multiplayer, regardless of client/server/skin overrides.
	FlagProtected
	// FlagGameplayAffecting marks a cvar whose value can influence
	// replay/score validity.
	FlagGameplayAffecting
	// FlagHidden excludes a cvar from any in-game listing/search.
	FlagHidden
	// FlagNoSave excludes a cvar's client value from persistence.
	FlagNoSave
	// FlagNoLoad skips restoring a cvar's client value from the config
	// file at startup (it always starts at its default).
	FlagNoLoad
)

// Has reports whether f includes all bits of other.
func (f Flag) Has(other Flag) bool { return f&other == other }
