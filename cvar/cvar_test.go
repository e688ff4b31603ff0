package cvar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagHas(t *testing.T) {
	f := FlagClientMutable | FlagNoSave
	assert.True(t, f.Has(FlagClientMutable))
	assert.True(t, f.Has(FlagNoSave))
	assert.True(t, f.Has(FlagClientMutable|FlagNoSave))
	assert.False(t, f.Has(FlagProtected))
	assert.False(t, f.Has(FlagClientMutable|FlagProtected))
}

func TestValueConstructors(t *testing.T) {
	assert.Equal(t, Value{Kind: KindBool, Bool: true}, BoolValue(true))
	assert.Equal(t, Value{Kind: KindInt, Int: 42}, IntValue(42))
	assert.Equal(t, Value{Kind: KindFloat, Float: 1.5}, FloatValue(1.5))
	assert.Equal(t, Value{Kind: KindString, String: "x"}, StringValue("x"))
}

func TestCVarResolutionOrder(t *testing.T) {
	t.Run("defaults to client value with no overrides", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.a", KindInt, IntValue(1), FlagClientMutable|FlagServerPushed|FlagSkinPushed)
		assert.Equal(t, IntValue(1), cv.Effective())
	})

	t.Run("client overrides default", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.b", KindInt, IntValue(1), FlagClientMutable)
		assert.True(t, cv.SetClient(IntValue(2)))
		assert.Equal(t, IntValue(2), cv.Effective())
	})

	t.Run("skin overrides client", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.c", KindInt, IntValue(1), FlagClientMutable|FlagSkinPushed)
		cv.SetClient(IntValue(2))
		assert.True(t, cv.PushSkin(IntValue(3)))
		assert.Equal(t, IntValue(3), cv.Effective())

		cv.ClearSkin()
		assert.Equal(t, IntValue(2), cv.Effective())
	})

	t.Run("server overrides skin and client", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.d", KindInt, IntValue(1), FlagClientMutable|FlagSkinPushed|FlagServerPushed)
		cv.SetClient(IntValue(2))
		cv.PushSkin(IntValue(3))
		assert.True(t, cv.PushServer(IntValue(4)))
		assert.Equal(t, IntValue(4), cv.Effective())

		cv.ClearServer()
		assert.Equal(t, IntValue(3), cv.Effective())
	})

	t.Run("unflagged setters are rejected", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.e", KindInt, IntValue(1), 0)
		assert.False(t, cv.SetClient(IntValue(2)))
		assert.False(t, cv.PushServer(IntValue(2)))
		assert.False(t, cv.PushSkin(IntValue(2)))
		assert.Equal(t, IntValue(1), cv.Effective())
	})

	t.Run("protected cvar forces default during multiplayer regardless of overrides", func(t *testing.T) {
		r := NewRegistry()
		cv := r.Register("test.f", KindInt, IntValue(1), FlagClientMutable|FlagServerPushed|FlagProtected)
		cv.SetClient(IntValue(2))
		cv.PushServer(IntValue(3))
		assert.Equal(t, IntValue(3), cv.Effective())

		r.SetMultiplayer(true)
		assert.Equal(t, IntValue(1), cv.Effective())

		r.SetMultiplayer(false)
		assert.Equal(t, IntValue(3), cv.Effective())
	})
}

func TestCVarOnChange(t *testing.T) {
	r := NewRegistry()
	cv := r.Register("test.g", KindInt, IntValue(1), FlagClientMutable)

	var fired int
	var lastOld, lastNew Value
	cv.OnChange(func(oldValue, newValue Value) {
		fired++
		lastOld = oldValue
		lastNew = newValue
	})

	cv.SetClient(IntValue(1)) // same value, no-op
	assert.Equal(t, 0, fired)

	cv.SetClient(IntValue(5))
	require.Equal(t, 1, fired)
	assert.Equal(t, IntValue(1), lastOld)
	assert.Equal(t, IntValue(5), lastNew)

	cv.SetClient(IntValue(5)) // unchanged again
	assert.Equal(t, 1, fired)
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("test.dup", KindBool, BoolValue(false), 0)
	assert.Panics(t, func() {
		r.Register("test.dup", KindBool, BoolValue(true), 0)
	})
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", KindBool, BoolValue(false), 0)
	r.Register("alpha", KindBool, BoolValue(false), 0)
	r.Register("mu", KindBool, BoolValue(false), 0)

	assert.Equal(t, []string{"alpha", "mu", "zeta"}, r.Names())
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Get("nope"))
}
