package gpuupload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledUploader(t *testing.T) {
	t.Run("a nil device/queue uploader is disabled", func(t *testing.T) {
		u := New(nil, nil)
		defer u.Shutdown()
		assert.False(t, u.Enabled())
	})

	t.Run("enqueue on a disabled uploader fails and leaves the slot NotQueued", func(t *testing.T) {
		u := New(nil, nil)
		defer u.Shutdown()

		slot := &Slot{}
		ok := u.Enqueue(&Request{Slot: slot, Width: 4, Height: 4})
		assert.False(t, ok)
		assert.Equal(t, NotQueued, slot.State())
	})

	t.Run("a not-queued slot resolves to nil with no wait", func(t *testing.T) {
		slot := &Slot{}
		tex := WaitForSlot(slot, func() bool { return false })
		assert.Nil(t, tex)
	})
}

func TestSlot(t *testing.T) {
	t.Run("second markPending fails while first is outstanding", func(t *testing.T) {
		slot := &Slot{}
		require.True(t, slot.markPending())
		assert.False(t, slot.markPending())
	})

	t.Run("resolve then Texture returns the handle once and resets state", func(t *testing.T) {
		slot := &Slot{}
		require.True(t, slot.markPending())

		tex := &Texture{Width: 8, Height: 8}
		slot.resolve(tex)
		assert.Equal(t, Ready, slot.State())

		got := slot.Texture()
		assert.Same(t, tex, got)
		assert.Equal(t, NotQueued, slot.State())
		assert.Nil(t, slot.Texture())
	})

	t.Run("reset clears a pending slot back to NotQueued", func(t *testing.T) {
		slot := &Slot{}
		require.True(t, slot.markPending())
		slot.reset()
		assert.Equal(t, NotQueued, slot.State())
	})

	t.Run("WaitForSlot returns once the uploader resolves the slot asynchronously", func(t *testing.T) {
		slot := &Slot{}
		require.True(t, slot.markPending())

		go func() {
			time.Sleep(5 * time.Millisecond)
			slot.resolve(&Texture{Width: 1, Height: 1})
		}()

		tex := WaitForSlot(slot, func() bool { return false })
		require.NotNil(t, tex)
		assert.Equal(t, 1, tex.Width)
	})

	t.Run("WaitForSlot stops waiting once shuttingDown reports true", func(t *testing.T) {
		slot := &Slot{}
		require.True(t, slot.markPending())

		tex := WaitForSlot(slot, func() bool { return true })
		assert.Nil(t, tex)
	})
}

func TestTextureReleaseIsNilSafe(t *testing.T) {
	var tex *Texture
	assert.NotPanics(t, func() { tex.Release() })
}
