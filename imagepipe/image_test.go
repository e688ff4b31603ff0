package imagepipe

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPNG(t *testing.T, path string, width, height int, fill color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestDecode(t *testing.T) {
	t.Run("decodes an opaque PNG into RGBA", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "opaque.png")
		writeTestPNG(t, path, 4, 4, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

		img, err := Decode(path, func() bool { return false })
		require.NoError(t, err)
		require.NotNil(t, img)
		assert.Equal(t, 4, img.Width)
		assert.Equal(t, 4, img.Height)
		assert.False(t, img.EntirelyTransparent)

		a, r, g, b := img.GetPixel(0, 0)
		assert.Equal(t, byte(255), a)
		assert.Equal(t, byte(10), r)
		assert.Equal(t, byte(20), g)
		assert.Equal(t, byte(30), b)
	})

	t.Run("detects a fully transparent PNG", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "transparent.png")
		writeTestPNG(t, path, 2, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 0})

		img, err := Decode(path, func() bool { return false })
		require.NoError(t, err)
		assert.True(t, img.EntirelyTransparent)
	})

	t.Run("interruption returns nil, nil without error", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "any.png")
		writeTestPNG(t, path, 2, 2, color.NRGBA{A: 255})

		img, err := Decode(path, func() bool { return true })
		require.NoError(t, err)
		assert.Nil(t, img)
	})

	t.Run("rejects dimensions above the cap", func(t *testing.T) {
		err := checkDimensions(MaxDimension+1, 10)
		assert.Error(t, err)
	})

	t.Run("empty file is rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "empty.png")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		_, err := Decode(path, func() bool { return false })
		assert.Error(t, err)
	})
}

func TestPixelAccess(t *testing.T) {
	t.Run("set pixel clears the transparency flag", func(t *testing.T) {
		img, err := New(2, 2, false)
		require.NoError(t, err)
		img.EntirelyTransparent = true

		img.SetPixel(0, 0, 1, 2, 3, 255)
		assert.False(t, img.EntirelyTransparent)

		a, r, g, b := img.GetPixel(0, 0)
		assert.Equal(t, byte(255), a)
		assert.Equal(t, byte(1), r)
		assert.Equal(t, byte(2), g)
		assert.Equal(t, byte(3), b)
	})

	t.Run("set pixels bulk replace requires exact buffer size", func(t *testing.T) {
		img, err := New(2, 2, false)
		require.NoError(t, err)

		err = img.SetPixels(make([]byte, 3))
		assert.Error(t, err)

		full := make([]byte, 2*2*4)
		for i := range full {
			full[i] = 0xAA
		}
		require.NoError(t, img.SetPixels(full))
		assert.Equal(t, full, img.Pixels)
	})

	t.Run("out of bounds access is a no-op, not a panic", func(t *testing.T) {
		img, err := New(2, 2, false)
		require.NoError(t, err)
		assert.NotPanics(t, func() {
			img.SetPixel(-1, 0, 1, 2, 3, 4)
			img.SetPixel(5, 5, 1, 2, 3, 4)
		})
		a, r, g, b := img.GetPixel(10, 10)
		assert.Zero(t, a)
		assert.Zero(t, r)
		assert.Zero(t, g)
		assert.Zero(t, b)
	})
}

func TestNew(t *testing.T) {
	t.Run("rejects dimensions above the cap", func(t *testing.T) {
		_, err := New(MaxDimension+1, 10, false)
		assert.Error(t, err)
	})

	t.Run("debug fill produces magenta", func(t *testing.T) {
		img, err := New(1, 1, true)
		require.NoError(t, err)
		a, r, g, b := img.GetPixel(0, 0)
		assert.Equal(t, byte(0xFF), a)
		assert.Equal(t, byte(0xFF), r)
		assert.Equal(t, byte(0x00), g)
		assert.Equal(t, byte(0xFF), b)
	})
}
