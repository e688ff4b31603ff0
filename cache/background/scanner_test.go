package background

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBeatmap(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "map.osu")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScanner(t *testing.T) {
	t.Run("finds the background filename in the Events section", func(t *testing.T) {
		path := writeBeatmap(t, "osu file format v14\n\n[General]\nAudioFilename: audio.mp3\n\n[Events]\n0,0,\"bg.jpg\",0,0\n2,1000,2500\n\n[TimingPoints]\n0,500,4,2,0,60,1,0\n")
		s := NewScanner(path)

		err := s.InitAsync(func() bool { return false })
		require.NoError(t, err)
		assert.Equal(t, "bg.jpg", s.Filename)
	})

	t.Run("stops at a later section with no filename found", func(t *testing.T) {
		path := writeBeatmap(t, "[Events]\n2,1000,2500\n\n[TimingPoints]\n0,500,4,2,0,60,1,0\n\n[HitObjects]\n256,192,0,1,0\n")
		s := NewScanner(path)

		err := s.InitAsync(func() bool { return false })
		require.NoError(t, err)
		assert.Empty(t, s.Filename)
	})

	t.Run("interruption aborts without error", func(t *testing.T) {
		path := writeBeatmap(t, "[Events]\n0,0,\"bg.jpg\",0,0\n")
		s := NewScanner(path)

		err := s.InitAsync(func() bool { return true })
		require.NoError(t, err)
		assert.Empty(t, s.Filename)
	})

	t.Run("missing file returns an error", func(t *testing.T) {
		s := NewScanner(filepath.Join(t.TempDir(), "missing.osu"))
		err := s.InitAsync(func() bool { return false })
		assert.Error(t, err)
	})

	t.Run("quoted filename with a comma-free path is unquoted", func(t *testing.T) {
		path := writeBeatmap(t, "[Events]\n0,0,\"background image.png\",0,0\n")
		s := NewScanner(path)

		require.NoError(t, s.InitAsync(func() bool { return false }))
		assert.Equal(t, "background image.png", s.Filename)
	})
}
