package pathresolve

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	t.Run("exact casing resolves without touching the cache", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "Background.png")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		c := New()
		got, err := c.Resolve(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
		assert.Empty(t, c.entries)
	})

	t.Run("mismatched casing resolves to the on-disk name", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Background.png"), []byte("x"), 0o644))

		c := New()
		got, err := c.Resolve(filepath.Join(dir, "background.PNG"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "Background.png"), got)
	})

	t.Run("unknown file returns not found", func(t *testing.T) {
		dir := t.TempDir()
		c := New()
		_, err := c.Resolve(filepath.Join(dir, "missing.png"))
		assert.Error(t, err)
	})

	t.Run("directory modification invalidates the cached entry", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "one.txt"), []byte("x"), 0o644))

		c := New()
		_, err := c.Resolve(filepath.Join(dir, "ONE.txt"))
		require.NoError(t, err)
		require.Len(t, c.entries, 1)

		// Force a detectable mtime change, then add a new file.
		time.Sleep(10 * time.Millisecond)
		twoPath := filepath.Join(dir, "two.txt")
		require.NoError(t, os.WriteFile(twoPath, []byte("y"), 0o644))
		require.NoError(t, os.Chtimes(dir, time.Now().Add(time.Second), time.Now().Add(time.Second)))

		got, err := c.Resolve(filepath.Join(dir, "TWO.txt"))
		require.NoError(t, err)
		assert.Equal(t, twoPath, got)
	})
}

func TestCacheEviction(t *testing.T) {
	t.Run("inserting past MaxEntries evicts the oldest quarter", func(t *testing.T) {
		c := New()
		base := t.TempDir()

		dirs := make([]string, 0, MaxEntries+1)
		for i := 0; i < MaxEntries+1; i++ {
			d := filepath.Join(base, "d"+itoa(i))
			require.NoError(t, os.Mkdir(d, 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(d, "f.txt"), []byte("x"), 0o644))
			dirs = append(dirs, d)
		}

		for i, d := range dirs {
			c.Lookup(d, "f.txt")
			if i < len(dirs)-1 {
				// Stagger access times so eviction order is deterministic.
				c.entries[d].lastAccess = time.Now().Add(time.Duration(i) * time.Millisecond)
			}
		}

		assert.LessOrEqual(t, len(c.entries), MaxEntries)
		// The very first directories inserted should have been evicted.
		_, stillCached := c.entries[dirs[0]]
		assert.False(t, stillCached)
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
