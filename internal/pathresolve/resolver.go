package pathresolve

import (
	"os"
	"path/filepath"

	"github.com/kiwec/neosu-sub001/errors"
)

// Resolve returns a path whose casing matches what is actually on disk,
// consulting the default directory cache on a miss. If path already exists
// verbatim (the common case on case-sensitive filesystems, or when the
// caller already has the right casing), it is returned unchanged without
// touching the cache at all.
func Resolve(path string) (string, error) {
	return Default.Resolve(path)
}

// Resolve is the Cache-bound equivalent of the package-level Resolve.
func (c *Cache) Resolve(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		return path, nil
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	} else {
		dir = filepath.Clean(dir)
	}

	actual, typ := c.Lookup(dir, base)
	if typ == TypeNone {
		return "", errors.Wrapf(errors.ErrNotFound, "path not found: %s", path)
	}

	return filepath.Join(dir, actual), nil
}
