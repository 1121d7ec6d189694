// Package pathutil canonicalizes project roots so that one project maps to
// one pidfile and one cache entry however it was reached.
package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// Canonical returns the absolute, symlink-free form of path. A path that
// does not exist yet is returned absolute.
func Canonical(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return absPath, nil
	}
	return resolved, nil
}

// NormalizeForLookup is Canonical, lowercased on case-insensitive
// filesystems, for use as a map or file key.
func NormalizeForLookup(path string) (string, error) {
	canonical, err := Canonical(path)
	if err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return strings.ToLower(canonical), nil
	}
	return canonical, nil
}

// Same reports whether two paths name the same location.
func Same(a, b string) bool {
	na, errA := NormalizeForLookup(a)
	nb, errB := NormalizeForLookup(b)
	return errA == nil && errB == nil && na == nb
}
