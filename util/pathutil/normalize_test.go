package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "project")
	require.NoError(t, os.Mkdir(real, 0o755))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(real, link))

	want, err := Canonical(real)
	require.NoError(t, err)
	got, err := Canonical(link)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, Same(real, link))
}

func TestCanonicalMissingPath(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	got, err := Canonical(missing)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
	assert.Equal(t, "does-not-exist", filepath.Base(got))
}

func TestSameDifferentDirs(t *testing.T) {
	assert.False(t, Same(t.TempDir(), t.TempDir()))
}
