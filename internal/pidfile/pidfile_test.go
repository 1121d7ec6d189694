package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "dev.pid")

	require.NoError(t, Acquire(path))
	running, pid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	// Re-acquiring from the same process is allowed.
	require.NoError(t, Acquire(path))

	require.NoError(t, Release(path))
	running, _, err = IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
	assert.NoError(t, Release(path))
}

func TestAcquireReplacesStalePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(-1)), 0o644))

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireRefusesLiveProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.pid")
	// The parent of the test binary is alive for the duration of the test.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getppid())), 0o644))

	err := Acquire(path)
	assert.ErrorContains(t, err, "already running")
	assert.NoError(t, Release(path), "a pidfile owned by another process is left alone")
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestPathFor(t *testing.T) {
	t.Setenv("STORYBOOK_HOME", "/opt/sb")
	p := PathFor("/home/me/project")
	assert.Equal(t, filepath.Join("/opt/sb", "cache", "run"), filepath.Dir(p))
	assert.Equal(t, ".pid", filepath.Ext(p))
}
