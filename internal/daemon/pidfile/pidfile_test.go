package pidfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "rosterd.pid")

	require.NoError(t, Acquire(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, pid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Release(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAcquireRejectsLiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosterd.pid")
	require.NoError(t, Acquire(path))

	err := Acquire(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestAcquireReclaimsStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rosterd.pid")
	// No live process sits at the pid table ceiling.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0644))

	require.NoError(t, Acquire(path))

	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsRunningMissingFile(t *testing.T) {
	running, pid, err := IsRunning(filepath.Join(t.TempDir(), "nope.pid"))
	require.NoError(t, err)
	assert.False(t, running)
	assert.Zero(t, pid)
}
