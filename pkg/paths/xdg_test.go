package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/roster/testutil"
)

func TestGroveHomeOverridesEverything(t *testing.T) {
	home := testutil.TempHome(t)
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	t.Setenv("XDG_RUNTIME_DIR", "/xdg/run")

	assert.Equal(t, filepath.Join(home, "config", "grove"), ConfigDir())
	assert.Equal(t, filepath.Join(home, "data", "grove", "roster"), DataDir())
	assert.Equal(t, filepath.Join(home, "state", "grove", "roster"), StateDir())
	assert.Equal(t, filepath.Join(home, "run", "roster"), RuntimeDir())
}

func TestXDGEnvResolution(t *testing.T) {
	t.Setenv("GROVE_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	t.Setenv("XDG_RUNTIME_DIR", "/xdg/run")

	assert.Equal(t, "/xdg/config/grove", ConfigDir())
	assert.Equal(t, "/xdg/data/grove/roster", DataDir())
	assert.Equal(t, "/xdg/state/grove/roster", StateDir())
	assert.Equal(t, "/xdg/run/grove/roster", RuntimeDir())
}

func TestRuntimeDirFallsBackToStateDir(t *testing.T) {
	t.Setenv("GROVE_HOME", "")
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")

	assert.Equal(t, StateDir(), RuntimeDir())
}

func TestDerivedPaths(t *testing.T) {
	home := testutil.TempHome(t)

	assert.Equal(t, filepath.Join(home, "run", "roster", "rosterd.sock"), SocketPath())
	assert.Equal(t, filepath.Join(home, "state", "grove", "roster", "rosterd.pid"), PidFilePath())
	assert.Equal(t, filepath.Join(home, "run", "roster", "events-123.sock"), EventSocketPath(123))
	assert.Equal(t, filepath.Join(home, "data", "grove", "roster", "endpoints"), EndpointsFilePath())
	assert.Equal(t, filepath.Join(home, "data", "grove", "roster", "state", "ws-key.json"), RegistryStatePath("ws-key"))
	assert.Equal(t, filepath.Join(home, "state", "grove", "roster", "logs"), LogDir())
}

func TestEnsureDirs(t *testing.T) {
	testutil.TempHome(t)
	require.NoError(t, EnsureDirs())

	for _, dir := range []string{ConfigDir(), DataDir(), StateDir(), LogDir(), RuntimeDir(), filepath.Dir(RegistryStatePath("x"))} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
	}
}
