package hooks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settingsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "settings.json")
}

func readSettings(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var settings map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &settings))
	return settings
}

func TestInstallCreatesSettingsFile(t *testing.T) {
	path := settingsPath(t)
	m := NewManager(path, "roster emit")

	require.NoError(t, m.Install())

	settings := readSettings(t, path)
	hooks, ok := settings["hooks"].(map[string]interface{})
	require.True(t, ok)
	for _, event := range Events {
		assert.Contains(t, hooks, event)
	}

	status, err := m.Status()
	require.NoError(t, err)
	for _, event := range Events {
		assert.True(t, status[event], event)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	path := settingsPath(t)
	m := NewManager(path, "roster emit")

	require.NoError(t, m.Install())
	require.NoError(t, m.Install())

	settings := readSettings(t, path)
	hooks := settings["hooks"].(map[string]interface{})
	for _, event := range Events {
		entries := hooks[event].([]interface{})
		assert.Len(t, entries, 1, event)
	}
}

func TestInstallPreservesForeignEntries(t *testing.T) {
	path := settingsPath(t)
	initial := `{
		"model": "opus",
		"hooks": {
			"PreToolUse": [
				{"matcher": "Bash", "hooks": [{"type": "command", "command": "my-linter"}]}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	m := NewManager(path, "roster emit")
	require.NoError(t, m.Install())

	settings := readSettings(t, path)
	assert.Equal(t, "opus", settings["model"])

	hooks := settings["hooks"].(map[string]interface{})
	pre := hooks["PreToolUse"].([]interface{})
	require.Len(t, pre, 2)
	first := pre[0].(map[string]interface{})
	assert.Equal(t, "Bash", first["matcher"])
}

func TestUninstallRemovesOnlyRosterEntries(t *testing.T) {
	path := settingsPath(t)
	initial := `{
		"hooks": {
			"PreToolUse": [
				{"matcher": "Bash", "hooks": [{"type": "command", "command": "my-linter"}]}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	m := NewManager(path, "roster emit")
	require.NoError(t, m.Install())
	require.NoError(t, m.Uninstall())

	settings := readSettings(t, path)
	hooks := settings["hooks"].(map[string]interface{})
	pre, ok := hooks["PreToolUse"].([]interface{})
	require.True(t, ok)
	require.Len(t, pre, 1)
	assert.Equal(t, "Bash", pre[0].(map[string]interface{})["matcher"])

	// Events that only carried the relay are gone entirely.
	assert.NotContains(t, hooks, "SessionStart")
	assert.NotContains(t, hooks, "SessionEnd")
	assert.NotContains(t, hooks, "PostToolUse")
}

func TestUninstallWithoutFileIsNoop(t *testing.T) {
	path := settingsPath(t)
	m := NewManager(path, "roster emit")

	require.NoError(t, m.Uninstall())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStatusWithoutFile(t *testing.T) {
	m := NewManager(settingsPath(t), "roster emit")

	status, err := m.Status()
	require.NoError(t, err)
	for _, event := range Events {
		assert.False(t, status[event], event)
	}
}

func TestStatusMatchesWrappedCommand(t *testing.T) {
	path := settingsPath(t)
	initial := `{
		"hooks": {
			"SessionStart": [
				{"hooks": [{"type": "command", "command": "/usr/local/bin/roster emit --broadcast"}]}
			]
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0644))

	m := NewManager(path, "roster emit")
	status, err := m.Status()
	require.NoError(t, err)
	assert.True(t, status["SessionStart"])
	assert.False(t, status["SessionEnd"])
}

func TestInstallRejectsMalformedSettings(t *testing.T) {
	path := settingsPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	m := NewManager(path, "roster emit")
	require.Error(t, m.Install())

	// The malformed file is left untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}
