package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/pkg/models"
)

func TestStoreRoundTrip(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state", "registry.json"))

	in := []persistedSession{
		{
			SessionID:      uuidA,
			TranscriptPath: "/transcripts/" + uuidA + ".jsonl",
			Cwd:            "/work/proj",
			PID:            100,
			PPID:           4000,
			TTY:            "/dev/ttys001",
			PidStartTime:   "Wed Jan  1 10:00:00 2025",
			RecentTools:    []models.RecentTool{{Name: "Bash", DurationMS: 1500}},
		},
		{SessionID: uuidB, PID: 200},
	}
	require.NoError(t, store.Save(in))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStoreLoadMissingFileIsColdStart(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope.json"))
	out, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStoreLoadVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 2, "sessions": []}`), 0644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreVersion, errors.GetCode(err))
}

func TestStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreCorrupt, errors.GetCode(err))
}

func TestStoreSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "state.json"))

	require.NoError(t, store.Save([]persistedSession{{SessionID: uuidA}}))
	require.NoError(t, store.Save([]persistedSession{{SessionID: uuidB}}))

	out, err := store.Load()
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uuidB, out[0].SessionID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStoreSaveEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, store.Save(nil))

	out, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, out)
}
