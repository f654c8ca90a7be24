// Package testutil provides shared helpers for roster tests.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TempHome points GROVE_HOME at a fresh temp directory for the duration of
// the test, so path resolution and persisted state never touch the real
// user's directories. Returns the directory.
func TempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("GROVE_HOME", dir)
	return dir
}

// WriteJSONLines writes the given lines to path as an ndjson file, creating
// parent directories as needed. Lines are written verbatim, one per line, so
// tests can include deliberately malformed entries.
func WriteJSONLines(t *testing.T, path string, lines ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

// RandomString generates a random hex string of the specified length.
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}
