package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("PATHUTIL_TEST_DIR", "/opt/data")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"tilde prefix", "~/projects", filepath.Join(home, "projects")},
		{"bare tilde", "~", home},
		{"env var", "$PATHUTIL_TEST_DIR/x", "/opt/data/x"},
		{"absolute unchanged", "/tmp/abc", "/tmp/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeForLookupResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real")
	require.NoError(t, os.MkdirAll(target, 0755))

	link := filepath.Join(dir, "alias")
	require.NoError(t, os.Symlink(target, link))

	nTarget, err := NormalizeForLookup(target)
	require.NoError(t, err)
	nLink, err := NormalizeForLookup(link)
	require.NoError(t, err)

	assert.Equal(t, nTarget, nLink)
}

func TestNormalizeForLookupMissingPath(t *testing.T) {
	got, err := NormalizeForLookup("/no/such/path/here")
	require.NoError(t, err)
	assert.Equal(t, "/no/such/path/here", got)
}

func TestWithinRoot(t *testing.T) {
	tests := []struct {
		name string
		path string
		root string
		want bool
	}{
		{"direct child", "/work/app/main.go", "/work/app", true},
		{"equal", "/work/app", "/work/app", true},
		{"outside", "/other/app", "/work/app", false},
		{"sibling prefix", "/work/app2", "/work/app", false},
		{"empty root", "/work/app", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinRoot(tt.path, tt.root))
		})
	}
}
