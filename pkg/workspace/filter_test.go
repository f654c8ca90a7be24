package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNoRootsAllowsEverything(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	assert.True(t, f.Allows(dir))
	assert.True(t, f.Allows(filepath.Join(dir, "deeply", "nested")))
	assert.False(t, f.Allows(""))
}

func TestFilterRoots(t *testing.T) {
	inside := t.TempDir()
	outside := t.TempDir()

	f, err := NewFilter([]string{inside}, nil)
	require.NoError(t, err)

	assert.True(t, f.Allows(inside))
	assert.True(t, f.Allows(filepath.Join(inside, "project")))
	assert.False(t, f.Allows(outside))
	assert.False(t, f.Allows(filepath.Dir(inside)))
}

func TestFilterExcludes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "vendor", "lib"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0755))

	f, err := NewFilter([]string{root}, []string{"vendor", "**/node_modules"})
	require.NoError(t, err)

	assert.True(t, f.Allows(filepath.Join(root, "app")))
	assert.False(t, f.Allows(filepath.Join(root, "vendor")))
	assert.False(t, f.Allows(filepath.Join(root, "vendor", "lib")))
	assert.False(t, f.Allows(filepath.Join(root, "app", "node_modules")))
}

func TestFilterExcludesWithoutRoots(t *testing.T) {
	dir := t.TempDir()
	scratch := filepath.Join(dir, "scratch")
	require.NoError(t, os.MkdirAll(scratch, 0755))

	f, err := NewFilter(nil, []string{"**/scratch"})
	require.NoError(t, err)

	assert.True(t, f.Allows(dir))
	assert.False(t, f.Allows(scratch))
}

func TestFilterTildeRoot(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	work := filepath.Join(home, "work")
	require.NoError(t, os.MkdirAll(work, 0755))

	f, err := NewFilter([]string{"~/work"}, nil)
	require.NoError(t, err)

	assert.True(t, f.Allows(work))
	assert.False(t, f.Allows(home))
}

func TestFilterInvalidExcludePattern(t *testing.T) {
	_, err := NewFilter(nil, []string{"!"})
	assert.Error(t, err)
}
