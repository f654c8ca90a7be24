package gitinfo

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRepoName(t *testing.T) {
	testCases := []struct {
		name     string
		url      string
		expected string
	}{
		{
			name:     "SSH URL with .git",
			url:      "git@github.com:user/my-project.git",
			expected: "my-project",
		},
		{
			name:     "HTTPS URL with .git",
			url:      "https://github.com/user/my-project.git",
			expected: "my-project",
		},
		{
			name:     "HTTPS URL without .git",
			url:      "https://github.com/user/my-project",
			expected: "my-project",
		},
		{
			name:     "GitLab nested groups",
			url:      "https://gitlab.com/group/subgroup/project.git",
			expected: "project",
		},
		{
			name:     "SSH URL without .git",
			url:      "git@github.com:user/repo",
			expected: "repo",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, extractRepoName(tc.url))
		})
	}
}

func gitRun(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	gitRun(t, dir, "init")
	gitRun(t, dir, "config", "user.email", "test@example.com")
	gitRun(t, dir, "config", "user.name", "Test User")
	gitRun(t, dir, "commit", "--allow-empty", "-m", "initial")
	return dir
}

func TestLookup(t *testing.T) {
	dir := initRepo(t)
	r := NewResolver(0)
	ctx := context.Background()

	// Without a remote the repo name falls back to the directory name.
	info := r.Lookup(ctx, dir)
	assert.Equal(t, filepath.Base(dir), info.Repo)
	assert.NotEmpty(t, info.Branch)

	gitRun(t, dir, "remote", "add", "origin", "git@github.com:user/test-repo.git")

	// Still cached: the remote is not visible until the entry expires.
	info = r.Lookup(ctx, dir)
	assert.Equal(t, filepath.Base(dir), info.Repo)

	r.Invalidate(dir)
	info = r.Lookup(ctx, dir)
	assert.Equal(t, "test-repo", info.Repo)
}

func TestLookupNonRepo(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(time.Minute)

	info := r.Lookup(context.Background(), dir)
	assert.Empty(t, info.Repo)
	assert.Empty(t, info.Branch)

	// The miss is cached too.
	_, cached := r.cache[dir]
	assert.True(t, cached)
}

func TestLookupTTLExpiry(t *testing.T) {
	dir := initRepo(t)
	r := NewResolver(time.Minute)
	ctx := context.Background()

	r.Lookup(ctx, dir)
	gitRun(t, dir, "remote", "add", "origin", "git@github.com:user/fresh-name.git")

	// Force the cached entry to look old instead of sleeping.
	r.mu.Lock()
	e := r.cache[dir]
	e.fetchedAt = e.fetchedAt.Add(-2 * time.Minute)
	r.cache[dir] = e
	r.mu.Unlock()

	info := r.Lookup(ctx, dir)
	assert.Equal(t, "fresh-name", info.Repo)
}

func TestLookupEmptyDir(t *testing.T) {
	r := NewResolver(0)
	assert.Equal(t, Info{}, r.Lookup(context.Background(), ""))
}
