// Package gitinfo enriches session views with repository context.
package gitinfo

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grovetools/roster/command"
)

// DefaultTTL bounds how long a cached lookup is served before the working
// directory is asked again (branches change under running sessions).
const DefaultTTL = 30 * time.Second

// Info is the repository context of one working directory.
type Info struct {
	Repo   string `json:"repo,omitempty"`
	Branch string `json:"branch,omitempty"`
}

type entry struct {
	info      Info
	fetchedAt time.Time
}

// Resolver looks up repo name and branch for working directories, caching
// results per directory. Directories outside any repository cache a zero
// Info so the miss is not re-queried on every sweep.
type Resolver struct {
	mu      sync.Mutex
	ttl     time.Duration
	builder *command.SafeBuilder
	cache   map[string]entry
	now     func() time.Time
}

// NewResolver creates a Resolver with the given cache TTL (DefaultTTL when
// zero or negative).
func NewResolver(ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Resolver{
		ttl:     ttl,
		builder: command.NewSafeBuilder(),
		cache:   make(map[string]entry),
		now:     time.Now,
	}
}

// Lookup returns the repository context for dir. Failures degrade to a zero
// Info; the registry treats missing enrichment as cosmetic.
func (r *Resolver) Lookup(ctx context.Context, dir string) Info {
	if dir == "" {
		return Info{}
	}

	r.mu.Lock()
	if e, ok := r.cache[dir]; ok && r.now().Sub(e.fetchedAt) < r.ttl {
		r.mu.Unlock()
		return e.info
	}
	r.mu.Unlock()

	info := r.resolve(ctx, dir)

	r.mu.Lock()
	r.cache[dir] = entry{info: info, fetchedAt: r.now()}
	r.mu.Unlock()

	return info
}

// Invalidate drops the cached lookup for dir.
func (r *Resolver) Invalidate(dir string) {
	r.mu.Lock()
	delete(r.cache, dir)
	r.mu.Unlock()
}

func (r *Resolver) resolve(ctx context.Context, dir string) Info {
	branch, err := r.git(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return Info{}
	}

	// Resolve the toplevel first so worktrees report the main repo name.
	root, err := r.git(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return Info{Branch: branch}
	}

	remoteURL, err := r.git(ctx, root, "config", "--get", "remote.origin.url")
	if err != nil || remoteURL == "" {
		return Info{Repo: filepath.Base(root), Branch: branch}
	}

	return Info{Repo: extractRepoName(remoteURL), Branch: branch}
}

func (r *Resolver) git(ctx context.Context, dir string, args ...string) (string, error) {
	cmd, err := r.builder.Build(ctx, "git", args...)
	if err != nil {
		return "", err
	}

	execCmd := cmd.Exec()
	execCmd.Dir = dir
	output, err := execCmd.Output()
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(output)), nil
}

// extractRepoName extracts the repository name from a git remote URL.
func extractRepoName(url string) string {
	url = strings.TrimSuffix(url, ".git")

	// Strip scheme and host from HTTPS-style URLs.
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
		if j := strings.Index(url, "/"); j >= 0 {
			url = url[j+1:]
		}
	} else if strings.HasPrefix(url, "git@") {
		// SSH URLs (git@host:user/repo)
		if j := strings.Index(url, ":"); j >= 0 {
			url = url[j+1:]
		}
	}

	parts := strings.Split(url, "/")
	if len(parts) > 0 && parts[len(parts)-1] != "" {
		return parts[len(parts)-1]
	}

	return "unknown"
}
