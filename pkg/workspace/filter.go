// Package workspace decides which working directories belong to this
// registry instance. Multiple instances can run side by side as long as
// their filters carve up disjoint workspaces.
package workspace

import (
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"

	"github.com/grovetools/roster/util/pathutil"
)

// Filter admits sessions by working directory: the cwd must sit under one of
// the configured roots and must not match any exclude pattern. A filter with
// no roots admits every directory, still subject to excludes.
type Filter struct {
	roots   []string
	matcher *patternmatcher.PatternMatcher
}

// NewFilter builds a filter from workspace roots and dockerignore-style
// exclude patterns. Roots are expanded (~, $VARS) and normalized.
func NewFilter(roots []string, excludes []string) (*Filter, error) {
	f := &Filter{}

	for _, root := range roots {
		expanded, err := pathutil.Expand(root)
		if err != nil {
			return nil, err
		}
		norm, err := pathutil.NormalizeForLookup(expanded)
		if err != nil {
			return nil, err
		}
		f.roots = append(f.roots, norm)
	}

	if len(excludes) > 0 {
		pm, err := patternmatcher.New(excludes)
		if err != nil {
			return nil, err
		}
		f.matcher = pm
	}

	return f, nil
}

// Allows reports whether a session working in dir belongs to this instance.
func (f *Filter) Allows(dir string) bool {
	if dir == "" {
		return false
	}

	norm, err := pathutil.NormalizeForLookup(dir)
	if err != nil {
		return false
	}

	rel := strings.TrimPrefix(norm, string(filepath.Separator))
	if len(f.roots) > 0 {
		matched := false
		for _, root := range f.roots {
			if pathutil.WithinRoot(norm, root) {
				if r, err := filepath.Rel(root, norm); err == nil {
					rel = r
				}
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if f.matcher != nil {
		if excluded, err := f.matcher.MatchesOrParentMatches(filepath.ToSlash(rel)); err == nil && excluded {
			return false
		}
	}

	return true
}

// Roots returns the normalized workspace roots, empty when unrestricted.
func (f *Filter) Roots() []string {
	return f.roots
}
