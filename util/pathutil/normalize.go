package pathutil

import (
	"path/filepath"
	"runtime"
	"strings"
)

// NormalizeForLookup creates a canonical path suitable for use as a map key
// or in prefix comparisons. It makes the path absolute, resolves symlinks
// when the path exists, and lowercases on case-insensitive platforms.
// Paths that do not exist yet normalize to their absolute form, so lookups
// stay stable across a file's creation.
func NormalizeForLookup(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		resolved = strings.ToLower(resolved)
	}

	return filepath.Clean(resolved), nil
}

// WithinRoot reports whether path sits at or below root. Both arguments must
// already be normalized with NormalizeForLookup.
func WithinRoot(path, root string) bool {
	if root == "" {
		return false
	}
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
