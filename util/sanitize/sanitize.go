package sanitize

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// separatorReplacer folds common path/word separators into dashes
	separatorReplacer = strings.NewReplacer(
		"/", "-",
		"\\", "-",
		"_", "-",
		" ", "-",
		".", "-",
	)

	// nonAlphanumericRegex matches characters outside the safe filename set
	nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

	// multiDashRegex matches multiple consecutive dashes
	multiDashRegex = regexp.MustCompile(`-+`)
)

// ForFileName sanitizes a string for use as a single filename component.
// The result contains only lowercase letters, digits, and dashes.
func ForFileName(s string) string {
	if s == "" {
		return ""
	}

	s = separatorReplacer.Replace(s)
	s = nonAlphanumericRegex.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")

	return strings.ToLower(s)
}

// ForPathKey derives a stable, filename-safe key from a filesystem path.
// The readable tail keeps state files recognizable; the hash suffix keeps
// distinct paths from colliding after sanitization.
func ForPathKey(path string) string {
	base := ForFileName(filepath.Base(path))
	if base == "" {
		base = "root"
	}
	if len(base) > 40 {
		base = base[:40]
	}

	h := fnv.New32a()
	h.Write([]byte(path))
	return fmt.Sprintf("%s-%08x", base, h.Sum32())
}
