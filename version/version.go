// Package version carries build-time version information, populated by the
// linker via -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"     // git tag or dev version string
	Commit    = "none"    // git commit hash
	BuildDate = "unknown" // build timestamp
)

// Info is the full version report.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns the version information for this build.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the info one field per line.
func (i Info) String() string {
	return fmt.Sprintf(
		"roster %s\n  Commit:     %s\n  Built:      %s\n  Go version: %s\n  Platform:   %s",
		i.Version, i.Commit, i.BuildDate, i.GoVersion, i.Platform,
	)
}
