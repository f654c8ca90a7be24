// Package paths provides XDG-compliant path resolution for Grove tools.
//
// Resolution order:
// 1. GROVE_HOME (portable root) → $GROVE_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/grove
// 3. Platform defaults → ~/.config/grove, ~/.local/share/grove, etc.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if groveHome := os.Getenv("GROVE_HOME"); groveHome != "" {
		return filepath.Join(groveHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if groveHome := os.Getenv("GROVE_HOME"); groveHome != "" {
		return filepath.Join(groveHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if groveHome := os.Getenv("GROVE_HOME"); groveHome != "" {
		return filepath.Join(groveHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the roster configuration directory.
// Used for the global roster.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "grove")
}

// DataDir returns the roster data directory.
// Used for the endpoint discovery file and persisted registry snapshots.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "grove", "roster")
}

// StateDir returns the roster state directory.
// Used for logs and the daemon pidfile.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "grove", "roster")
}

// RuntimeDir returns the roster runtime directory for sockets.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if groveHome := os.Getenv("GROVE_HOME"); groveHome != "" {
		return filepath.Join(groveHome, "run", "roster")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "grove", "roster")
	}
	return StateDir()
}

// SocketPath returns the path of the daemon API unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "rosterd.sock")
}

// PidFilePath returns the path of the daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "rosterd.pid")
}

// EventSocketPath returns the per-instance event ingest socket path.
// Each running registry instance listens on its own socket, keyed by pid.
func EventSocketPath(pid int) string {
	return filepath.Join(RuntimeDir(), fmt.Sprintf("events-%d.sock", pid))
}

// EndpointsFilePath returns the endpoint discovery file: one event-socket
// path per line, one line per running registry instance.
func EndpointsFilePath() string {
	return filepath.Join(DataDir(), "endpoints")
}

// RegistryStatePath returns the persisted registry snapshot for a workspace,
// keyed by a sanitized workspace identifier.
func RegistryStatePath(workspaceKey string) string {
	return filepath.Join(DataDir(), "state", workspaceKey+".json")
}

// LogDir returns the directory daemon log files are written to.
func LogDir() string {
	return filepath.Join(StateDir(), "logs")
}

// EnsureDirs creates all roster directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		filepath.Join(DataDir(), "state"),
		StateDir(),
		LogDir(),
		RuntimeDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
