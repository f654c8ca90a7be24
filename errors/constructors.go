package errors

import (
	"fmt"
	"os/exec"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *RosterError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *RosterError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// SessionNotFound creates a session not found error
func SessionNotFound(sessionID string) *RosterError {
	return New(ErrCodeSessionNotFound, fmt.Sprintf("session '%s' not found", sessionID)).
		WithDetail("sessionId", sessionID)
}

// StoreVersionMismatch creates a persisted-store version mismatch error
func StoreVersionMismatch(got, want int) *RosterError {
	return New(ErrCodeStoreVersion,
		fmt.Sprintf("persisted store version %d does not match %d", got, want)).
		WithDetail("got", got).
		WithDetail("want", want)
}

// DaemonUnreachable creates a daemon connectivity error
func DaemonUnreachable(socketPath string, err error) *RosterError {
	return Wrap(err, ErrCodeDaemonUnreachable,
		fmt.Sprintf("daemon not reachable at %s", socketPath)).
		WithDetail("socket", socketPath)
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *RosterError {
	rosterErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		rosterErr = rosterErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return rosterErr
}
