// Package transcript derives session state from agent CLI transcript files.
// A transcript is newline-delimited JSON, one object per conversation entry,
// continuously appended while the session runs.
package transcript

import (
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/grovetools/roster/pkg/models"
)

// AgentFilePrefix marks a transcript belonging to a subordinate (agent)
// session spawned by a primary one.
const AgentFilePrefix = "agent-"

// SessionState is an immutable snapshot of what a transcript says about its
// session. Re-parses replace the whole value.
type SessionState struct {
	SessionID       string               `json:"sessionId"`
	ParentSessionID string               `json:"parentSessionId,omitempty"`
	Cwd             string               `json:"cwd,omitempty"`
	IsAgent         bool                 `json:"isAgent,omitempty"`
	Status          models.SessionStatus `json:"status"`
	Tasks           []models.Task        `json:"tasks,omitempty"`
	Usage           models.Usage         `json:"usage"`
	Created         time.Time            `json:"created,omitempty"`
	LastModified    time.Time            `json:"lastModified,omitempty"`
}

var uuidRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsTranscriptName reports whether a file name looks like a transcript the
// registry should track: a UUID-named .jsonl file, optionally carrying the
// agent prefix.
func IsTranscriptName(name string) bool {
	if !strings.HasSuffix(name, ".jsonl") {
		return false
	}
	stem := strings.TrimSuffix(name, ".jsonl")
	stem = strings.TrimPrefix(stem, AgentFilePrefix)
	return uuidRe.MatchString(stem)
}

// SessionIDFromPath extracts the session id encoded in a transcript file
// name, and whether the file belongs to an agent session.
func SessionIDFromPath(path string) (id string, isAgent bool, ok bool) {
	name := filepath.Base(path)
	if !strings.HasSuffix(name, ".jsonl") {
		return "", false, false
	}
	stem := strings.TrimSuffix(name, ".jsonl")
	if strings.HasPrefix(stem, AgentFilePrefix) {
		isAgent = true
		stem = strings.TrimPrefix(stem, AgentFilePrefix)
	}
	if !uuidRe.MatchString(stem) {
		return "", false, false
	}
	return stem, isAgent, true
}
