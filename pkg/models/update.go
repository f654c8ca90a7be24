package models

import "time"

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	// UpdateSessions carries a coalesced registry snapshot after the
	// notification debounce window closes.
	UpdateSessions UpdateType = "sessions"
)

// Update represents a change pushed to registry observers.
type Update struct {
	Type     UpdateType     `json:"type"`
	Source   string         `json:"source,omitempty"` // which feeder triggered the change
	Snapshot *StateSnapshot `json:"snapshot,omitempty"`
}

// StateSnapshot is the registry's deduplicated world view: active sessions,
// recently ended sessions, and agent transcripts still waiting for a parent.
type StateSnapshot struct {
	Active      []SessionView   `json:"active"`
	Inactive    []SessionView   `json:"inactive"`
	Orphans     []OrphanedAgent `json:"orphans,omitempty"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// OrphanedAgent is a subordinate-session transcript observed before the
// session it belongs to.
type OrphanedAgent struct {
	TranscriptPath  string    `json:"transcriptPath"`
	ParentSessionID string    `json:"parentSessionId"`
	FirstSeen       time.Time `json:"firstSeen"`
}
