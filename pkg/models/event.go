package models

import (
	"encoding/json"
	"time"

	"github.com/grovetools/roster/errors"
)

// EventName identifies a hook event on the wire.
type EventName string

const (
	EventSessionStart EventName = "SessionStart"
	EventSessionEnd   EventName = "SessionEnd"
	EventToolStart    EventName = "ToolStart"
	EventToolEnd      EventName = "ToolEnd"
)

// HookEvent is one line of the newline-delimited JSON protocol spoken on the
// per-instance event socket. Process identity fields (pid, ppid, tty) are
// filled in by the emitting relay since the agent CLI's hook payload does not
// carry them.
type HookEvent struct {
	Kind           EventName       `json:"kind"`
	SessionID      string          `json:"sessionId"`
	TranscriptPath string          `json:"transcriptPath,omitempty"`
	Cwd            string          `json:"cwd,omitempty"`
	PID            int             `json:"pid,omitempty"`
	PPID           int             `json:"ppid,omitempty"`
	TTY            string          `json:"tty,omitempty"`
	ToolName       string          `json:"toolName,omitempty"`
	ToolInput      json.RawMessage `json:"toolInput,omitempty"`
	ToolResult     json.RawMessage `json:"toolResult,omitempty"`
	Timestamp      time.Time       `json:"timestamp,omitempty"`
}

// Validate checks that the event is well-formed enough to act on.
func (e *HookEvent) Validate() error {
	switch e.Kind {
	case EventSessionStart, EventSessionEnd, EventToolStart, EventToolEnd:
	default:
		return errors.New(errors.ErrCodeEventInvalid, "unknown event kind").
			WithDetail("kind", string(e.Kind))
	}

	if e.SessionID == "" {
		return errors.New(errors.ErrCodeEventInvalid, "event missing sessionId").
			WithDetail("kind", string(e.Kind))
	}

	if e.IsToolEvent() && e.ToolName == "" {
		return errors.New(errors.ErrCodeEventInvalid, "tool event missing toolName").
			WithDetail("kind", string(e.Kind)).
			WithDetail("sessionId", e.SessionID)
	}

	return nil
}

// IsToolEvent reports whether the event describes tool activity.
func (e *HookEvent) IsToolEvent() bool {
	return e.Kind == EventToolStart || e.Kind == EventToolEnd
}
