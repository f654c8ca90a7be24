package models

import (
	"encoding/json"
	"time"
)

// HookPayload is the JSON object the agent CLI pipes to a hook command's
// stdin. Field names follow the CLI's snake_case convention; only the fields
// the registry cares about are decoded.
type HookPayload struct {
	HookEventName  string          `json:"hook_event_name"`
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	ToolName       string          `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
}

// hookKinds maps the CLI's hook event names onto the wire kinds.
var hookKinds = map[string]EventName{
	"SessionStart": EventSessionStart,
	"SessionEnd":   EventSessionEnd,
	"PreToolUse":   EventToolStart,
	"PostToolUse":  EventToolEnd,
}

// ToEvent normalizes the payload into the socket wire format. The relay
// supplies the process identity of the hook's parent (the agent process)
// because the payload itself does not carry it. Hook names with no wire
// kind pass through unchanged and fail Validate downstream.
func (p *HookPayload) ToEvent(pid, ppid int, tty string, now time.Time) HookEvent {
	kind, ok := hookKinds[p.HookEventName]
	if !ok {
		kind = EventName(p.HookEventName)
	}

	return HookEvent{
		Kind:           kind,
		SessionID:      p.SessionID,
		TranscriptPath: p.TranscriptPath,
		Cwd:            p.Cwd,
		PID:            pid,
		PPID:           ppid,
		TTY:            tty,
		ToolName:       p.ToolName,
		ToolInput:      p.ToolInput,
		ToolResult:     p.ToolResponse,
		Timestamp:      now,
	}
}
