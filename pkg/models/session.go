package models

import "time"

// SessionStatus is the content-derived state of a session.
type SessionStatus string

const (
	StatusWorking SessionStatus = "working"
	StatusPaused  SessionStatus = "paused"
	StatusDone    SessionStatus = "done"
)

// Terminal reports whether the status marks a finished session.
func (s SessionStatus) Terminal() bool {
	return s == StatusDone
}

// TaskStatus is the state of a single task on a session's todo list.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
)

// Task is one entry of a session's todo list, extracted from the transcript.
type Task struct {
	Content string     `json:"content"`
	Status  TaskStatus `json:"status"`
}

// Usage accumulates token counters across a session's transcript.
type Usage struct {
	InputTokens         int `json:"inputTokens"`
	OutputTokens        int `json:"outputTokens"`
	CacheReadTokens     int `json:"cacheReadTokens"`
	CacheCreationTokens int `json:"cacheCreationTokens"`
}

// CurrentTool describes a tool invocation that has started but not finished.
type CurrentTool struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}

// RecentTool is one completed tool invocation in a session's bounded history.
type RecentTool struct {
	Name       string    `json:"name"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
}

// SessionView is the read-side representation of a tracked session, served
// over the daemon API and rendered by clients. Status here is the effective
// status: working while a tool is in flight or a task is in progress, the
// transcript's own status otherwise.
type SessionView struct {
	SessionID       string        `json:"sessionId"`
	Status          SessionStatus `json:"status"`
	TranscriptPath  string        `json:"transcriptPath,omitempty"`
	Cwd             string        `json:"cwd,omitempty"`
	PID             int           `json:"pid,omitempty"`
	PPID            int           `json:"ppid,omitempty"`
	TTY             string        `json:"tty,omitempty"`
	TerminalID      string        `json:"terminalId,omitempty"`
	IsAgent         bool          `json:"isAgent,omitempty"`
	ParentSessionID string        `json:"parentSessionId,omitempty"`
	Repo            string        `json:"repo,omitempty"`
	Branch          string        `json:"branch,omitempty"`
	CurrentTool     *CurrentTool  `json:"currentTool,omitempty"`
	RecentTools     []RecentTool  `json:"recentTools,omitempty"`
	Tasks           []Task        `json:"tasks,omitempty"`
	Usage           Usage         `json:"usage"`
	Created         time.Time     `json:"created,omitempty"`
	LastModified    time.Time     `json:"lastModified,omitempty"`
	LastActivity    time.Time     `json:"lastActivity,omitempty"`
}
