package registry

import (
	"context"
	"time"

	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/terminal"
	"github.com/grovetools/roster/pkg/transcript"
)

// SnapshotProvider turns a transcript file into a session state snapshot.
// *transcript.Parser is the production implementation.
type SnapshotProvider interface {
	Parse(path string) (*transcript.SessionState, error)
}

// TerminalLinker is the slice of pkg/terminal.Linker the registry drives.
type TerminalLinker interface {
	LinkPending(ctx context.Context, sessionID string, parentPid int) (terminal.Terminal, bool)
	FindTerminal(ctx context.Context, parentPid, pid int, cwd string, onPidCorrected func(int)) (terminal.Terminal, bool)
	CanLink(ctx context.Context, pid, parentPid int) bool
	Confirm(sessionID string, term terminal.Terminal)
	TerminalFor(sessionID string) (terminal.Terminal, bool)
	Unlink(sessionID string)
	HandleClosed(terminalID string) (string, bool)
}

// record is the registry's unit of tracking: the identity a session claimed
// at registration, the latest content snapshot parsed from its transcript,
// and in-flight tool activity. Identity fields never change after creation
// except ppid (ancestry walks can correct it) and pidStartTime (back-filled
// asynchronously).
type record struct {
	sessionID      string
	transcriptPath string
	cwd            string
	pid            int
	ppid           int
	tty            string
	pidStartTime   string

	state *transcript.SessionState

	currentTool *models.CurrentTool
	staleTimer  clock.Timer
	recentTools []models.RecentTool

	terminalID string

	created      time.Time
	lastActivity time.Time
}

// archivedSession is what remains of a session after it leaves the active
// map: a frozen view, kept so presentation can show recently ended work.
type archivedSession struct {
	view       models.SessionView
	archivedAt time.Time
}

func (r *record) cancelStaleTimer() {
	if r.staleTimer != nil {
		r.staleTimer.Stop()
		r.staleTimer = nil
	}
}

// view renders the record for presentation. Status is derived here: live
// tool activity or an in-progress task means Working regardless of what the
// transcript's tail says, unless the transcript already reached a terminal
// status.
func (r *record) view() models.SessionView {
	v := models.SessionView{
		SessionID:      r.sessionID,
		Status:         r.effectiveStatus(),
		TranscriptPath: r.transcriptPath,
		Cwd:            r.cwd,
		PID:            r.pid,
		PPID:           r.ppid,
		TTY:            r.tty,
		TerminalID:     r.terminalID,
		CurrentTool:    r.currentTool,
		RecentTools:    r.recentTools,
		Created:        r.created,
		LastActivity:   r.lastActivity,
	}
	if r.state != nil {
		v.IsAgent = r.state.IsAgent
		v.ParentSessionID = r.state.ParentSessionID
		v.Tasks = r.state.Tasks
		v.Usage = r.state.Usage
		v.LastModified = r.state.LastModified
		if v.Cwd == "" {
			v.Cwd = r.state.Cwd
		}
		if !r.state.Created.IsZero() && (v.Created.IsZero() || r.state.Created.Before(v.Created)) {
			v.Created = r.state.Created
		}
	}
	return v
}

func (r *record) effectiveStatus() models.SessionStatus {
	base := models.StatusPaused
	if r.state != nil && r.state.Status != "" {
		base = r.state.Status
	}
	if base.Terminal() {
		return base
	}
	if r.currentTool != nil {
		return models.StatusWorking
	}
	if r.state != nil {
		for _, t := range r.state.Tasks {
			if t.Status == models.TaskInProgress {
				return models.StatusWorking
			}
		}
	}
	return base
}

// lastModified orders records for inactive-list trimming. Falls back through
// content timestamps to registration time so every record sorts somewhere.
func (r *record) lastModified() time.Time {
	if r.state != nil && !r.state.LastModified.IsZero() {
		return r.state.LastModified
	}
	if !r.lastActivity.IsZero() {
		return r.lastActivity
	}
	return r.created
}

// unclaimedView renders a transcript snapshot no live process has claimed.
func unclaimedView(path string, state *transcript.SessionState) models.SessionView {
	return models.SessionView{
		SessionID:       state.SessionID,
		Status:          state.Status,
		TranscriptPath:  path,
		Cwd:             state.Cwd,
		IsAgent:         state.IsAgent,
		ParentSessionID: state.ParentSessionID,
		Tasks:           state.Tasks,
		Usage:           state.Usage,
		Created:         state.Created,
		LastModified:    state.LastModified,
	}
}
