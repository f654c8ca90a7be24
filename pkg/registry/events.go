package registry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/pkg/models"
)

// HandleEvent dispatches a hook event to the matching handler.
func (r *Registry) HandleEvent(ctx context.Context, ev models.HookEvent) {
	switch ev.Kind {
	case models.EventSessionStart:
		r.HandleSessionStart(ctx, ev)
	case models.EventSessionEnd:
		r.HandleSessionEnd(ctx, ev)
	case models.EventToolStart:
		r.HandleToolStart(ctx, ev)
	case models.EventToolEnd:
		r.HandleToolEnd(ctx, ev)
	default:
		r.log.WithField("kind", string(ev.Kind)).Debug("Ignoring unknown event")
	}
}

// HandleSessionStart registers a session under its claimed identity. Any
// active record already claiming the same pid, ppid, or transcript path is
// stale and gets evicted first. The pid fingerprint is backfilled
// asynchronously so registration never blocks on a process query.
func (r *Registry) HandleSessionStart(ctx context.Context, ev models.HookEvent) {
	if r.filter != nil && ev.Cwd != "" && !r.filter.Allows(ev.Cwd) {
		r.log.WithFields(logrus.Fields{
			"sessionId": ev.SessionID,
			"cwd":       ev.Cwd,
		}).Debug("Ignoring session outside workspace")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}

	var evicted []*record
	if ev.PID > 0 {
		if prev, ok := r.pidIndex[ev.PID]; ok && prev != ev.SessionID {
			if rec := r.archiveLocked(prev, "pid reclaimed"); rec != nil {
				evicted = append(evicted, rec)
			}
		}
	}
	if ev.PPID > 0 {
		if prev, ok := r.ppidIndex[ev.PPID]; ok && prev != ev.SessionID {
			if rec := r.archiveLocked(prev, "ppid reclaimed"); rec != nil {
				evicted = append(evicted, rec)
			}
		}
	}
	if ev.TranscriptPath != "" {
		if prev, ok := r.pathIndex[ev.TranscriptPath]; ok && prev != ev.SessionID {
			if rec := r.archiveLocked(prev, "transcript reclaimed"); rec != nil {
				evicted = append(evicted, rec)
			}
		}
	}

	now := r.clk.Now()
	rec := &record{
		sessionID:      ev.SessionID,
		transcriptPath: ev.TranscriptPath,
		cwd:            ev.Cwd,
		pid:            ev.PID,
		ppid:           ev.PPID,
		tty:            ev.TTY,
		created:        now,
		lastActivity:   now,
	}

	// A restart of the same session replaces its record but keeps the
	// session-scoped history.
	if old := r.removeLocked(ev.SessionID); old != nil {
		rec.state = old.state
		rec.recentTools = old.recentTools
		if !old.created.IsZero() {
			rec.created = old.created
		}
	}

	r.active[ev.SessionID] = rec
	r.indexLocked(rec)

	if ev.TranscriptPath != "" {
		// The transcript is claimed now; adopt any snapshot parsed before
		// the process announced itself, then force a fresh parse.
		if st, ok := r.unclaimed[ev.TranscriptPath]; ok {
			rec.state = st
			delete(r.unclaimed, ev.TranscriptPath)
		}
		delete(r.orphans, ev.TranscriptPath)
		delete(r.mtimes, ev.TranscriptPath)
	}
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"sessionId": ev.SessionID,
		"pid":       ev.PID,
		"ppid":      ev.PPID,
	}).Info("Session started")

	for _, e := range evicted {
		r.unlink(e.sessionID)
	}

	if ev.PID > 0 && r.inspector != nil {
		go r.backfillFingerprint(ev.SessionID, ev.PID)
	}
	if r.linker != nil && ev.PPID > 0 {
		if term, ok := r.linker.LinkPending(ctx, ev.SessionID, ev.PPID); ok {
			r.setTerminal(ev.SessionID, term.ID())
		}
	}
	if ev.TranscriptPath != "" {
		r.HandleFileChanged(ctx, ev.TranscriptPath)
	}
	r.persist()
}

// HandleSessionEnd archives the session and rewrites persistence without it.
func (r *Registry) HandleSessionEnd(ctx context.Context, ev models.HookEvent) {
	if !r.endSession(ctx, ev.SessionID, "end event") {
		r.log.WithField("sessionId", ev.SessionID).Debug("SessionEnd for unknown session")
	}
}

// HandleToolStart marks a tool in flight and arms the stale-tool timer. A
// session still unlinked to a terminal gets a lazy link attempt, the event
// being proof its process is alive and walkable.
func (r *Registry) HandleToolStart(ctx context.Context, ev models.HookEvent) {
	r.mu.Lock()
	rec, ok := r.active[ev.SessionID]
	if !ok || r.closed {
		r.mu.Unlock()
		r.log.WithField("sessionId", ev.SessionID).Debug("Tool event for unknown session")
		return
	}

	now := r.clk.Now()
	rec.cancelStaleTimer()
	rec.currentTool = &models.CurrentTool{Name: ev.ToolName, StartedAt: now}
	rec.lastActivity = now

	sid, name := ev.SessionID, ev.ToolName
	rec.staleTimer = r.clk.AfterFunc(r.staleToolTimeout, func() {
		r.expireStaleTool(sid, name, now)
	})

	needLink := r.linker != nil && rec.terminalID == "" && (rec.pid > 0 || rec.ppid > 0)
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	if needLink {
		r.lazyLink(ctx, ev.SessionID)
	}
}

// HandleToolEnd records the completed tool at the head of the bounded
// history. Without a matching recorded start the duration is zero.
func (r *Registry) HandleToolEnd(ctx context.Context, ev models.HookEvent) {
	r.mu.Lock()
	rec, ok := r.active[ev.SessionID]
	if !ok || r.closed {
		r.mu.Unlock()
		r.log.WithField("sessionId", ev.SessionID).Debug("Tool event for unknown session")
		return
	}

	now := r.clk.Now()
	startedAt := now
	var duration time.Duration
	if rec.currentTool != nil && rec.currentTool.Name == ev.ToolName {
		startedAt = rec.currentTool.StartedAt
		duration = now.Sub(startedAt)
	}

	rec.cancelStaleTimer()
	rec.currentTool = nil
	rec.lastActivity = now

	rec.recentTools = append([]models.RecentTool{{
		Name:       ev.ToolName,
		StartedAt:  startedAt,
		DurationMS: duration.Milliseconds(),
	}}, rec.recentTools...)
	if len(rec.recentTools) > r.recentToolsCap {
		rec.recentTools = rec.recentTools[:r.recentToolsCap]
	}

	r.scheduleNotifyLocked()
	r.mu.Unlock()

	r.persist()
}

// expireStaleTool clears a current tool whose completion never arrived. The
// start time is compared so a newer invocation of the same tool survives.
func (r *Registry) expireStaleTool(sessionID, toolName string, startedAt time.Time) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok || r.closed || rec.currentTool == nil ||
		rec.currentTool.Name != toolName || !rec.currentTool.StartedAt.Equal(startedAt) {
		r.mu.Unlock()
		return
	}
	rec.currentTool = nil
	rec.staleTimer = nil
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"tool":      toolName,
	}).Warn("Cleared stale tool, no completion event arrived")
}

// backfillFingerprint reads the process start time and stores it on the
// record, re-checking that the session still exists with the same pid.
func (r *Registry) backfillFingerprint(sessionID string, pid int) {
	st, err := r.inspector.StartTime(context.Background(), pid)
	if err != nil || st == "" {
		r.log.WithField("pid", pid).Debug("Could not read process start time")
		return
	}

	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok || rec.pid != pid {
		r.mu.Unlock()
		return
	}
	rec.pidStartTime = st
	r.mu.Unlock()

	r.persist()
}

// lazyLink runs the full terminal search for an unlinked session.
func (r *Registry) lazyLink(ctx context.Context, sessionID string) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok || rec.terminalID != "" {
		r.mu.Unlock()
		return
	}
	ppid, pid, cwd := rec.ppid, rec.pid, rec.cwd
	r.mu.Unlock()

	term, ok := r.linker.FindTerminal(ctx, ppid, pid, cwd, func(corrected int) {
		r.correctPPID(sessionID, corrected)
	})
	if !ok {
		return
	}

	r.linker.Confirm(sessionID, term)
	r.setTerminal(sessionID, term.ID())
}

// setTerminal records a confirmed link on the session.
func (r *Registry) setTerminal(sessionID, terminalID string) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if ok && rec.terminalID != terminalID {
		rec.terminalID = terminalID
		r.scheduleNotifyLocked()
	}
	r.mu.Unlock()
}

// correctPPID replaces a session's claimed ppid after an ancestry walk
// proved it wrong. The new ppid's previous claimant, if any, is stale.
func (r *Registry) correctPPID(sessionID string, ppid int) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok || ppid <= 0 || rec.ppid == ppid {
		r.mu.Unlock()
		return
	}

	var evicted *record
	if prev, claimed := r.ppidIndex[ppid]; claimed && prev != sessionID {
		evicted = r.archiveLocked(prev, "ppid reclaimed by correction")
	}
	if rec.ppid > 0 && r.ppidIndex[rec.ppid] == sessionID {
		delete(r.ppidIndex, rec.ppid)
	}
	old := rec.ppid
	rec.ppid = ppid
	r.ppidIndex[ppid] = sessionID
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"claimed":   old,
		"corrected": ppid,
	}).Debug("Corrected session parent pid")

	if evicted != nil {
		r.unlink(evicted.sessionID)
	}
	r.persist()
}
