package registry

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/errors"
)

// Restore reloads persisted sessions, admitting only those that survive
// re-validation. A version mismatch or unreadable file is a cold start.
// Each admitted session schedules its own notification, so observers see
// the registry fill in incrementally rather than in one batch at the end.
func (r *Registry) Restore(ctx context.Context) {
	if r.store == nil {
		return
	}

	entries, err := r.store.Load()
	if err != nil {
		r.log.WithError(err).Warn("Discarding persisted registry state")
		return
	}
	if len(entries) == 0 {
		return
	}

	restored := 0
	for _, e := range entries {
		if r.restoreSession(ctx, e) {
			restored++
		}
	}
	r.log.WithFields(logrus.Fields{
		"persisted": len(entries),
		"restored":  restored,
	}).Info("Restored registry state")

	// Rewrite so rejected entries don't come back on the next restart.
	r.persist()
}

// restoreSession re-admits one persisted session. Three gates, in order:
// the pid must be alive and carry the recorded start-time fingerprint, the
// cwd must fall inside the workspace, and the pids must still correlate
// with an open terminal.
func (r *Registry) restoreSession(ctx context.Context, e persistedSession) bool {
	entryLog := r.log.WithFields(logrus.Fields{
		"sessionId": e.SessionID,
		"pid":       e.PID,
	})

	if !r.isProcessValid(ctx, e.PID, e.PidStartTime) {
		entryLog.Debug("Skipping persisted session, process gone or reused")
		return false
	}
	if r.filter != nil && e.Cwd != "" && !r.filter.Allows(e.Cwd) {
		entryLog.Debug("Skipping persisted session, outside workspace")
		return false
	}
	if r.linker != nil && !r.linker.CanLink(ctx, e.PID, e.PPID) {
		entryLog.Debug("Skipping persisted session, no terminal correlation")
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if _, exists := r.active[e.SessionID]; exists {
		r.mu.Unlock()
		return false
	}
	if prev, claimed := r.pidIndex[e.PID]; claimed && prev != e.SessionID {
		// Duplicate pid inside the persisted file; first entry wins.
		r.mu.Unlock()
		return false
	}

	now := r.clk.Now()
	rec := &record{
		sessionID:      e.SessionID,
		transcriptPath: e.TranscriptPath,
		cwd:            e.Cwd,
		pid:            e.PID,
		ppid:           e.PPID,
		tty:            e.TTY,
		pidStartTime:   e.PidStartTime,
		recentTools:    e.RecentTools,
		created:        now,
		lastActivity:   now,
	}
	r.active[e.SessionID] = rec
	r.indexLocked(rec)
	if e.TranscriptPath != "" {
		delete(r.unclaimed, e.TranscriptPath)
		delete(r.orphans, e.TranscriptPath)
		delete(r.mtimes, e.TranscriptPath)
	}
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	entryLog.Debug("Restored session")

	if e.TranscriptPath != "" {
		r.HandleFileChanged(ctx, e.TranscriptPath)
	}
	if r.linker != nil {
		r.lazyLink(ctx, e.SessionID)
	}
	return true
}

// isProcessValid reports whether pid is alive and is still the process the
// fingerprint was taken from. An empty fingerprint degrades to the liveness
// check alone; a failed start-time query rejects, since identity cannot be
// proven.
func (r *Registry) isProcessValid(ctx context.Context, pid int, fingerprint string) bool {
	if pid <= 0 || r.inspector == nil {
		return false
	}
	if !r.inspector.Alive(pid) {
		return false
	}
	if fingerprint == "" {
		return true
	}
	st, err := r.inspector.StartTime(ctx, pid)
	if err != nil {
		return false
	}
	return st == fingerprint
}

// Sweep re-validates the liveness of every process-backed session and
// archives the dead ones. A start-time mismatch on a live pid means the pid
// was recycled; the session it belonged to is gone.
func (r *Registry) Sweep(ctx context.Context) {
	if r.inspector == nil {
		return
	}

	type probe struct {
		sessionID   string
		pid         int
		fingerprint string
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	probes := make([]probe, 0, len(r.active))
	for _, rec := range r.active {
		if rec.pid > 0 {
			probes = append(probes, probe{rec.sessionID, rec.pid, rec.pidStartTime})
		}
	}
	r.mu.Unlock()

	for _, p := range probes {
		if !r.inspector.Alive(p.pid) {
			r.endSession(ctx, p.sessionID, "process exited")
			continue
		}
		if p.fingerprint == "" {
			continue
		}
		st, err := r.inspector.StartTime(ctx, p.pid)
		if err != nil {
			// Transient query failure; the next sweep retries.
			continue
		}
		if st != p.fingerprint {
			r.endSession(ctx, p.sessionID, "pid reused")
		}
	}
}

// endSession retires an active session: deindex, final parse when no
// snapshot was ever cached, archive, release the terminal, rewrite
// persistence. Reports whether the session was active.
func (r *Registry) endSession(ctx context.Context, sessionID, reason string) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	rec := r.removeLocked(sessionID)
	if rec == nil {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	if rec.state == nil && rec.transcriptPath != "" && r.parser != nil {
		if st, err := r.parser.Parse(rec.transcriptPath); err == nil && st != nil {
			rec.state = st
		}
	}

	r.mu.Lock()
	// The session may have re-registered while the final parse ran; the
	// fresh record wins and the stale one is dropped silently.
	if _, relaunched := r.active[sessionID]; !relaunched {
		rec.currentTool = nil
		r.archived[sessionID] = &archivedSession{
			view:       rec.view(),
			archivedAt: r.clk.Now(),
		}
	}
	r.scheduleNotifyLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"reason":    reason,
	}).Info("Session ended")

	r.unlink(sessionID)
	r.persist()
	return true
}

// Terminate removes a session on explicit request.
func (r *Registry) Terminate(ctx context.Context, sessionID string) error {
	if !r.endSession(ctx, sessionID, "terminated by request") {
		return errors.SessionNotFound(sessionID)
	}
	return nil
}

// HandleTerminalClosed clears the link state for a terminal that went away.
// The session itself stays active; the liveness sweep decides whether its
// process died with the terminal.
func (r *Registry) HandleTerminalClosed(terminalID string) {
	if r.linker == nil {
		return
	}
	sessionID, ok := r.linker.HandleClosed(terminalID)
	if !ok {
		return
	}

	r.mu.Lock()
	if rec, exists := r.active[sessionID]; exists && rec.terminalID == terminalID {
		rec.terminalID = ""
		r.scheduleNotifyLocked()
	}
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"terminalId": terminalID,
		"sessionId":  sessionID,
	}).Debug("Terminal closed")
}

// Reveal focuses the terminal hosting a session, attempting a lazy link
// first when none is recorded.
func (r *Registry) Reveal(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.SessionNotFound(sessionID)
	}
	linked := rec.terminalID != ""
	r.mu.Unlock()

	if r.linker == nil {
		return errors.New(errors.ErrCodeTerminalGone, "terminal linking is not configured")
	}
	if !linked {
		r.lazyLink(ctx, sessionID)
	}

	term, ok := r.linker.TerminalFor(sessionID)
	if !ok {
		return errors.New(errors.ErrCodeTerminalGone, "session has no linked terminal").
			WithDetail("sessionId", sessionID)
	}
	return term.Reveal(ctx)
}
