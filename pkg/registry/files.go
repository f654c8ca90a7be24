package registry

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/pkg/transcript"
)

// HandleFileChanged reconciles a transcript file with the registry. The file
// is skipped when its mtime has not advanced past the last applied parse, so
// redundant watcher events cost one stat and nothing else. Parsing happens
// outside the lock; the result is applied to whichever record claims the
// path, or held as unclaimed/orphaned content when none does.
func (r *Registry) HandleFileChanged(ctx context.Context, path string) {
	if !transcript.IsTranscriptName(filepath.Base(path)) {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		r.dropVanished(path)
		return
	}
	mtime := info.ModTime()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if cached, ok := r.mtimes[path]; ok && !mtime.After(cached) {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	state, err := r.parser.Parse(path)
	if err != nil {
		r.log.WithError(err).WithField("path", path).Debug("Transcript parse failed")
		return
	}
	if state == nil {
		// Nothing parsable yet; leave the mtime cache alone so the next
		// change retries.
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mtimes[path] = mtime

	if sid, ok := r.pathIndex[path]; ok {
		if rec, live := r.active[sid]; live {
			rec.state = state
			r.scheduleNotifyLocked()
		}
		r.mu.Unlock()
		return
	}

	r.admitUnclaimedLocked(path, state)
	r.mu.Unlock()
}

// dropVanished forgets snapshot-only state for a transcript that no longer
// exists. Active records keep their last snapshot; liveness decides them.
func (r *Registry) dropVanished(path string) {
	r.mu.Lock()
	_, hadUnclaimed := r.unclaimed[path]
	_, hadOrphan := r.orphans[path]
	delete(r.unclaimed, path)
	delete(r.orphans, path)
	delete(r.mtimes, path)
	if hadUnclaimed || hadOrphan {
		r.scheduleNotifyLocked()
	}
	r.mu.Unlock()
}

// admitUnclaimedLocked files a snapshot no live process has claimed. An
// agent snapshot joins its parent immediately when the parent is active,
// waits in the orphan set when it is not; a primary snapshot is shown as
// inactive content.
func (r *Registry) admitUnclaimedLocked(path string, state *transcript.SessionState) {
	if state.IsAgent && state.ParentSessionID != "" {
		if _, parentActive := r.active[state.ParentSessionID]; parentActive {
			r.admitAgentLocked(path, state)
			return
		}
		entry, exists := r.orphans[path]
		if !exists {
			entry = orphanEntry{firstSeen: r.clk.Now()}
		}
		entry.parentID = state.ParentSessionID
		r.orphans[path] = entry
		delete(r.unclaimed, path)
		r.scheduleNotifyLocked()
		return
	}

	r.unclaimed[path] = state
	delete(r.orphans, path)
	r.scheduleNotifyLocked()
}

// admitAgentLocked creates a content-only record for an agent session whose
// parent is active. Agent records carry no pids; the parent's liveness
// governs them.
func (r *Registry) admitAgentLocked(path string, state *transcript.SessionState) {
	if state.SessionID == "" {
		return
	}
	if _, taken := r.active[state.SessionID]; taken {
		return
	}

	now := r.clk.Now()
	rec := &record{
		sessionID:      state.SessionID,
		transcriptPath: path,
		cwd:            state.Cwd,
		state:          state,
		created:        now,
		lastActivity:   now,
	}
	r.active[state.SessionID] = rec
	r.indexLocked(rec)
	delete(r.orphans, path)
	delete(r.unclaimed, path)
	r.scheduleNotifyLocked()

	r.log.WithFields(logrus.Fields{
		"sessionId": state.SessionID,
		"parent":    state.ParentSessionID,
	}).Debug("Admitted agent session")
}

type orphanCandidate struct {
	path     string
	parentID string
}

// orphanCandidatesLocked returns waiting agents whose parent has become
// active since they were filed.
func (r *Registry) orphanCandidatesLocked() []orphanCandidate {
	var out []orphanCandidate
	for path, entry := range r.orphans {
		if _, claimed := r.pathIndex[path]; claimed {
			continue
		}
		if _, parentActive := r.active[entry.parentID]; parentActive {
			out = append(out, orphanCandidate{path: path, parentID: entry.parentID})
		}
	}
	return out
}

// resolveOrphans re-parses candidate transcripts and admits those whose
// parent is still active by the time the parse lands.
func (r *Registry) resolveOrphans(ctx context.Context, candidates []orphanCandidate) {
	for _, c := range candidates {
		info, err := os.Stat(c.path)
		if err != nil {
			r.dropVanished(c.path)
			continue
		}

		state, err := r.parser.Parse(c.path)
		if err != nil || state == nil {
			continue
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		if _, waiting := r.orphans[c.path]; !waiting {
			r.mu.Unlock()
			continue
		}
		parentID := state.ParentSessionID
		if parentID == "" {
			parentID = c.parentID
		}
		if _, parentActive := r.active[parentID]; !parentActive {
			r.mu.Unlock()
			continue
		}
		r.mtimes[c.path] = info.ModTime()
		r.admitAgentLocked(c.path, state)
		r.mu.Unlock()
	}
}
