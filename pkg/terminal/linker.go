package terminal

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/process"
)

const (
	// PendingCapacity bounds the queue of terminals registered before their
	// session announced itself. Oldest entries are evicted first.
	PendingCapacity = 50

	// MaxAncestorHops bounds the parent-chain walk when correlating a
	// session process with a terminal.
	MaxAncestorHops = 10
)

// DefaultTitleMarkers are the substrings a terminal title must carry for the
// name-heuristic fallback to consider it an agent terminal.
var DefaultTitleMarkers = []string{"claude"}

type pendingTerminal struct {
	term         Terminal
	registeredAt time.Time
}

// Linker correlates sessions with terminals. It keeps a bounded queue of
// pre-registered terminals waiting for their session, and a two-way index of
// confirmed links.
type Linker struct {
	mu        sync.Mutex
	pending   []pendingTerminal
	bySession map[string]Terminal // sessionID -> linked terminal
	byTermID  map[string]string   // terminalID -> sessionID

	provider  Provider
	inspector process.Inspector
	markers   []string
	log       *logrus.Entry
}

// NewLinker creates a Linker over the given provider and process inspector.
func NewLinker(provider Provider, inspector process.Inspector) *Linker {
	return &Linker{
		bySession: make(map[string]Terminal),
		byTermID:  make(map[string]string),
		provider:  provider,
		inspector: inspector,
		markers:   DefaultTitleMarkers,
		log:       logging.NewLogger("terminal-linker"),
	}
}

// SetTitleMarkers overrides the title substrings used by the heuristic
// fallback.
func (l *Linker) SetTitleMarkers(markers []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(markers) > 0 {
		l.markers = markers
	}
}

// RegisterPending queues a terminal expected to host a session that has not
// announced itself yet. When the queue is full the oldest entry gives way.
func (l *Linker) RegisterPending(term Terminal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) >= PendingCapacity {
		evicted := l.pending[0]
		l.pending = l.pending[1:]
		l.log.WithField("terminalId", evicted.term.ID()).Debug("Evicted oldest pending terminal")
	}
	l.pending = append(l.pending, pendingTerminal{term: term, registeredAt: time.Now()})
}

// PendingCount returns the number of queued pending terminals.
func (l *Linker) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// LinkPending tries to match a just-announced session against the pending
// queue: a pending terminal whose shell pid equals the session's live parent
// pid is promoted to a confirmed link and leaves the queue.
func (l *Linker) LinkPending(ctx context.Context, sessionID string, parentPid int) (Terminal, bool) {
	if parentPid <= 0 || !l.inspector.Alive(parentPid) {
		return nil, false
	}

	l.mu.Lock()
	candidates := make([]pendingTerminal, len(l.pending))
	copy(candidates, l.pending)
	l.mu.Unlock()

	for _, c := range candidates {
		pid, err := c.term.PID(ctx)
		if err != nil || pid != parentPid {
			continue
		}

		l.mu.Lock()
		l.removePendingLocked(c.term.ID())
		l.confirmLocked(sessionID, c.term)
		l.mu.Unlock()

		l.log.WithFields(logrus.Fields{
			"sessionId":  sessionID,
			"terminalId": c.term.ID(),
		}).Debug("Linked pending terminal")
		return c.term, true
	}

	return nil, false
}

// FindTerminal locates the terminal hosting a session, given the session's
// claimed parent pid and its own pid. Match order: direct parent pid, then
// an ancestor-chain walk of pid (onPidCorrected fires when the walk lands on
// a different pid than claimed), then a title heuristic used only when the
// ancestor chain could not be read at all.
func (l *Linker) FindTerminal(ctx context.Context, parentPid, pid int, cwd string, onPidCorrected func(int)) (Terminal, bool) {
	terms, err := l.provider.Terminals(ctx)
	if err != nil {
		l.log.WithError(err).Debug("Terminal enumeration failed")
		return nil, false
	}

	byPid := l.indexByPid(ctx, terms)

	if term, ok := byPid[parentPid]; ok && parentPid > 0 {
		return term, true
	}

	term, matchedPid, walked := l.matchAncestors(ctx, pid, byPid)
	if term != nil {
		if matchedPid != parentPid && onPidCorrected != nil {
			onPidCorrected(matchedPid)
		}
		return term, true
	}
	if walked {
		// The chain was readable and no terminal sits on it; guessing by
		// title would link the wrong terminal.
		return nil, false
	}

	return l.matchByTitle(ctx, terms, cwd)
}

// CanLink reports whether a persisted session's pids still correlate with an
// open terminal. Only the deterministic steps count; the title heuristic is
// too weak to gate a restore.
func (l *Linker) CanLink(ctx context.Context, pid, parentPid int) bool {
	terms, err := l.provider.Terminals(ctx)
	if err != nil {
		return false
	}

	byPid := l.indexByPid(ctx, terms)

	if _, ok := byPid[parentPid]; ok && parentPid > 0 {
		return true
	}

	term, _, _ := l.matchAncestors(ctx, pid, byPid)
	return term != nil
}

// Confirm records a link established by the caller.
func (l *Linker) Confirm(sessionID string, term Terminal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmLocked(sessionID, term)
}

// TerminalFor returns the linked terminal for a session.
func (l *Linker) TerminalFor(sessionID string) (Terminal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	term, ok := l.bySession[sessionID]
	return term, ok
}

// SessionFor returns the session linked to a terminal.
func (l *Linker) SessionFor(terminalID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byTermID[terminalID]
	return id, ok
}

// Unlink removes a session's link, if any. Used when the session ends.
func (l *Linker) Unlink(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if term, ok := l.bySession[sessionID]; ok {
		delete(l.byTermID, term.ID())
		delete(l.bySession, sessionID)
	}
}

// HandleClosed removes all state referring to a terminal that went away and
// returns the session that was linked to it.
func (l *Linker) HandleClosed(terminalID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.removePendingLocked(terminalID)

	sessionID, ok := l.byTermID[terminalID]
	if ok {
		delete(l.byTermID, terminalID)
		delete(l.bySession, sessionID)
	}
	return sessionID, ok
}

func (l *Linker) confirmLocked(sessionID string, term Terminal) {
	// A session relinking to a new terminal drops the old reverse entry.
	if old, ok := l.bySession[sessionID]; ok {
		delete(l.byTermID, old.ID())
	}
	l.bySession[sessionID] = term
	l.byTermID[term.ID()] = sessionID
}

func (l *Linker) removePendingLocked(terminalID string) {
	for i, p := range l.pending {
		if p.term.ID() == terminalID {
			l.pending = append(l.pending[:i], l.pending[i+1:]...)
			return
		}
	}
}

// indexByPid queries each terminal's shell pid. Terminals that error are
// skipped; they are likely mid-close.
func (l *Linker) indexByPid(ctx context.Context, terms []Terminal) map[int]Terminal {
	byPid := make(map[int]Terminal, len(terms))
	for _, t := range terms {
		pid, err := t.PID(ctx)
		if err != nil || pid <= 0 {
			continue
		}
		if _, exists := byPid[pid]; !exists {
			byPid[pid] = t
		}
	}
	return byPid
}

// matchAncestors walks pid's parent chain looking for a terminal shell.
// walked reports whether the chain was readable.
func (l *Linker) matchAncestors(ctx context.Context, pid int, byPid map[int]Terminal) (Terminal, int, bool) {
	if pid <= 0 {
		return nil, 0, false
	}

	chain, err := l.inspector.Ancestors(ctx, pid, MaxAncestorHops)
	if err != nil && len(chain) == 0 {
		return nil, 0, false
	}

	for _, ancestor := range chain {
		if term, ok := byPid[ancestor]; ok {
			return term, ancestor, true
		}
	}
	return nil, 0, true
}

// matchByTitle is the last-resort heuristic: an agent-marked title that also
// mentions the working directory's base name.
func (l *Linker) matchByTitle(ctx context.Context, terms []Terminal, cwd string) (Terminal, bool) {
	if cwd == "" {
		return nil, false
	}
	base := strings.ToLower(filepath.Base(cwd))

	l.mu.Lock()
	markers := l.markers
	l.mu.Unlock()

	for _, t := range terms {
		title, err := t.Title(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(title)

		marked := false
		for _, m := range markers {
			if strings.Contains(lower, strings.ToLower(m)) {
				marked = true
				break
			}
		}
		if marked && strings.Contains(lower, base) {
			return t, true
		}
	}
	return nil, false
}
