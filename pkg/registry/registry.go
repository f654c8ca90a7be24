// Package registry tracks live coding-agent sessions for one workspace: who
// is running (hook events), what they are doing (transcript snapshots), and
// where they sit (terminal links). Identity and content arrive on different
// channels and are reconciled here; the registry survives restarts by
// persisting identity and re-validating it against the OS on startup.
//
// All state is guarded by one mutex. Handlers mutate under the lock and do
// I/O (parsing, persistence, process queries) outside it, re-checking that
// the record still exists before applying async results.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/gitinfo"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/process"
	"github.com/grovetools/roster/pkg/transcript"
	"github.com/grovetools/roster/pkg/workspace"
)

const (
	// DefaultNotifyDebounce is the quiet period after a mutation before
	// observers get one coalesced update.
	DefaultNotifyDebounce = 150 * time.Millisecond

	// DefaultStaleToolTimeout clears a current tool whose completion event
	// never arrived.
	DefaultStaleToolTimeout = 30 * time.Second

	// DefaultRecentToolsCap bounds per-session tool history.
	DefaultRecentToolsCap = 15

	// DefaultInactiveCap bounds the archived and unclaimed maps; oldest
	// entries by last modification give way first.
	DefaultInactiveCap = 50
)

// Options wires a Registry's collaborators and tuning. Parser is required;
// everything else has a default or degrades gracefully when nil.
type Options struct {
	Parser    SnapshotProvider
	Inspector process.Inspector // nil disables liveness and fingerprint checks
	Linker    TerminalLinker    // nil disables terminal linking
	Filter    *workspace.Filter // nil admits every cwd
	Git       *gitinfo.Resolver // nil skips repo/branch enrichment
	Store     *Store            // nil disables persistence
	Clock     clock.Clock       // nil uses the system clock

	NotifyDebounce   time.Duration
	StaleToolTimeout time.Duration
	RecentToolsCap   int
	InactiveCap      int
}

type orphanEntry struct {
	parentID  string
	firstSeen time.Time
}

// Registry is the session index for one workspace.
type Registry struct {
	mu sync.Mutex

	active    map[string]*record // sessionID -> record
	pidIndex  map[int]string     // pid -> sessionID
	ppidIndex map[int]string     // ppid -> sessionID
	pathIndex map[string]string  // transcriptPath -> sessionID

	archived  map[string]*archivedSession         // sessionID -> frozen view
	unclaimed map[string]*transcript.SessionState // transcriptPath -> snapshot without a live claimant
	orphans   map[string]orphanEntry              // agent transcriptPath -> parent it waits for

	mtimes map[string]time.Time // transcriptPath -> mtime at last applied parse

	subscribers map[chan models.Update]struct{}
	notifyTimer clock.Timer

	parser    SnapshotProvider
	inspector process.Inspector
	linker    TerminalLinker
	filter    *workspace.Filter
	git       *gitinfo.Resolver
	store     *Store
	clk       clock.Clock
	log       *logrus.Entry

	notifyDebounce   time.Duration
	staleToolTimeout time.Duration
	recentToolsCap   int
	inactiveCap      int

	persistMu sync.Mutex
	closed    bool
}

// New creates a Registry. It starts empty; call Restore to reload persisted
// sessions.
func New(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.NotifyDebounce <= 0 {
		opts.NotifyDebounce = DefaultNotifyDebounce
	}
	if opts.StaleToolTimeout <= 0 {
		opts.StaleToolTimeout = DefaultStaleToolTimeout
	}
	if opts.RecentToolsCap <= 0 {
		opts.RecentToolsCap = DefaultRecentToolsCap
	}
	if opts.InactiveCap <= 0 {
		opts.InactiveCap = DefaultInactiveCap
	}

	return &Registry{
		active:      make(map[string]*record),
		pidIndex:    make(map[int]string),
		ppidIndex:   make(map[int]string),
		pathIndex:   make(map[string]string),
		archived:    make(map[string]*archivedSession),
		unclaimed:   make(map[string]*transcript.SessionState),
		orphans:     make(map[string]orphanEntry),
		mtimes:      make(map[string]time.Time),
		subscribers: make(map[chan models.Update]struct{}),

		parser:    opts.Parser,
		inspector: opts.Inspector,
		linker:    opts.Linker,
		filter:    opts.Filter,
		git:       opts.Git,
		store:     opts.Store,
		clk:       opts.Clock,
		log:       logging.NewLogger("registry"),

		notifyDebounce:   opts.NotifyDebounce,
		staleToolTimeout: opts.StaleToolTimeout,
		recentToolsCap:   opts.RecentToolsCap,
		inactiveCap:      opts.InactiveCap,
	}
}

// Subscribe creates a subscription channel for coalesced state updates.
// Subscribing to a closed registry returns an already-closed channel.
func (r *Registry) Subscribe() chan models.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan models.Update, 100) // Buffered
	if r.closed {
		close(ch)
		return ch
	}
	r.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Registry) Unsubscribe(ch chan models.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subscribers[ch]; ok {
		delete(r.subscribers, ch)
		close(ch)
	}
}

// Snapshot returns the current presentation state without waiting for the
// notification debounce.
func (r *Registry) Snapshot() models.StateSnapshot {
	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	r.enrich(&snap)
	return snap
}

// ActiveSessions returns views of every active record.
func (r *Registry) ActiveSessions() []models.SessionView {
	return r.Snapshot().Active
}

// InactiveSessions returns views of archived and unclaimed sessions.
func (r *Registry) InactiveSessions() []models.SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inactiveLocked()
}

// Get returns the view of one active session.
func (r *Registry) Get(sessionID string) (models.SessionView, bool) {
	r.mu.Lock()
	rec, ok := r.active[sessionID]
	if !ok {
		r.mu.Unlock()
		return models.SessionView{}, false
	}
	v := rec.view()
	r.mu.Unlock()
	if r.git != nil && v.Cwd != "" {
		info := r.git.Lookup(context.Background(), v.Cwd)
		v.Repo, v.Branch = info.Repo, info.Branch
	}
	return v, true
}

// Close cancels every timer and flushes persistence synchronously. No
// notifications are delivered after Close returns.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.notifyTimer != nil {
		r.notifyTimer.Stop()
		r.notifyTimer = nil
	}
	for _, rec := range r.active {
		rec.cancelStaleTimer()
	}
	for ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = make(map[chan models.Update]struct{})
	sessions := r.persistedLocked()
	r.mu.Unlock()

	r.savePersisted(sessions)
}

// scheduleNotifyLocked arms (or re-arms) the debounce timer. Every mutation
// pushes the flush out to a full quiet period from now.
func (r *Registry) scheduleNotifyLocked() {
	if r.closed {
		return
	}
	if r.notifyTimer != nil {
		r.notifyTimer.Reset(r.notifyDebounce)
		return
	}
	r.notifyTimer = r.clk.AfterFunc(r.notifyDebounce, r.flushNotify)
}

// flushNotify recomputes presentation state and broadcasts it. Order is
// fixed: active list, inactive trim, then the orphan recheck, because orphan
// resolution mutates the active list and must ride the next flush.
func (r *Registry) flushNotify() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.notifyTimer = nil
	r.trimInactiveLocked()
	snap := r.snapshotLocked()
	candidates := r.orphanCandidatesLocked()
	r.mu.Unlock()

	r.enrich(&snap)

	update := models.Update{
		Type:     models.UpdateSessions,
		Source:   "registry",
		Snapshot: &snap,
	}

	// Broadcast under the lock: channels are closed under it too, so a send
	// can never race a close. Sends are non-blocking, a slow client can't
	// stall the daemon.
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	for ch := range r.subscribers {
		select {
		case ch <- update:
		default:
		}
	}
	r.mu.Unlock()

	if len(candidates) > 0 {
		r.resolveOrphans(context.Background(), candidates)
	}
}

func (r *Registry) snapshotLocked() models.StateSnapshot {
	snap := models.StateSnapshot{
		Active:      make([]models.SessionView, 0, len(r.active)),
		Inactive:    r.inactiveLocked(),
		GeneratedAt: r.clk.Now(),
	}
	for _, rec := range r.active {
		snap.Active = append(snap.Active, rec.view())
	}
	sort.Slice(snap.Active, func(i, j int) bool {
		a, b := snap.Active[i], snap.Active[j]
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		return a.SessionID < b.SessionID
	})
	for path, entry := range r.orphans {
		snap.Orphans = append(snap.Orphans, models.OrphanedAgent{
			TranscriptPath:  path,
			ParentSessionID: entry.parentID,
			FirstSeen:       entry.firstSeen,
		})
	}
	sort.Slice(snap.Orphans, func(i, j int) bool {
		return snap.Orphans[i].TranscriptPath < snap.Orphans[j].TranscriptPath
	})
	return snap
}

// inactiveLocked merges archived sessions and unclaimed snapshots, most
// recently modified first.
func (r *Registry) inactiveLocked() []models.SessionView {
	views := make([]models.SessionView, 0, len(r.archived)+len(r.unclaimed))
	for _, a := range r.archived {
		views = append(views, a.view)
	}
	for path, state := range r.unclaimed {
		views = append(views, unclaimedView(path, state))
	}
	sort.Slice(views, func(i, j int) bool {
		a, b := views[i], views[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.SessionID < b.SessionID
	})
	return views
}

// trimInactiveLocked drops the oldest archived and unclaimed entries once
// their maps exceed the cap, keyed on last modification.
func (r *Registry) trimInactiveLocked() {
	for len(r.archived) > r.inactiveCap {
		oldestID := ""
		var oldest time.Time
		for id, a := range r.archived {
			at := a.view.LastModified
			if at.IsZero() {
				at = a.archivedAt
			}
			if oldestID == "" || at.Before(oldest) {
				oldestID, oldest = id, at
			}
		}
		delete(r.archived, oldestID)
	}
	for len(r.unclaimed) > r.inactiveCap {
		oldestPath := ""
		var oldest time.Time
		for path, state := range r.unclaimed {
			if oldestPath == "" || state.LastModified.Before(oldest) {
				oldestPath, oldest = path, state.LastModified
			}
		}
		delete(r.unclaimed, oldestPath)
		delete(r.mtimes, oldestPath)
	}
}

// enrich annotates active views with repo and branch. Lookups are cached by
// the resolver, so only the first sighting of a cwd shells out.
func (r *Registry) enrich(snap *models.StateSnapshot) {
	if r.git == nil {
		return
	}
	ctx := context.Background()
	for i := range snap.Active {
		if snap.Active[i].Cwd == "" {
			continue
		}
		info := r.git.Lookup(ctx, snap.Active[i].Cwd)
		snap.Active[i].Repo = info.Repo
		snap.Active[i].Branch = info.Branch
	}
}

// persist snapshots durable identity and rewrites the store. Never called
// under the state mutex; persistMu serializes writers so an older snapshot
// cannot overwrite a newer one.
func (r *Registry) persist() {
	if r.store == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	r.mu.Lock()
	sessions := r.persistedLocked()
	r.mu.Unlock()
	if err := r.store.Save(sessions); err != nil {
		r.log.WithError(err).Warn("Failed to persist registry state")
	}
}

func (r *Registry) savePersisted(sessions []persistedSession) {
	if r.store == nil {
		return
	}
	r.persistMu.Lock()
	defer r.persistMu.Unlock()
	if err := r.store.Save(sessions); err != nil {
		r.log.WithError(err).Warn("Failed to persist registry state")
	}
}

// persistedLocked collects process-backed records. Content-only agent
// records are skipped: they have no pid to validate on restore and resurface
// from their transcripts instead.
func (r *Registry) persistedLocked() []persistedSession {
	sessions := make([]persistedSession, 0, len(r.active))
	for _, rec := range r.active {
		if rec.pid <= 0 {
			continue
		}
		sessions = append(sessions, persistedSession{
			SessionID:      rec.sessionID,
			TranscriptPath: rec.transcriptPath,
			Cwd:            rec.cwd,
			PID:            rec.pid,
			PPID:           rec.ppid,
			TTY:            rec.tty,
			PidStartTime:   rec.pidStartTime,
			RecentTools:    rec.recentTools,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].SessionID < sessions[j].SessionID
	})
	return sessions
}

// indexLocked registers a record in every secondary index. Zero pids stay
// out of the pid indexes; content-only records are keyed by path alone.
func (r *Registry) indexLocked(rec *record) {
	if rec.pid > 0 {
		r.pidIndex[rec.pid] = rec.sessionID
	}
	if rec.ppid > 0 {
		r.ppidIndex[rec.ppid] = rec.sessionID
	}
	if rec.transcriptPath != "" {
		r.pathIndex[rec.transcriptPath] = rec.sessionID
	}
}

// removeLocked detaches a record from the active map and every index, and
// cancels its timers. Returns nil when the session is not active.
func (r *Registry) removeLocked(sessionID string) *record {
	rec, ok := r.active[sessionID]
	if !ok {
		return nil
	}
	delete(r.active, sessionID)
	if rec.pid > 0 && r.pidIndex[rec.pid] == sessionID {
		delete(r.pidIndex, rec.pid)
	}
	if rec.ppid > 0 && r.ppidIndex[rec.ppid] == sessionID {
		delete(r.ppidIndex, rec.ppid)
	}
	if rec.transcriptPath != "" && r.pathIndex[rec.transcriptPath] == sessionID {
		delete(r.pathIndex, rec.transcriptPath)
	}
	rec.cancelStaleTimer()
	return rec
}

// archiveLocked moves an active session to the archived map. Returns the
// record so callers can release its terminal link outside the lock.
func (r *Registry) archiveLocked(sessionID, reason string) *record {
	rec := r.removeLocked(sessionID)
	if rec == nil {
		return nil
	}
	rec.currentTool = nil
	r.archived[sessionID] = &archivedSession{
		view:       rec.view(),
		archivedAt: r.clk.Now(),
	}
	r.log.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"reason":    reason,
	}).Debug("Archived session")
	r.scheduleNotifyLocked()
	return rec
}

// unlink releases a session's terminal link. Callers must not hold r.mu.
func (r *Registry) unlink(sessionID string) {
	if r.linker != nil {
		r.linker.Unlink(sessionID)
	}
}
