package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/transcript"
	"github.com/grovetools/roster/pkg/workspace"
)

func (f *fakeInspector) setStartErr(pid int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr[pid] = err
}

func seedStore(t *testing.T, entries ...persistedSession) *Store {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, store.Save(entries))
	return store
}

func TestRestoreRestoresValidSession(t *testing.T) {
	dir := t.TempDir()
	path := writeTranscript(t, dir, uuidA+".jsonl")

	linker := newFakeLinker()
	linker.canLink = true
	store := seedStore(t, persistedSession{
		SessionID:      uuidA,
		TranscriptPath: path,
		PID:            100,
		PPID:           4000,
		TTY:            "/dev/ttys001",
		PidStartTime:   "Wed Jan  1 10:00:00 2025",
		RecentTools:    []models.RecentTool{{Name: "Bash", DurationMS: 1200}},
	})

	f := newFixture(t, func(o *Options) {
		o.Store = store
		o.Linker = linker
	})
	f.insp.setAlive(100, true)
	f.insp.setStart(100, "Wed Jan  1 10:00:00 2025")
	f.parser.set(path, &transcript.SessionState{SessionID: uuidA, Status: models.StatusWorking})

	f.reg.Restore(context.Background())

	updates := f.flush()
	require.NotEmpty(t, updates)

	v, ok := f.reg.Get(uuidA)
	require.True(t, ok)
	assert.Equal(t, 100, v.PID)
	assert.Equal(t, models.StatusWorking, v.Status, "transcript re-parsed on restore")
	require.Len(t, v.RecentTools, 1)
	assert.Equal(t, "Bash", v.RecentTools[0].Name)

	linker.mu.Lock()
	calls := linker.canLinkCalls
	linker.mu.Unlock()
	assert.Equal(t, 1, calls, "terminal correlation gate must run")
	checkIndexes(t, f.reg)
}

func TestRestoreRejectsDeadProcess(t *testing.T) {
	store := seedStore(t, persistedSession{SessionID: uuidA, PID: 100})

	f := newFixture(t, func(o *Options) { o.Store = store })
	// pid 100 is not alive.
	f.reg.Restore(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.False(t, ok)

	remaining, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, remaining, "rejected entries are dropped from disk")
}

func TestRestoreRejectsReusedPid(t *testing.T) {
	store := seedStore(t, persistedSession{
		SessionID:    uuidA,
		PID:          100,
		PidStartTime: "Wed Jan  1 10:00:00 2025",
	})

	f := newFixture(t, func(o *Options) { o.Store = store })
	f.insp.setAlive(100, true)
	// Same pid, different process: the fingerprint gives it away.
	f.insp.setStart(100, "Thu Jan  2 08:30:00 2025")

	f.reg.Restore(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.False(t, ok, "a recycled pid must not resurrect the session")
}

func TestRestoreWithoutFingerprintChecksLivenessOnly(t *testing.T) {
	store := seedStore(t, persistedSession{SessionID: uuidA, PID: 100})

	f := newFixture(t, func(o *Options) { o.Store = store })
	f.insp.setAlive(100, true)

	f.reg.Restore(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.True(t, ok)
}

func TestRestoreRejectsOutsideWorkspace(t *testing.T) {
	root := t.TempDir()
	elsewhere := t.TempDir()
	filter, err := workspace.NewFilter([]string{root}, nil)
	require.NoError(t, err)

	store := seedStore(t, persistedSession{SessionID: uuidA, PID: 100, Cwd: elsewhere})

	f := newFixture(t, func(o *Options) {
		o.Store = store
		o.Filter = filter
	})
	f.insp.setAlive(100, true)

	f.reg.Restore(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.False(t, ok)
}

func TestRestoreRejectsWithoutTerminalCorrelation(t *testing.T) {
	linker := newFakeLinker()
	linker.canLink = false
	store := seedStore(t, persistedSession{SessionID: uuidA, PID: 100, PPID: 4000})

	f := newFixture(t, func(o *Options) {
		o.Store = store
		o.Linker = linker
	})
	f.insp.setAlive(100, true)

	f.reg.Restore(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.False(t, ok)
}

func TestRestoreVersionMismatchColdStarts(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.json")
	raw := `{"version": 99, "sessions": [{"sessionId": "` + uuidA + `", "pid": 100}]}`
	require.NoError(t, os.WriteFile(statePath, []byte(raw), 0644))

	f := newFixture(t, func(o *Options) { o.Store = NewStore(statePath) })
	f.insp.setAlive(100, true)

	f.reg.Restore(context.Background())

	assert.Empty(t, f.reg.ActiveSessions(), "unknown versions cold start")
}

func TestIsProcessValid(t *testing.T) {
	f := newFixture(t)
	f.insp.setAlive(100, true)
	f.insp.setStart(100, "T1")
	f.insp.setAlive(200, true)
	f.insp.setStartErr(200, fmt.Errorf("ps failed"))
	ctx := context.Background()

	tests := []struct {
		name        string
		pid         int
		fingerprint string
		want        bool
	}{
		{"zero pid", 0, "", false},
		{"dead pid", 999, "", false},
		{"alive without fingerprint", 100, "", true},
		{"alive with matching fingerprint", 100, "T1", true},
		{"alive with stale fingerprint", 100, "T0", false},
		{"fingerprint query fails", 200, "T1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.reg.isProcessValid(ctx, tt.pid, tt.fingerprint))
		})
	}
}

func TestSweepArchivesDeadProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.insp.setAlive(100, true)
	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))
	f.flush()

	f.insp.setAlive(100, false)
	f.reg.Sweep(ctx)

	updates := f.flush()
	require.Len(t, updates, 1)
	snap := updates[0].Snapshot
	assert.Empty(t, snap.Active)
	require.Len(t, snap.Inactive, 1)
	assert.Equal(t, uuidA, snap.Inactive[0].SessionID)
	checkIndexes(t, f.reg)
}

func TestSweepArchivesReusedPid(t *testing.T) {
	store := seedStore(t, persistedSession{
		SessionID:    uuidA,
		PID:          100,
		PidStartTime: "T0",
	})
	f := newFixture(t, func(o *Options) { o.Store = store })
	f.insp.setAlive(100, true)
	f.insp.setStart(100, "T0")

	f.reg.Restore(context.Background())
	_, ok := f.reg.Get(uuidA)
	require.True(t, ok)
	f.flush()

	// The process exits and the kernel hands pid 100 to someone else.
	f.insp.setStart(100, "T9")
	f.reg.Sweep(context.Background())

	_, ok = f.reg.Get(uuidA)
	assert.False(t, ok)
}

func TestSweepKeepsLiveSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.insp.setAlive(100, true)
	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))
	f.flush()

	f.reg.Sweep(ctx)

	_, ok := f.reg.Get(uuidA)
	assert.True(t, ok)
	assert.Empty(t, f.flush(), "sweep over healthy sessions mutates nothing")
}

func TestSweepToleratesFingerprintQueryFailure(t *testing.T) {
	store := seedStore(t, persistedSession{SessionID: uuidA, PID: 100, PidStartTime: "T0"})
	f := newFixture(t, func(o *Options) { o.Store = store })
	f.insp.setAlive(100, true)
	f.insp.setStart(100, "T0")

	f.reg.Restore(context.Background())
	f.flush()

	f.insp.setStartErr(100, fmt.Errorf("ps timed out"))
	f.reg.Sweep(context.Background())

	_, ok := f.reg.Get(uuidA)
	assert.True(t, ok, "a transient query failure must not end the session")
}

func TestTerminate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))
	require.NoError(t, f.reg.Terminate(ctx, uuidA))

	_, ok := f.reg.Get(uuidA)
	assert.False(t, ok)

	err := f.reg.Terminate(ctx, uuidA)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
}

func TestRevealFocusesLinkedTerminal(t *testing.T) {
	linker := newFakeLinker()
	term := &fakeTerm{id: "%7"}
	linker.pendingByPid[4000] = term

	f := newFixture(t, func(o *Options) { o.Linker = linker })
	ctx := context.Background()

	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))

	require.NoError(t, f.reg.Reveal(ctx, uuidA))
	assert.Equal(t, 1, term.revealCount())

	err := f.reg.Reveal(ctx, uuidB)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
}

func TestRevealWithoutTerminalFails(t *testing.T) {
	linker := newFakeLinker()
	f := newFixture(t, func(o *Options) { o.Linker = linker })
	ctx := context.Background()

	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))

	err := f.reg.Reveal(ctx, uuidA)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTerminalGone, errors.GetCode(err))
}

func TestTerminalClosedClearsLink(t *testing.T) {
	linker := newFakeLinker()
	term := &fakeTerm{id: "%7"}
	linker.pendingByPid[4000] = term

	f := newFixture(t, func(o *Options) { o.Linker = linker })
	ctx := context.Background()

	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))
	v, _ := f.reg.Get(uuidA)
	require.Equal(t, "%7", v.TerminalID)
	f.flush()

	f.reg.HandleTerminalClosed("%7")

	v, ok := f.reg.Get(uuidA)
	require.True(t, ok, "losing the terminal does not end the session")
	assert.Empty(t, v.TerminalID)
	assert.Len(t, f.flush(), 1)
}

func TestCloseFlushesPersistenceAndStopsNotifications(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "state.json"))
	f := newFixture(t, func(o *Options) { o.Store = store })
	ctx := context.Background()

	f.reg.HandleSessionStart(ctx, startEvent(uuidA, 100, 4000, "", ""))
	f.reg.Close()

	_, open := <-f.ch
	assert.False(t, open, "subscriptions close with the registry")

	persisted, err := store.Load()
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, uuidA, persisted[0].SessionID)

	// Post-close events and timers are inert.
	f.reg.HandleToolStart(ctx, toolStart(uuidA, "Bash"))
	f.reg.HandleSessionStart(ctx, startEvent(uuidB, 200, 5000, "", ""))
	f.clk.Advance(DefaultNotifyDebounce * 4)
	assert.Empty(t, f.reg.ActiveSessions()[0].CurrentTool)
	assert.Len(t, f.reg.ActiveSessions(), 1)
}
