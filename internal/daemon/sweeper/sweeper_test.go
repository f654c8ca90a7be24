package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/terminal"
)

type fakeRegistry struct {
	mu     sync.Mutex
	sweeps int
	closed []string
}

func (r *fakeRegistry) Sweep(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweeps++
}

func (r *fakeRegistry) HandleTerminalClosed(terminalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, terminalID)
}

func (r *fakeRegistry) closedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.closed...)
}

type fakeScanner struct {
	mu    sync.Mutex
	scans int
}

func (s *fakeScanner) Scan(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
}

type fakeTerminal struct{ id string }

func (t *fakeTerminal) ID() string                                { return t.id }
func (t *fakeTerminal) PID(ctx context.Context) (int, error)      { return 0, errors.New("no pid") }
func (t *fakeTerminal) Title(ctx context.Context) (string, error) { return "", nil }
func (t *fakeTerminal) Reveal(ctx context.Context) error          { return nil }

type fakeProvider struct {
	mu    sync.Mutex
	terms []terminal.Terminal
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Terminals(ctx context.Context) ([]terminal.Terminal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return append([]terminal.Terminal(nil), p.terms...), nil
}

func (p *fakeProvider) Find(ctx context.Context, id string) (terminal.Terminal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.terms {
		if t.ID() == id {
			return t, nil
		}
	}
	return nil, errors.New("not found")
}

func (p *fakeProvider) set(terms ...terminal.Terminal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terms = terms
}

func TestPassRunsScannerAndSweep(t *testing.T) {
	reg := &fakeRegistry{}
	sc := &fakeScanner{}
	s := New(reg, sc, nil, time.Second, clock.NewFake())

	s.pass(context.Background())
	s.pass(context.Background())

	assert.Equal(t, 2, reg.sweeps)
	assert.Equal(t, 2, sc.scans)
}

func TestTerminalCloseDetection(t *testing.T) {
	reg := &fakeRegistry{}
	prov := &fakeProvider{}
	prov.set(&fakeTerminal{id: "%1"}, &fakeTerminal{id: "%2"})
	s := New(reg, nil, prov, time.Second, clock.NewFake())

	// First pass seeds the set; nothing has closed yet.
	s.pass(context.Background())
	assert.Empty(t, reg.closedIDs())

	prov.set(&fakeTerminal{id: "%2"})
	s.pass(context.Background())
	assert.Equal(t, []string{"%1"}, reg.closedIDs())

	// Already reported; a stable set reports nothing new.
	s.pass(context.Background())
	assert.Equal(t, []string{"%1"}, reg.closedIDs())
}

func TestProviderFailureSkipsCloseDetection(t *testing.T) {
	reg := &fakeRegistry{}
	prov := &fakeProvider{}
	prov.set(&fakeTerminal{id: "%1"})
	s := New(reg, nil, prov, time.Second, clock.NewFake())

	s.pass(context.Background())

	// A listing failure must not look like every terminal closing.
	prov.mu.Lock()
	prov.err = errors.New("tmux server gone")
	prov.mu.Unlock()
	s.pass(context.Background())
	assert.Empty(t, reg.closedIDs())

	// Provider back with the terminal gone: now it reports.
	prov.mu.Lock()
	prov.err = nil
	prov.mu.Unlock()
	prov.set()
	s.pass(context.Background())
	assert.Equal(t, []string{"%1"}, reg.closedIDs())
}

func TestRunTicksUntilCanceled(t *testing.T) {
	reg := &fakeRegistry{}
	clk := clock.NewFake()
	s := New(reg, nil, nil, time.Second, clk)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// Run passes once on entry before the first tick.
	require.Eventually(t, func() bool {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return reg.sweeps >= 1
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool {
		clk.Advance(time.Second)
		reg.mu.Lock()
		defer reg.mu.Unlock()
		return reg.sweeps >= 2
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
