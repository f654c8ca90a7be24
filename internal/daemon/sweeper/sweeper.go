// Package sweeper runs the daemon's periodic reconciliation pass: rescan
// the watch roots for transcripts the file watcher missed, re-validate the
// liveness of every tracked process, and detect terminals that closed since
// the last pass.
package sweeper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/terminal"
)

// DefaultInterval is the pass interval when config leaves it unset.
const DefaultInterval = 5 * time.Second

// Scanner rescans the transcript roots. Satisfied by *watcher.Watcher.
type Scanner interface {
	Scan(ctx context.Context)
}

// Registry is the slice of *registry.Registry the sweeper drives.
type Registry interface {
	Sweep(ctx context.Context)
	HandleTerminalClosed(terminalID string)
}

// Sweeper is a daemon feeder that fires a reconciliation pass on a fixed
// interval. Scanner and provider may be nil; the corresponding step is
// skipped.
type Sweeper struct {
	registry Registry
	scanner  Scanner
	provider terminal.Provider
	interval time.Duration
	clk      clock.Clock
	log      *logrus.Entry

	seen map[string]struct{} // terminal ids present at the previous pass
}

// New creates a sweeper. A non-positive interval falls back to the default.
func New(reg Registry, scanner Scanner, provider terminal.Provider, interval time.Duration, clk clock.Clock) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Sweeper{
		registry: reg,
		scanner:  scanner,
		provider: provider,
		interval: interval,
		clk:      clk,
		log:      logging.NewLogger("sweeper"),
	}
}

// Name returns the feeder's name for logging.
func (s *Sweeper) Name() string { return "sweeper" }

// Run passes immediately, then on every tick until the context is canceled.
// The first pass seeds the terminal set so close detection starts from what
// is actually open, not from empty.
func (s *Sweeper) Run(ctx context.Context) error {
	s.pass(ctx)

	ticker := s.clk.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.pass(ctx)
		}
	}
}

func (s *Sweeper) pass(ctx context.Context) {
	if s.scanner != nil {
		s.scanner.Scan(ctx)
	}
	s.registry.Sweep(ctx)
	s.diffTerminals(ctx)
}

// diffTerminals reports terminals that disappeared since the previous pass.
// A provider failure skips the diff rather than declaring everything closed;
// a tmux server restart should not wipe every link in one pass.
func (s *Sweeper) diffTerminals(ctx context.Context) {
	if s.provider == nil {
		return
	}

	terms, err := s.provider.Terminals(ctx)
	if err != nil {
		s.log.WithError(err).Debug("Terminal listing failed, skipping close detection")
		return
	}

	current := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		current[t.ID()] = struct{}{}
	}
	for id := range s.seen {
		if _, open := current[id]; !open {
			s.registry.HandleTerminalClosed(id)
		}
	}
	s.seen = current
}
