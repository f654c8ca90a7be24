// Package engine assembles the roster daemon: one registry, its
// collaborators, and the background feeders that keep it current. All wiring
// is explicit and happens once, at construction.
package engine

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/config"
	"github.com/grovetools/roster/internal/daemon/eventsource"
	"github.com/grovetools/roster/internal/daemon/server"
	"github.com/grovetools/roster/internal/daemon/sweeper"
	"github.com/grovetools/roster/internal/daemon/watcher"
	"github.com/grovetools/roster/pkg/clock"
	"github.com/grovetools/roster/pkg/gitinfo"
	"github.com/grovetools/roster/pkg/paths"
	"github.com/grovetools/roster/pkg/process"
	"github.com/grovetools/roster/pkg/registry"
	"github.com/grovetools/roster/pkg/terminal"
	"github.com/grovetools/roster/pkg/tmux"
	"github.com/grovetools/roster/pkg/transcript"
	"github.com/grovetools/roster/pkg/workspace"
	"github.com/grovetools/roster/util/sanitize"
)

// Feeder is a background worker that feeds the registry. It blocks until its
// context is canceled.
type Feeder interface {
	Name() string
	Run(ctx context.Context) error
}

// tmuxOptions is the provider-specific options block for the tmux backend.
type tmuxOptions struct {
	Socket string `yaml:"socket"`
}

// Engine owns the daemon's registry, terminal wiring, and feeders.
type Engine struct {
	cfg      *config.Config
	log      *logrus.Entry
	registry *registry.Registry
	linker   *terminal.Linker
	provider terminal.Provider
	source   *eventsource.Source
	feeders  []Feeder
	running  server.RunningConfig
}

// New wires a daemon from config. Construction order follows the dependency
// chain: process inspector and terminal provider first, then the linker,
// then the registry, then the feeders that drive it.
func New(cfg *config.Config, logger *logrus.Entry) (*Engine, error) {
	clk := clock.System()
	inspector := process.NewInspector()

	provider, linker := buildTerminals(cfg, inspector, logger)

	filter, err := workspace.NewFilter(cfg.Workspace.Roots, cfg.Workspace.Excludes)
	if err != nil {
		return nil, err
	}

	cwd, _ := os.Getwd()
	store := registry.NewStore(paths.RegistryStatePath(sanitize.ForPathKey(cwd)))

	reg := registry.New(registry.Options{
		Parser:           transcript.NewParser(),
		Inspector:        inspector,
		Linker:           linkerOrNil(linker),
		Filter:           filter,
		Git:              gitinfo.NewResolver(gitinfo.DefaultTTL),
		Store:            store,
		Clock:            clk,
		NotifyDebounce:   cfg.Registry.NotifyDebounce.Duration,
		StaleToolTimeout: cfg.Registry.StaleToolTimeout.Duration,
		RecentToolsCap:   cfg.Registry.RecentToolsCap,
		InactiveCap:      cfg.Registry.InactiveCap,
	})

	source := eventsource.New(reg, paths.EventSocketPath(os.Getpid()), paths.EndpointsFilePath())
	watch := watcher.New(reg, cfg.Watch.Roots, cfg.Watch.Debounce.Duration, clk)
	sweep := sweeper.New(reg, watch, provider, cfg.Daemon.SweepInterval.Duration, clk)

	e := &Engine{
		cfg:      cfg,
		log:      logger,
		registry: reg,
		linker:   linker,
		provider: provider,
		source:   source,
		feeders:  []Feeder{source, watch, sweep},
	}
	e.running = server.RunningConfig{
		NotifyDebounce:   cfg.Registry.NotifyDebounce.Or(registry.DefaultNotifyDebounce),
		StaleToolTimeout: cfg.Registry.StaleToolTimeout.Or(registry.DefaultStaleToolTimeout),
		SweepInterval:    cfg.Daemon.SweepInterval.Or(sweeper.DefaultInterval),
		WatchDebounce:    cfg.Watch.Debounce.Or(100 * time.Millisecond),
		RecentToolsCap:   orDefault(cfg.Registry.RecentToolsCap, registry.DefaultRecentToolsCap),
		InactiveCap:      orDefault(cfg.Registry.InactiveCap, registry.DefaultInactiveCap),
		WatchRoots:       cfg.Watch.Roots,
		WorkspaceRoots:   cfg.Workspace.Roots,
		TerminalProvider: providerName(provider),
		EventSocket:      source.SocketPath(),
		StartedAt:        time.Now(),
	}
	return e, nil
}

// buildTerminals resolves the configured terminal backend. A missing tmux
// binary degrades to no terminal linking rather than failing the daemon.
func buildTerminals(cfg *config.Config, inspector process.Inspector, logger *logrus.Entry) (terminal.Provider, *terminal.Linker) {
	if cfg.Terminals.Provider == "none" {
		return nil, nil
	}

	var opts tmuxOptions
	if err := cfg.Terminals.DecodeOptions(&opts); err != nil {
		logger.WithError(err).Warn("Ignoring invalid terminal provider options")
	}

	var client *tmux.Client
	var err error
	if opts.Socket != "" {
		client, err = tmux.NewClientWithSocket(opts.Socket)
	} else {
		client, err = tmux.NewClient()
	}
	if err != nil {
		logger.WithError(err).Warn("Terminal linking disabled")
		return nil, nil
	}

	provider := tmux.NewProvider(client)
	linker := terminal.NewLinker(provider, inspector)
	linker.SetTitleMarkers(cfg.Terminals.TitleMarkers)
	return provider, linker
}

// linkerOrNil keeps the registry's nil check working through the interface.
func linkerOrNil(l *terminal.Linker) registry.TerminalLinker {
	if l == nil {
		return nil
	}
	return l
}

func providerName(p terminal.Provider) string {
	if p == nil {
		return "none"
	}
	return p.Name()
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Registry returns the engine's session registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Linker returns the terminal linker, nil when linking is disabled.
func (e *Engine) Linker() *terminal.Linker {
	return e.linker
}

// Provider returns the terminal provider, nil when linking is disabled.
func (e *Engine) Provider() terminal.Provider {
	return e.provider
}

// RunningConfig returns the resolved tuning the daemon is running with.
func (e *Engine) RunningConfig() *server.RunningConfig {
	return &e.running
}

// Start restores persisted sessions, then runs every feeder until the
// context is canceled. Restore runs first so the feeders observe a settled
// registry rather than racing the re-admission of old sessions.
func (e *Engine) Start(ctx context.Context) {
	e.registry.Restore(ctx)

	var wg sync.WaitGroup
	for _, f := range e.feeders {
		wg.Add(1)
		go func(f Feeder) {
			defer wg.Done()
			e.log.WithField("feeder", f.Name()).Info("Starting feeder")
			if err := f.Run(ctx); err != nil {
				e.log.WithField("feeder", f.Name()).WithError(err).Error("Feeder failed")
			}
		}(f)
	}
	wg.Wait()
}

// Close shuts the registry down: timers canceled, persistence flushed.
func (e *Engine) Close() {
	e.registry.Close()
}
