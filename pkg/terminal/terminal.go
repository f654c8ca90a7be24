// Package terminal links sessions to the terminals they run in. Sessions
// identify themselves by process ids; terminals are opaque handles supplied
// by a provider (tmux panes in the shipped build). Links survive as long as
// both sides do and every lookup tolerates either side disappearing
// mid-query.
package terminal

import "context"

// Terminal is one open terminal handle.
type Terminal interface {
	// ID is the provider-scoped stable identifier.
	ID() string

	// PID returns the process id of the shell running in the terminal.
	PID(ctx context.Context) (int, error)

	// Title returns the terminal's current title.
	Title(ctx context.Context) (string, error)

	// Reveal brings the terminal to the foreground.
	Reveal(ctx context.Context) error
}

// Provider enumerates the open terminals of one terminal multiplexer or
// emulator.
type Provider interface {
	// Name identifies the provider in logs and config.
	Name() string

	// Terminals lists the currently open terminals.
	Terminals(ctx context.Context) ([]Terminal, error)

	// Find returns the open terminal with the given id.
	Find(ctx context.Context, id string) (Terminal, error)
}
