package command

import (
	"context"
	"os/exec"
)

// Executor creates exec.Cmd instances. roster shells out for everything it
// asks the system (ps for process identity, tmux for terminals, git for
// branch info); injecting the executor lets tests substitute fake binaries
// for those without touching the callers.
type Executor interface {
	Command(name string, args ...string) *exec.Cmd

	// CommandContext creates a context-aware exec.Cmd, canceled with the
	// caller's context.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor runs commands through os/exec.
type RealExecutor struct{}

func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}
