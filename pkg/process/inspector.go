package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grovetools/roster/command"
)

// Inspector answers identity questions about running processes. The ps-backed
// implementation is the production one; tests substitute fakes.
type Inspector interface {
	// Alive reports whether the process exists right now.
	Alive(pid int) bool

	// ParentPID returns the parent process id of pid.
	ParentPID(ctx context.Context, pid int) (int, error)

	// StartTime returns an opaque fingerprint of the process start time,
	// stable for the life of the process. Two different processes that
	// happen to share a recycled pid produce different fingerprints.
	StartTime(ctx context.Context, pid int) (string, error)

	// Ancestors walks the parent chain of pid, nearest first, stopping at
	// init, on a cycle, or after maxHops entries.
	Ancestors(ctx context.Context, pid int, maxHops int) ([]int, error)
}

// PSInspector implements Inspector by shelling out to ps(1).
type PSInspector struct {
	builder *command.SafeBuilder
}

// NewInspector creates a ps-backed Inspector.
func NewInspector() *PSInspector {
	return &PSInspector{builder: command.NewSafeBuilder()}
}

// NewInspectorWithExecutor creates an Inspector with a custom command
// executor, for tests that stub out ps.
func NewInspectorWithExecutor(exec command.Executor) *PSInspector {
	return &PSInspector{builder: command.NewSafeBuilderWithExecutor(exec)}
}

// Alive reports whether the process exists.
func (i *PSInspector) Alive(pid int) bool {
	return IsProcessAlive(pid)
}

// ParentPID returns the parent pid of pid via `ps -o ppid=`.
func (i *PSInspector) ParentPID(ctx context.Context, pid int) (int, error) {
	out, err := i.ps(ctx, "ppid", pid)
	if err != nil {
		return 0, err
	}

	ppid, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected ppid output for pid %d: %q", pid, out)
	}
	return ppid, nil
}

// StartTime returns the raw `ps -o lstart=` string for pid. The value is
// treated as an opaque token and compared byte-for-byte.
func (i *PSInspector) StartTime(ctx context.Context, pid int) (string, error) {
	out, err := i.ps(ctx, "lstart", pid)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("no start time for pid %d", pid)
	}
	return out, nil
}

// TTY returns the controlling terminal of pid as reported by ps, or an
// empty string when the process has none. Not part of Inspector; only the
// emit relay needs it.
func (i *PSInspector) TTY(ctx context.Context, pid int) (string, error) {
	out, err := i.ps(ctx, "tty", pid)
	if err != nil {
		return "", err
	}
	if out == "??" || out == "?" || out == "-" {
		return "", nil
	}
	return out, nil
}

// Ancestors returns the parent chain of pid, nearest ancestor first.
func (i *PSInspector) Ancestors(ctx context.Context, pid int, maxHops int) ([]int, error) {
	seen := map[int]bool{pid: true}
	chain := make([]int, 0, maxHops)

	current := pid
	for len(chain) < maxHops {
		parent, err := i.ParentPID(ctx, current)
		if err != nil {
			// The chain up to the failure is still useful.
			return chain, err
		}
		if parent <= 1 || seen[parent] {
			break
		}
		chain = append(chain, parent)
		seen[parent] = true
		current = parent
	}

	return chain, nil
}

func (i *PSInspector) ps(ctx context.Context, column string, pid int) (string, error) {
	pidArg := strconv.Itoa(pid)
	if err := i.builder.Validate("pid", pidArg); err != nil {
		return "", err
	}

	cmd, err := i.builder.Build(ctx, "ps", "-o", column+"=", "-p", pidArg)
	if err != nil {
		return "", fmt.Errorf("failed to build command: %w", err)
	}

	output, err := cmd.Exec().Output()
	if err != nil {
		return "", fmt.Errorf("ps -o %s= -p %d failed: %w", column, pid, err)
	}

	return strings.TrimSpace(string(output)), nil
}
