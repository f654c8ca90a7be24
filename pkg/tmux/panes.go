package tmux

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Pane describes one tmux pane across all sessions of the server.
type Pane struct {
	ID          string
	PID         int // pid of the shell running in the pane
	Title       string
	Session     string
	WindowIndex int
	WindowName  string
	Path        string
}

// NewWindowOptions configures CreateWindow.
type NewWindowOptions struct {
	Session    string // target session; empty uses the attached one
	WindowName string
	WorkingDir string
	Command    string
}

const paneFormat = "#{pane_id}\t#{pane_pid}\t#{pane_title}\t#{session_name}\t#{window_index}\t#{window_name}\t#{pane_current_path}"

// ListPanes returns every pane on the server.
func (c *Client) ListPanes(ctx context.Context) ([]Pane, error) {
	output, err := c.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		// A server with no sessions is an empty pane list, not a failure.
		if strings.Contains(err.Error(), "no server running") || strings.Contains(err.Error(), "exit status 1") {
			return []Pane{}, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(output), "\n")
	panes := make([]Pane, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		pane, ok := parsePaneLine(line)
		if !ok {
			continue
		}
		panes = append(panes, pane)
	}
	return panes, nil
}

// FindPane returns the pane with the given id.
func (c *Client) FindPane(ctx context.Context, paneID string) (Pane, error) {
	if err := c.builder.Validate("paneID", paneID); err != nil {
		return Pane{}, err
	}

	output, err := c.run(ctx, "display-message", "-p", "-t", paneID, paneFormat)
	if err != nil {
		return Pane{}, err
	}

	pane, ok := parsePaneLine(strings.TrimSpace(output))
	if !ok {
		return Pane{}, fmt.Errorf("unexpected pane output for %s: %q", paneID, output)
	}
	return pane, nil
}

// PanePID returns the current shell pid of a pane.
func (c *Client) PanePID(ctx context.Context, paneID string) (int, error) {
	if err := c.builder.Validate("paneID", paneID); err != nil {
		return 0, err
	}

	output, err := c.run(ctx, "display-message", "-p", "-t", paneID, "#{pane_pid}")
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil {
		return 0, fmt.Errorf("failed to parse pane pid from tmux output '%s': %w", output, err)
	}
	return pid, nil
}

// PaneTitle returns the current title of a pane.
func (c *Client) PaneTitle(ctx context.Context, paneID string) (string, error) {
	if err := c.builder.Validate("paneID", paneID); err != nil {
		return "", err
	}

	output, err := c.run(ctx, "display-message", "-p", "-t", paneID, "#{pane_title}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// RevealPane focuses a pane: switch the client to its session, select its
// window, then the pane itself.
func (c *Client) RevealPane(ctx context.Context, paneID string) error {
	pane, err := c.FindPane(ctx, paneID)
	if err != nil {
		return err
	}

	// Exact session match to avoid prefix ambiguity.
	if _, err := c.run(ctx, "switch-client", "-t", "="+pane.Session); err != nil {
		return err
	}
	windowTarget := fmt.Sprintf("%s:%d", pane.Session, pane.WindowIndex)
	if _, err := c.run(ctx, "select-window", "-t", windowTarget); err != nil {
		return err
	}
	_, err = c.run(ctx, "select-pane", "-t", pane.ID)
	return err
}

// CreateWindow opens a new window and returns the id of its pane.
func (c *Client) CreateWindow(ctx context.Context, opts NewWindowOptions) (string, error) {
	args := []string{"new-window", "-P", "-F", "#{pane_id}"}
	if opts.Session != "" {
		if err := c.builder.Validate("sessionName", opts.Session); err != nil {
			return "", err
		}
		args = append(args, "-t", opts.Session)
	}
	if opts.WindowName != "" {
		args = append(args, "-n", opts.WindowName)
	}
	if opts.WorkingDir != "" {
		if err := c.builder.Validate("fileName", opts.WorkingDir); err != nil {
			return "", err
		}
		args = append(args, "-c", opts.WorkingDir)
	}
	if opts.Command != "" {
		args = append(args, opts.Command)
	}

	output, err := c.run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

func parsePaneLine(line string) (Pane, bool) {
	parts := strings.SplitN(line, "\t", 7)
	if len(parts) < 7 {
		return Pane{}, false
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		pid = 0
	}
	index, err := strconv.Atoi(parts[4])
	if err != nil {
		return Pane{}, false
	}

	return Pane{
		ID:          parts[0],
		PID:         pid,
		Title:       parts[2],
		Session:     parts[3],
		WindowIndex: index,
		WindowName:  parts[5],
		Path:        parts[6],
	}, true
}
