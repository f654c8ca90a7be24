// Package tmux shells out to tmux and exposes panes as terminal handles.
package tmux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/grovetools/roster/command"
)

// Client runs tmux commands through a validating builder.
type Client struct {
	builder *command.SafeBuilder
	socket  string // Socket name for a dedicated tmux server (uses -L flag)
}

// NewClient creates a tmux client for the default server. Tests that isolate
// themselves on a dedicated server set GROVE_TMUX_SOCKET.
func NewClient() (*Client, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux command not found in PATH: %w", err)
	}

	socket := ""
	if testSocket := os.Getenv("GROVE_TMUX_SOCKET"); testSocket != "" {
		socket = testSocket
	}

	return &Client{
		builder: command.NewSafeBuilder(),
		socket:  socket,
	}, nil
}

// NewClientWithSocket creates a tmux client bound to a dedicated server
// socket, isolated from the default server.
func NewClientWithSocket(socket string) (*Client, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux command not found in PATH: %w", err)
	}

	return &Client{
		builder: command.NewSafeBuilder(),
		socket:  socket,
	}, nil
}

// Socket returns the socket name this client uses, or empty string for the
// default server.
func (c *Client) Socket() string {
	return c.socket
}

// KillServer kills the tmux server for this client's socket. Intended for
// cleaning up isolated test servers.
func (c *Client) KillServer(ctx context.Context) error {
	_, err := c.run(ctx, "kill-server")
	if err != nil && strings.Contains(err.Error(), "no server running") {
		return nil
	}
	return err
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.socket != "" {
		args = append([]string{"-L", c.socket}, args...)
	}

	cmd, err := c.builder.Build(ctx, "tmux", args...)
	if err != nil {
		return "", fmt.Errorf("failed to build command: %w", err)
	}

	output, err := cmd.Exec().CombinedOutput()
	if err != nil {
		cmdStr := "tmux " + strings.Join(args, " ")
		return string(output), fmt.Errorf("tmux command failed: `%s`: %w, output: %s", cmdStr, err, string(output))
	}

	return string(output), nil
}
