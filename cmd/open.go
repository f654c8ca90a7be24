package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/pkg/tmux"
)

// NewOpenCmd creates the `open` command: a new tmux window for an agent
// session, registered with the daemon as a pending terminal so the session's
// start event can be linked to it.
func NewOpenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open [dir]",
		Short: "Open a terminal for a new agent session",
		Long: `Create a tmux window, register it with the daemon as a pending terminal,
and run the agent command in it. When the session announces itself the
daemon links it to this window.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOpenE,
	}

	cmd.Flags().String("command", "claude", "Command to run in the new window")
	cmd.Flags().String("session", "", "Target tmux session (default: the attached one)")
	cmd.Flags().String("name", "", "Window name (default: the directory base name)")

	return cmd
}

func runOpenE(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	command, _ := cmd.Flags().GetString("command")
	session, _ := cmd.Flags().GetString("session")
	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		name = filepath.Base(abs)
	}

	client, err := requireDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	tmuxClient, err := tmux.NewClient()
	if err != nil {
		return err
	}

	paneID, err := tmuxClient.CreateWindow(cmd.Context(), tmux.NewWindowOptions{
		Session:    session,
		WindowName: name,
		WorkingDir: abs,
		Command:    command,
	})
	if err != nil {
		return fmt.Errorf("failed to create tmux window: %w", err)
	}

	// Registration can race the session's start event; the daemon's lazy
	// link recovers if the event wins.
	if err := client.RegisterPendingTerminal(cmd.Context(), paneID); err != nil {
		return fmt.Errorf("window %s created but not registered: %w", paneID, err)
	}

	fmt.Printf("Opened %s in %s\n", paneID, abs)
	return nil
}
