package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/internal/daemon/eventsource"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/paths"
	"github.com/grovetools/roster/pkg/process"
)

// NewEmitCmd creates the `emit` command: the hook relay. The agent CLI runs
// it on each hook with the payload on stdin; it normalizes the payload to
// the wire format and forwards it to a running registry instance.
func NewEmitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit",
		Short: "Relay a hook payload to the daemon",
		Long: `Read one agent-CLI hook payload from stdin, stamp it with the emitting
process identity, and forward it to a registry instance found through the
endpoint discovery file. Dead discovery entries are pruned on the way.

Intended to be wired via ` + "`roster hooks install`" + `, not run by hand.`,
		RunE: runEmitE,
	}

	cmd.Flags().Bool("broadcast", false, "Send to every live registry instance, not just the first")

	return cmd
}

func runEmitE(cmd *cobra.Command, args []string) error {
	broadcast, _ := cmd.Flags().GetBool("broadcast")

	payload, err := readPayload(cmd.InOrStdin())
	if err != nil {
		return err
	}

	// The relay is spawned by the agent process: the parent pid is the
	// session's pid, and its parent is the shell the terminal runs.
	pid := os.Getppid()
	ppid := 0
	tty := ""
	inspector := process.NewInspector()
	if p, err := inspector.ParentPID(cmd.Context(), pid); err == nil {
		ppid = p
	}
	if t, err := inspector.TTY(cmd.Context(), pid); err == nil {
		tty = t
	}

	event := payload.ToEvent(pid, ppid, tty, time.Now())
	if err := event.Validate(); err != nil {
		return err
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	endpoints, err := eventsource.ReadEndpoints(paths.EndpointsFilePath())
	if err != nil {
		return fmt.Errorf("failed to read endpoint discovery file: %w", err)
	}
	if len(endpoints) == 0 {
		return fmt.Errorf("no registry instances are running")
	}

	delivered := 0
	sawDead := false
	for _, endpoint := range endpoints {
		if err := send(endpoint, line); err != nil {
			sawDead = true
			continue
		}
		delivered++
		if !broadcast {
			break
		}
	}
	if sawDead {
		_, _ = eventsource.PruneEndpoints(paths.EndpointsFilePath())
	}
	if delivered == 0 {
		return fmt.Errorf("no live registry instance accepted the event")
	}
	return nil
}

func readPayload(r io.Reader) (*models.HookPayload, error) {
	data, err := io.ReadAll(io.LimitReader(r, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read hook payload: %w", err)
	}

	var payload models.HookPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse hook payload: %w", err)
	}
	return &payload, nil
}

func send(socketPath string, line []byte) error {
	conn, err := net.DialTimeout("unix", socketPath, time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(time.Second))
	_, err = conn.Write(line)
	return err
}
