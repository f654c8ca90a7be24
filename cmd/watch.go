package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/pkg/models"
)

// NewWatchCmd creates the `watch` command: a live stream of registry
// updates, one coalesced snapshot per debounce window.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream registry updates",
		Long: `Subscribe to the daemon's update stream and print each coalesced
snapshot as it arrives. Uses SSE by default; --ws switches to the
websocket endpoint.`,
		RunE: runWatchE,
	}

	cmd.Flags().Bool("json", false, "Print full snapshots as JSON lines")
	cmd.Flags().Bool("ws", false, "Use the websocket endpoint instead of SSE")

	return cmd
}

func runWatchE(cmd *cobra.Command, args []string) error {
	client, err := requireDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	asJSON, _ := cmd.Flags().GetBool("json")
	useWS, _ := cmd.Flags().GetBool("ws")

	var updates <-chan models.Update
	if useWS {
		updates, err = client.WatchState(cmd.Context())
	} else {
		updates, err = client.StreamState(cmd.Context())
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	for update := range updates {
		if update.Snapshot == nil {
			continue
		}
		if asJSON {
			if err := enc.Encode(update); err != nil {
				return err
			}
			continue
		}
		printUpdateSummary(update)
	}
	return nil
}

func printUpdateSummary(update models.Update) {
	snap := update.Snapshot
	working := 0
	for _, s := range snap.Active {
		if s.Status == models.StatusWorking {
			working++
		}
	}
	fmt.Printf("%s  active=%d working=%d inactive=%d orphans=%d\n",
		snap.GeneratedAt.Format("15:04:05"),
		len(snap.Active), working, len(snap.Inactive), len(snap.Orphans))
}
