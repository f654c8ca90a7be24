package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/pkg/models"
)

// NewSessionsCmd creates the `sessions` command and its subcommands.
func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List tracked sessions",
		Long: `List the sessions the daemon currently tracks. Active sessions are shown
by default; --inactive adds recently ended and unclaimed ones. Agent
sessions are listed under their parent.`,
		RunE: runSessionsE,
	}

	cmd.Flags().Bool("json", false, "Output sessions as JSON")
	cmd.Flags().Bool("inactive", false, "Include recently ended sessions")

	cmd.AddCommand(newSessionsRevealCmd())
	cmd.AddCommand(newSessionsRemoveCmd())

	return cmd
}

func runSessionsE(cmd *cobra.Command, args []string) error {
	client, err := requireDaemon()
	if err != nil {
		return err
	}
	defer client.Close()

	asJSON, _ := cmd.Flags().GetBool("json")
	withInactive, _ := cmd.Flags().GetBool("inactive")

	state, err := client.GetState(cmd.Context())
	if err != nil {
		return err
	}

	if asJSON {
		out := map[string]interface{}{"active": state.Active}
		if withInactive {
			out["inactive"] = state.Inactive
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(state.Active) == 0 {
		fmt.Println("No active sessions")
	} else {
		printSessions(state.Active)
	}

	if withInactive && len(state.Inactive) > 0 {
		fmt.Println("\nInactive:")
		printSessions(state.Inactive)
	}
	return nil
}

// printSessions renders a session table, agents nested under their parent.
func printSessions(sessions []models.SessionView) {
	children := make(map[string][]models.SessionView)
	var roots []models.SessionView
	byID := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		byID[s.SessionID] = true
	}
	for _, s := range sessions {
		if s.IsAgent && s.ParentSessionID != "" && byID[s.ParentSessionID] {
			children[s.ParentSessionID] = append(children[s.ParentSessionID], s)
			continue
		}
		roots = append(roots, s)
	}
	sort.Slice(roots, func(i, j int) bool {
		return roots[i].Created.Before(roots[j].Created)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTATUS\tTOOL\tDIR\tBRANCH\tTOKENS\tAGE")
	for _, s := range roots {
		printSessionRow(w, s, "")
		for _, child := range children[s.SessionID] {
			printSessionRow(w, child, "  └ ")
		}
	}
	w.Flush()
}

func printSessionRow(w *tabwriter.Writer, s models.SessionView, indent string) {
	tool := "-"
	if s.CurrentTool != nil {
		tool = s.CurrentTool.Name
	}
	dir := s.Cwd
	if dir == "" {
		dir = "-"
	}
	branch := s.Branch
	if branch == "" {
		branch = "-"
	}
	fmt.Fprintf(w, "%s%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
		indent, shortID(s.SessionID), s.Status, tool, dir, branch,
		s.Usage.InputTokens+s.Usage.OutputTokens, age(s))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func age(s models.SessionView) string {
	ref := s.LastActivity
	if ref.IsZero() {
		ref = s.LastModified
	}
	if ref.IsZero() {
		return "-"
	}
	d := time.Since(ref).Round(time.Second)
	if d < 0 {
		d = 0
	}
	return d.String()
}

func newSessionsRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reveal <session-id>",
		Short: "Focus the terminal hosting a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Reveal(cmd.Context(), args[0])
		},
	}
}

func newSessionsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>",
		Short: "Remove a session from the registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := requireDaemon()
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Terminate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed session %s\n", args[0])
			return nil
		},
	}
}
