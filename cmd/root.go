// Package cmd defines the roster command-line interface.
package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// NewRootCmd returns the roster root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Track live coding-agent sessions",
		Long: `roster keeps a live, crash-resilient registry of coding-agent CLI
sessions: which processes are running, what each one is doing, and which
terminal it sits in.

The daemon ingests hook events from the agent CLI, watches transcript files,
and serves the reconciled view over a unix socket. The other subcommands are
clients of that daemon.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if level, _ := cmd.Flags().GetString("log-level"); level != "" {
				os.Setenv("GROVE_LOG_LEVEL", level)
			}
		},
	}

	cmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")

	// Accept snake_case spellings of every flag.
	cmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	cmd.AddCommand(NewDaemonCmd())
	cmd.AddCommand(NewSessionsCmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewOpenCmd())
	cmd.AddCommand(NewEmitCmd())
	cmd.AddCommand(NewHooksCmd())
	cmd.AddCommand(NewLogsCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPathsCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}
