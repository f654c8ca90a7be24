package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/pkg/hooks"
)

// NewHooksCmd creates the `hooks` command for managing the agent CLI's hook
// registration.
func NewHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage agent CLI hook registration",
		Long: `Register or remove the roster emit relay in the agent CLI's settings
file. The relay forwards SessionStart, SessionEnd, PreToolUse, and
PostToolUse events to running registry instances.`,
	}

	cmd.PersistentFlags().String("settings", "", "Settings file to edit (default: ~/.claude/settings.json)")
	cmd.PersistentFlags().String("command", "", "Relay command to register (default: roster emit)")

	cmd.AddCommand(newHooksInstallCmd())
	cmd.AddCommand(newHooksUninstallCmd())
	cmd.AddCommand(newHooksStatusCmd())

	return cmd
}

func hookManager(cmd *cobra.Command) *hooks.Manager {
	settings, _ := cmd.Flags().GetString("settings")
	command, _ := cmd.Flags().GetString("command")
	return hooks.NewManager(settings, command)
}

func newHooksInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Register the relay on every hook event",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := hookManager(cmd)
			if err := m.Install(); err != nil {
				return err
			}
			fmt.Printf("Registered %q in %s\n", m.Command(), m.SettingsPath())
			return nil
		},
	}
}

func newHooksUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove roster-managed hook entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := hookManager(cmd)
			if err := m.Uninstall(); err != nil {
				return err
			}
			fmt.Printf("Removed roster hooks from %s\n", m.SettingsPath())
			return nil
		},
	}
}

func newHooksStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which hook events carry the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := hookManager(cmd)
			status, err := m.Status()
			if err != nil {
				return err
			}

			installed := 0
			for _, event := range hooks.Events {
				mark := "missing"
				if status[event] {
					mark = "installed"
					installed++
				}
				fmt.Printf("%-14s %s\n", event, mark)
			}
			if installed < len(hooks.Events) {
				fmt.Fprintln(os.Stderr, "\nRun `roster hooks install` to register missing hooks")
			}
			return nil
		},
	}
}
