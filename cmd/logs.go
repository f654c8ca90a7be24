package cmd

import (
	"fmt"
	"os"

	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"

	"github.com/grovetools/roster/logging"
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: `Print the daemon's log file. With -f the command keeps following the
file as the daemon writes to it.

Examples:
  # Show today's daemon log
  roster logs

  # Follow the log
  roster logs -f

  # Only the last 50 lines
  roster logs --tail 50`,
		RunE: runLogsE,
	}

	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end (default: all)")
	cmd.Flags().String("file", "", "Log file to read (default: today's rosterd log)")

	return cmd
}

func runLogsE(cmd *cobra.Command, args []string) error {
	follow, _ := cmd.Flags().GetBool("follow")
	tailN, _ := cmd.Flags().GetInt("tail")
	file, _ := cmd.Flags().GetString("file")

	if file == "" {
		file = logging.DefaultLogFile("rosterd")
	}
	if file == "" {
		return fmt.Errorf("could not resolve the daemon log file")
	}
	if _, err := os.Stat(file); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no log file at %s (is the daemon running with a file sink?)", file)
		}
		return err
	}

	// A bounded --tail pre-prints the last N lines; following then
	// continues from the end of the file.
	if tailN >= 0 {
		if err := printLastLines(file, tailN); err != nil {
			return err
		}
		if !follow {
			return nil
		}
	}

	cfg := tail.Config{
		Follow:    follow,
		ReOpen:    follow, // survive log rotation while following
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	}
	if tailN >= 0 {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: os.SEEK_END}
	}

	t, err := tail.TailFile(file, cfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer t.Cleanup()

	for line := range t.Lines {
		if line.Err != nil {
			return line.Err
		}
		fmt.Println(line.Text)
	}
	return nil
}

// printLastLines prints the final n lines of the file.
func printLastLines(path string, n int) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	lines := splitLines(string(data))
	if n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
