package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/pkg/paths"
)

// PathsOutput lists the XDG-compliant paths roster uses.
type PathsOutput struct {
	ConfigDir     string `json:"config_dir"`
	DataDir       string `json:"data_dir"`
	StateDir      string `json:"state_dir"`
	RuntimeDir    string `json:"runtime_dir"`
	LogDir        string `json:"log_dir"`
	Socket        string `json:"socket"`
	PidFile       string `json:"pid_file"`
	EventSocket   string `json:"event_socket"`
	EndpointsFile string `json:"endpoints_file"`
}

// NewPathsCmd creates the `paths` command.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the paths roster uses",
		Long: `Print the XDG-compliant paths roster reads and writes, in JSON for easy
consumption by scripts. The event socket path shown is the one this
process would use; each daemon instance listens on its own.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := PathsOutput{
				ConfigDir:     paths.ConfigDir(),
				DataDir:       paths.DataDir(),
				StateDir:      paths.StateDir(),
				RuntimeDir:    paths.RuntimeDir(),
				LogDir:        paths.LogDir(),
				Socket:        paths.SocketPath(),
				PidFile:       paths.PidFilePath(),
				EventSocket:   paths.EventSocketPath(os.Getpid()),
				EndpointsFile: paths.EndpointsFilePath(),
			}

			jsonData, err := json.MarshalIndent(output, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal paths to JSON: %w", err)
			}
			fmt.Println(string(jsonData))
			return nil
		},
	}
}
