package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/roster/version"
)

// NewVersionCmd creates the `version` command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the roster version",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.GetInfo()

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println(info.String())
			return nil
		},
	}

	cmd.Flags().Bool("json", false, "Output version information as JSON")
	return cmd
}
