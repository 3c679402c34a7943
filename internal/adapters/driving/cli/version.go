package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	RunE: func(_ *cobra.Command, _ []string) error {
		return printJSON(map[string]any{"version": version.Version})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
