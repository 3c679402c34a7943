package cli

import (
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the full-text index",
	Long:  `Repopulates the FTS index from the stored line units and clears the stale flag.`,
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.RebuildIndex(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(result)
}
