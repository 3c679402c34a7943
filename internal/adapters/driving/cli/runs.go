package cli

import (
	"github.com/spf13/cobra"
)

var runsRunID string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the operation run log",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().StringVar(&runsRunID, "run-id", "", "show one run")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := engine.Runs().List(cmd.Context(), runsRunID)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"runs": runs, "count": len(runs)})
}
