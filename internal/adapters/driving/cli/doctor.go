package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/adapters/driving/httpapi"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Collect database and sidecar health diagnostics",
	Long: `Reports integrity, migration versions, table counts, FTS drift between the
index and the stored line units, and the sidecar discovery state for this
database. Read-only.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	store, _, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	diagnostics, err := store.CollectDiagnostics(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"db":      diagnostics,
		"sidecar": httpapi.InspectState(store.Path()),
	})
}
