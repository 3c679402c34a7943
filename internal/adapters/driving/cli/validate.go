package cli

import (
	"github.com/spf13/cobra"
)

var validateDocID int64

var validateCmd = &cobra.Command{
	Use:   "validate-meta",
	Short: "Report per-document metadata warnings",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().Int64Var(&validateDocID, "doc-id", 0, "validate one document (default: all)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	var docID *int64
	if validateDocID > 0 {
		docID = &validateDocID
	}
	results, err := engine.ValidateMeta(cmd.Context(), docID)
	if err != nil {
		return err
	}

	status := "ok"
	for _, r := range results {
		if !r.IsValid {
			status = "warnings"
			break
		}
	}
	return printJSON(map[string]any{
		"status":         status,
		"docs_validated": len(results),
		"results":        results,
	})
}
