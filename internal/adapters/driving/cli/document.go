package cli

import (
	"github.com/spf13/cobra"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents with line-unit counts",
	RunE:  runDocs,
}

func init() {
	rootCmd.AddCommand(docsCmd)
}

func runDocs(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	docs, err := engine.Documents(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"documents": docs, "count": len(docs)})
}
