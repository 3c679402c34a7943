// Package cli wires the cobra command tree of the agrafes binary. Every
// command prints exactly one JSON object on stdout and exits non-zero on
// any error, so the binary doubles as a headless collaborator.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/agrafes/internal/core/services"
	"github.com/custodia-labs/agrafes/internal/logger"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "agrafes",
	Short: "Local multilingual corpus search and alignment engine",
	Long: `Agrafes imports text documents (numbered lines, paragraphs, TEI XML),
indexes them for full-text search, aligns parallel documents, and serves a
localhost HTTP sidecar for external collaborators.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "corpus.db", "path to the corpus database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging on stderr")
}

// Execute runs the command tree. On error, one JSON error object goes to
// stdout and the process exit code is 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		payload := map[string]any{
			"ok":     false,
			"status": "error",
			"error":  err.Error(),
		}
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			fmt.Fprintln(os.Stdout, `{"ok":false,"status":"error"}`)
		} else {
			fmt.Fprintln(os.Stdout, string(data))
		}
		os.Exit(1)
	}
}

// openEngine opens the store (running migrations) and builds the engine.
// The caller closes the store.
func openEngine() (*sqlite.Store, *services.Engine, error) {
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	engine := services.NewEngine(services.Stores{
		Documents: store.DocumentStore(),
		Units:     store.UnitStore(),
		Runs:      store.RunStore(),
		Links:     store.LinkStore(),
		Relations: store.RelationStore(),
		Index:     store.SearchIndex(),
	}, store.Path())
	return store, engine, nil
}

// printJSON writes the command's single JSON object to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
