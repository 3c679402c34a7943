package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

var (
	importMode         string
	importLanguage     string
	importTitle        string
	importDocRole      string
	importResourceType string
	importTEIUnit      string
)

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Ingest a source file into the corpus",
	Long: `Imports one document. Modes: docx_numbered_lines, txt_numbered_lines,
docx_paragraphs, tei. The document and its full unit graph land atomically;
the FTS index is stale afterwards until 'agrafes index' runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importMode, "mode", string(domain.ImportTxtNumbered), "import mode")
	importCmd.Flags().StringVar(&importLanguage, "language", "", "document language tag")
	importCmd.Flags().StringVar(&importTitle, "title", "", "document title (default: file basename)")
	importCmd.Flags().StringVar(&importDocRole, "doc-role", "standalone", "document role")
	importCmd.Flags().StringVar(&importResourceType, "resource-type", "", "free-form resource type")
	importCmd.Flags().StringVar(&importTEIUnit, "tei-unit", "p", "TEI unit element: p or s")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.Import(cmd.Context(), domain.ImportRequest{
		Mode:         domain.ImportMode(importMode),
		Path:         args[0],
		Language:     importLanguage,
		Title:        importTitle,
		DocRole:      domain.DocRole(importDocRole),
		ResourceType: importResourceType,
		TEIUnit:      importTEIUnit,
	})
	if err != nil {
		return err
	}
	return printJSON(result)
}
