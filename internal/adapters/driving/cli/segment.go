package cli

import (
	"github.com/spf13/cobra"
)

var (
	segmentDocID int64
	segmentLang  string
)

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Resegment a document into sentence-level units",
	Long: `Splits every line unit of a document into sentences and replaces the
line-unit set atomically. Alignment links touching the document are dropped
and the FTS index is stale until 'agrafes index' runs.`,
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().Int64Var(&segmentDocID, "doc-id", 0, "document to resegment")
	segmentCmd.Flags().StringVar(&segmentLang, "lang", "und", "language hint for the splitter")
	_ = segmentCmd.MarkFlagRequired("doc-id")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.Segment(cmd.Context(), segmentDocID, segmentLang)
	if err != nil {
		return err
	}
	return printJSON(result)
}
