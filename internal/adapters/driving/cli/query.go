package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

var (
	queryMode           string
	queryWindow         int
	queryLanguage       string
	queryDocID          int64
	queryDocRole        string
	queryResourceType   string
	queryIncludeAligned bool
	queryAlignedLimit   int
	queryAllOccurrences bool
	queryLimit          int
	queryOffset         int
)

var queryCmd = &cobra.Command{
	Use:   "query [q]",
	Short: "Search the corpus",
	Long: `Runs a full-text query. Segment mode returns the whole unit with matches
wrapped in << >>; KWIC mode returns left/match/right context windows. The
query string uses the FTS5 syntax (phrases, boolean operators, NEAR()).`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryMode, "mode", "segment", "segment or kwic")
	queryCmd.Flags().IntVar(&queryWindow, "window", domain.DefaultKWICWindow, "KWIC context width in tokens (3..25)")
	queryCmd.Flags().StringVar(&queryLanguage, "language", "", "filter by document language")
	queryCmd.Flags().Int64Var(&queryDocID, "doc-id", 0, "filter by document id")
	queryCmd.Flags().StringVar(&queryDocRole, "doc-role", "", "filter by document role")
	queryCmd.Flags().StringVar(&queryResourceType, "resource-type", "", "filter by resource type")
	queryCmd.Flags().BoolVar(&queryIncludeAligned, "include-aligned", false, "attach aligned sibling units to each hit")
	queryCmd.Flags().IntVar(&queryAlignedLimit, "aligned-limit", domain.DefaultAlignedLimit, "cap on attached siblings per hit")
	queryCmd.Flags().BoolVar(&queryAllOccurrences, "all-occurrences", false, "KWIC: one hit per match occurrence")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", domain.DefaultQueryLimit, "page size (1..200)")
	queryCmd.Flags().IntVar(&queryOffset, "offset", 0, "page offset")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := domain.QueryOptions{
		Q:              args[0],
		Mode:           domain.QueryMode(queryMode),
		Window:         queryWindow,
		Language:       queryLanguage,
		DocRole:        queryDocRole,
		ResourceType:   queryResourceType,
		IncludeAligned: queryIncludeAligned,
		AlignedLimit:   queryAlignedLimit,
		AllOccurrences: queryAllOccurrences,
		Limit:          queryLimit,
		Offset:         queryOffset,
	}
	if queryDocID > 0 {
		opts.DocID = &queryDocID
	}

	result, err := engine.Query(cmd.Context(), opts)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"run_id":      result.RunID,
		"count":       len(result.Page.Hits),
		"hits":        result.Page.Hits,
		"limit":       result.Page.Limit,
		"offset":      result.Page.Offset,
		"next_offset": result.Page.NextOffset,
		"has_more":    result.Page.HasMore,
		"total":       result.Page.Total,
		"fts_stale":   result.Page.FTSStale,
	})
}
