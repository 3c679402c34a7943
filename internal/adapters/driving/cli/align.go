package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/services"
)

var (
	alignPivot     int64
	alignTargets   []int64
	alignStrategy  string
	alignThreshold float64
	alignDebug     bool
	alignRunID     string
)

var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Align a pivot document against target documents",
	Long: `Creates one-to-one unit links between a pivot document and each target.
Strategies: external_id, external_id_then_position, position, similarity.
Each run is tagged with a run id so link sets never overwrite each other.`,
	RunE: runAlign,
}

func init() {
	alignCmd.Flags().Int64Var(&alignPivot, "pivot", 0, "pivot document id")
	alignCmd.Flags().Int64SliceVar(&alignTargets, "target", nil, "target document id (repeatable)")
	alignCmd.Flags().StringVar(&alignStrategy, "strategy", string(domain.AlignExternalID), "alignment strategy")
	alignCmd.Flags().Float64Var(&alignThreshold, "sim-threshold", services.DefaultSimThreshold, "similarity threshold (0..1)")
	alignCmd.Flags().BoolVar(&alignDebug, "debug-align", false, "include the per-phase debug payload")
	alignCmd.Flags().StringVar(&alignRunID, "run-id", "", "explicit run id (default: fresh UUID)")
	_ = alignCmd.MarkFlagRequired("pivot")
	_ = alignCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.Align(cmd.Context(), services.AlignRequest{
		PivotDocID:   alignPivot,
		TargetDocIDs: alignTargets,
		Strategy:     domain.AlignStrategy(alignStrategy),
		SimThreshold: alignThreshold,
		Debug:        alignDebug,
	}, alignRunID)
	if err != nil {
		return err
	}
	return printJSON(result)
}

var (
	auditPivot  int64
	auditTarget int64
	auditLimit  int
	auditOffset int
	auditStatus string
)

var alignAuditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List alignment links for a pivot/target pair",
	RunE:  runAlignAudit,
}

func init() {
	alignAuditCmd.Flags().Int64Var(&auditPivot, "pivot", 0, "pivot document id")
	alignAuditCmd.Flags().Int64Var(&auditTarget, "target", 0, "target document id")
	alignAuditCmd.Flags().IntVarP(&auditLimit, "limit", "n", domain.DefaultQueryLimit, "page size (1..200)")
	alignAuditCmd.Flags().IntVar(&auditOffset, "offset", 0, "page offset")
	alignAuditCmd.Flags().StringVar(&auditStatus, "status", "", "filter: unreviewed, accepted, or rejected")
	_ = alignAuditCmd.MarkFlagRequired("pivot")
	_ = alignAuditCmd.MarkFlagRequired("target")
	alignCmd.AddCommand(alignAuditCmd)
}

func runAlignAudit(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := domain.AuditFilter{
		PivotDocID:  auditPivot,
		TargetDocID: auditTarget,
		Limit:       auditLimit,
		Offset:      auditOffset,
	}
	if auditStatus != "" {
		filter.Status = &auditStatus
	}

	links, hasMore, err := engine.AuditLinks(cmd.Context(), filter)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"pivot_doc_id":  auditPivot,
		"target_doc_id": auditTarget,
		"links":         links,
		"has_more":      hasMore,
	})
}

var (
	qualityPivot  int64
	qualityTarget int64
	qualityRunID  string
)

var alignQualityCmd = &cobra.Command{
	Use:   "quality",
	Short: "Coverage and review metrics for a pivot/target pair",
	RunE:  runAlignQuality,
}

func init() {
	alignQualityCmd.Flags().Int64Var(&qualityPivot, "pivot", 0, "pivot document id")
	alignQualityCmd.Flags().Int64Var(&qualityTarget, "target", 0, "target document id")
	alignQualityCmd.Flags().StringVar(&qualityRunID, "run-id", "", "restrict to one alignment run")
	_ = alignQualityCmd.MarkFlagRequired("pivot")
	_ = alignQualityCmd.MarkFlagRequired("target")
	alignCmd.AddCommand(alignQualityCmd)
}

func runAlignQuality(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := engine.AlignQuality(cmd.Context(), qualityPivot, qualityTarget, qualityRunID)
	if err != nil {
		return err
	}
	return printJSON(report)
}
