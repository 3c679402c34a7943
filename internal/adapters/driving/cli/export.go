package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export corpus data",
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

var (
	exportTEIOutDir    string
	exportTEIDocIDs    []int64
	exportTEIStructure bool
)

var exportTEICmd = &cobra.Command{
	Use:   "tei",
	Short: "Export documents as structured XML",
	RunE:  runExportTEI,
}

func init() {
	exportTEICmd.Flags().StringVar(&exportTEIOutDir, "out-dir", "", "output directory")
	exportTEICmd.Flags().Int64SliceVar(&exportTEIDocIDs, "doc-id", nil, "document id (repeatable; default: all)")
	exportTEICmd.Flags().BoolVar(&exportTEIStructure, "include-structure", false, "also export structure units")
	_ = exportTEICmd.MarkFlagRequired("out-dir")
	exportCmd.AddCommand(exportTEICmd)
}

func runExportTEI(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	var docIDs []int64
	if len(exportTEIDocIDs) > 0 {
		docIDs = exportTEIDocIDs
	}
	result, err := engine.ExportTEI(cmd.Context(), exportTEIOutDir, docIDs, exportTEIStructure, nil)
	if err != nil {
		return err
	}
	return printJSON(result)
}

var (
	exportCSVOutPath string
	exportCSVPivot   int64
	exportCSVTarget  int64
	exportCSVTab     bool
)

var exportAlignCSVCmd = &cobra.Command{
	Use:   "align-csv",
	Short: "Export alignment links as CSV or TSV",
	RunE:  runExportAlignCSV,
}

func init() {
	exportAlignCSVCmd.Flags().StringVar(&exportCSVOutPath, "out", "", "output file path")
	exportAlignCSVCmd.Flags().Int64Var(&exportCSVPivot, "pivot", 0, "filter by pivot document id")
	exportAlignCSVCmd.Flags().Int64Var(&exportCSVTarget, "target", 0, "filter by target document id")
	exportAlignCSVCmd.Flags().BoolVar(&exportCSVTab, "tsv", false, "tab-separated output")
	_ = exportAlignCSVCmd.MarkFlagRequired("out")
	exportCmd.AddCommand(exportAlignCSVCmd)
}

func runExportAlignCSV(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := domain.AlignExportFilter{}
	if exportCSVPivot > 0 {
		filter.PivotDocID = &exportCSVPivot
	}
	if exportCSVTarget > 0 {
		filter.TargetDocID = &exportCSVTarget
	}
	delimiter := ','
	if exportCSVTab {
		delimiter = '\t'
	}

	result, err := engine.ExportAlignCSV(cmd.Context(), filter, exportCSVOutPath, delimiter)
	if err != nil {
		return err
	}
	return printJSON(result)
}

var (
	exportReportOutPath string
	exportReportFormat  string
	exportReportRunID   string
)

var exportRunReportCmd = &cobra.Command{
	Use:   "run-report",
	Short: "Export the run log as JSONL or HTML",
	RunE:  runExportRunReport,
}

func init() {
	exportRunReportCmd.Flags().StringVar(&exportReportOutPath, "out", "", "output file path")
	exportRunReportCmd.Flags().StringVar(&exportReportFormat, "format", "jsonl", "jsonl or html")
	exportRunReportCmd.Flags().StringVar(&exportReportRunID, "run-id", "", "restrict to one run")
	_ = exportRunReportCmd.MarkFlagRequired("out")
	exportCmd.AddCommand(exportRunReportCmd)
}

func runExportRunReport(cmd *cobra.Command, _ []string) error {
	store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := engine.ExportRunReport(cmd.Context(), exportReportRunID, exportReportOutPath, exportReportFormat)
	if err != nil {
		return err
	}
	return printJSON(result)
}
