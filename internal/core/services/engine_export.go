package services

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/exporters"
)

// ExportTEIResult reports one structured XML export.
type ExportTEIResult struct {
	RunID        string   `json:"run_id"`
	FilesCreated []string `json:"files_created"`
	Count        int      `json:"count"`
}

// ExportTEI writes one XML file per document into outDir. A nil docIDs
// exports every document. progress (optional) observes per-document
// completion and doubles as the cancellation checkpoint: a canceled context
// stops between documents.
func (e *Engine) ExportTEI(
	ctx context.Context, outDir string, docIDs []int64, includeStructure bool,
	progress func(done, total int),
) (*ExportTEIResult, error) {
	if outDir == "" {
		return nil, fmt.Errorf("out_dir is required: %w", domain.ErrValidation)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	if docIDs == nil {
		var err error
		docIDs, err = e.stores.Documents.ListDocIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	runID, err := e.runs.Create(ctx, domain.RunExport, map[string]any{
		"format": "tei", "out_dir": outDir, "doc_count": len(docIDs),
	}, "")
	if err != nil {
		return nil, err
	}

	result := &ExportTEIResult{RunID: runID, FilesCreated: []string{}}
	opts := exporters.TEIOptions{IncludeStructure: includeStructure}
	for i, docID := range docIDs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrJobCanceled, err)
		}
		outPath := filepath.Join(outDir, fmt.Sprintf("doc_%d.tei.xml", docID))
		if err := exporters.ExportTEI(ctx, e.stores.Documents, e.stores.Units, docID, outPath, opts); err != nil {
			return nil, err
		}
		result.FilesCreated = append(result.FilesCreated, outPath)
		if progress != nil {
			progress(i+1, len(docIDs))
		}
	}

	result.Count = len(result.FilesCreated)
	e.updateRunStats(ctx, runID, map[string]any{"files_created": result.Count})
	return result, nil
}

// ExportAlignCSVResult reports one alignment dump.
type ExportAlignCSVResult struct {
	RunID       string `json:"run_id"`
	OutPath     string `json:"out_path"`
	RowsWritten int    `json:"rows_written"`
}

// ExportAlignCSV dumps alignment links to a CSV/TSV file.
func (e *Engine) ExportAlignCSV(
	ctx context.Context, f domain.AlignExportFilter, outPath string, delimiter rune,
) (*ExportAlignCSVResult, error) {
	if outPath == "" {
		return nil, fmt.Errorf("out_path is required: %w", domain.ErrValidation)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	runID, err := e.runs.Create(ctx, domain.RunExport, map[string]any{
		"format": "align_csv", "out_path": outPath,
	}, "")
	if err != nil {
		return nil, err
	}

	rows, err := exporters.ExportAlignCSV(ctx, e.stores.Links, f, outPath, delimiter)
	if err != nil {
		return nil, err
	}

	e.updateRunStats(ctx, runID, map[string]any{"rows_written": rows})
	return &ExportAlignCSVResult{RunID: runID, OutPath: outPath, RowsWritten: rows}, nil
}

// ExportRunReportResult reports one run-report export.
type ExportRunReportResult struct {
	OutPath      string `json:"out_path"`
	RunsExported int    `json:"runs_exported"`
	Format       string `json:"format"`
}

// ExportRunReport serializes the run log to JSONL or HTML.
func (e *Engine) ExportRunReport(
	ctx context.Context, runID, outPath, format string,
) (*ExportRunReportResult, error) {
	if outPath == "" {
		return nil, fmt.Errorf("out_path is required: %w", domain.ErrValidation)
	}
	if format == "" {
		format = exporters.FormatJSONL
	}
	if format != exporters.FormatJSONL && format != exporters.FormatHTML {
		return nil, fmt.Errorf("unsupported run report format %q: %w", format, domain.ErrValidation)
	}

	count, err := exporters.ExportRunReport(ctx, e.stores.Runs, runID, outPath, format)
	if err != nil {
		return nil, err
	}
	return &ExportRunReportResult{OutPath: outPath, RunsExported: count, Format: format}, nil
}
