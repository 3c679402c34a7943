package httpapi

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/services"
	"github.com/custodia-labs/agrafes/internal/jobs"
)

// runJob executes one async job kind against the engine. The context is
// canceled when the job is canceled; long loops observe it at their
// checkpoints through the engine.
func (s *Server) runJob(
	ctx context.Context, kind domain.JobKind, params map[string]any, progress jobs.ProgressFunc,
) (map[string]any, error) {
	switch kind {
	case domain.JobIndex:
		progress(10, "Rebuilding FTS index")
		result, err := s.engine.RebuildIndex(ctx)
		if err != nil {
			return nil, err
		}
		progress(100, "Index rebuilt")
		return toMap(result)

	case domain.JobImport:
		progress(5, "Starting import")
		result, err := s.engine.Import(ctx, domain.ImportRequest{
			Mode:         domain.ImportMode(stringParam(params, "mode")),
			Path:         stringParam(params, "path"),
			Language:     stringParam(params, "language"),
			Title:        stringParam(params, "title"),
			DocRole:      domain.DocRole(stringParam(params, "doc_role")),
			ResourceType: stringParam(params, "resource_type"),
			TEIUnit:      stringParam(params, "tei_unit"),
		})
		if err != nil {
			return nil, err
		}
		progress(100, "Import completed")
		return toMap(result)

	case domain.JobCurate:
		progress(10, "Applying curation rules")
		rules, err := curationRulesParam(params)
		if err != nil {
			return nil, err
		}
		var docID *int64
		if id, ok := intParam(params, "doc_id"); ok {
			docID = &id
		}
		result, err := s.engine.Curate(ctx, docID, rules)
		if err != nil {
			return nil, err
		}
		progress(100, "Curation completed")
		return toMap(result)

	case domain.JobValidateMeta:
		progress(20, "Validating metadata")
		var docID *int64
		if id, ok := intParam(params, "doc_id"); ok {
			docID = &id
		}
		results, err := s.engine.ValidateMeta(ctx, docID)
		if err != nil {
			return nil, err
		}
		hasErrors := false
		for _, r := range results {
			if !r.IsValid {
				hasErrors = true
				break
			}
		}
		status := "ok"
		if hasErrors {
			status = "warnings"
		}
		progress(100, "Validation completed")
		return map[string]any{
			"status":         status,
			"docs_validated": len(results),
			"results":        results,
		}, nil

	case domain.JobSegment:
		progress(10, "Resegmenting document")
		docID, ok := intParam(params, "doc_id")
		if !ok {
			return nil, fmt.Errorf("segment job requires params.doc_id: %w", domain.ErrValidation)
		}
		result, err := s.engine.Segment(ctx, docID, stringParam(params, "lang"))
		if err != nil {
			return nil, err
		}
		progress(100, "Segmentation completed")
		return toMap(result)

	case domain.JobAlign:
		pivotDocID, _ := intParam(params, "pivot_doc_id")
		targetDocIDs, _ := int64SliceParam(params, "target_doc_ids")
		strategy := domain.AlignStrategy(stringParam(params, "strategy"))
		if strategy == "" {
			strategy = domain.AlignExternalID
		}
		req := services.AlignRequest{
			PivotDocID:   pivotDocID,
			TargetDocIDs: targetDocIDs,
			Strategy:     strategy,
			Debug:        params["debug_align"] == true,
		}
		if threshold, ok := params["sim_threshold"].(float64); ok {
			req.SimThreshold = threshold
		}
		progress(10, fmt.Sprintf("Aligning strategy=%s", strategy))
		result, err := s.engine.Align(ctx, req, stringParam(params, "run_id"))
		if err != nil {
			return nil, err
		}
		progress(100, "Alignment completed")
		return toMap(result)

	case domain.JobExportTEI:
		outDir := stringParam(params, "out_dir")
		var docIDs []int64
		if ids, ok := int64SliceParam(params, "doc_ids"); ok {
			docIDs = ids
		}
		progress(5, "Exporting TEI")
		result, err := s.engine.ExportTEI(ctx, outDir, docIDs,
			params["include_structure"] == true,
			func(done, total int) {
				pct := 5 + 90*done/max(total, 1)
				progress(pct, fmt.Sprintf("Exported %d/%d", done, total))
			})
		if err != nil {
			return nil, err
		}
		progress(100, "TEI export completed")
		return toMap(result)

	case domain.JobExportAlignCSV:
		progress(10, "Querying alignment links")
		filter := domain.AlignExportFilter{}
		if id, ok := intParam(params, "pivot_doc_id"); ok {
			filter.PivotDocID = &id
		}
		if id, ok := intParam(params, "target_doc_id"); ok {
			filter.TargetDocID = &id
		}
		if id, ok := intParam(params, "external_id"); ok {
			filter.ExternalID = &id
		}
		delimiter := ','
		if stringParam(params, "delimiter") == "\t" {
			delimiter = '\t'
		}
		result, err := s.engine.ExportAlignCSV(ctx, filter, stringParam(params, "out_path"), delimiter)
		if err != nil {
			return nil, err
		}
		progress(100, "CSV export completed")
		return toMap(result)

	case domain.JobExportRunReport:
		progress(10, "Fetching run history")
		result, err := s.engine.ExportRunReport(ctx,
			stringParam(params, "run_id"),
			stringParam(params, "out_path"),
			stringParam(params, "format"))
		if err != nil {
			return nil, err
		}
		progress(100, "Report export completed")
		return toMap(result)
	}

	return nil, fmt.Errorf("unsupported job kind %q: %w", kind, domain.ErrValidation)
}

// curationRulesParam decodes the rules array of a curate job.
func curationRulesParam(params map[string]any) ([]domain.CurationRule, error) {
	raw, ok := params["rules"]
	if !ok {
		return nil, fmt.Errorf("curate job requires params.rules: %w", domain.ErrValidation)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	var rules []domain.CurationRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("curate params.rules must be an array of rules: %w", domain.ErrValidation)
	}
	return rules, nil
}

// toMap round-trips a typed result into the generic job result object.
func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding job result: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding job result: %w", err)
	}
	return out, nil
}
