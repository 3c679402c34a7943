package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// Stores bundles the driven ports the engine runs on.
type Stores struct {
	Documents driven.DocumentStore
	Units     driven.UnitStore
	Runs      driven.RunStore
	Links     driven.LinkStore
	Relations driven.RelationStore
	Index     driven.SearchIndex
}

// Engine bundles the core services behind the single-writer lock shared by
// the CLI and the sidecar. It also owns the process-local fts_stale flag:
// any operation that changes text_norm or the line-unit set marks the index
// stale; only a rebuild clears it.
type Engine struct {
	stores Stores

	runs     *RunService
	imports  *ImportService
	queries  *QueryService
	aligns   *AlignService
	curates  *CurateService
	segments *SegmentService
	metas    *MetaService

	// writeMu is the single-writer lock. Mutating operations hold it end to
	// end; reads proceed concurrently under SQLite's shared-reader rules.
	writeMu sync.Mutex

	staleMu  sync.Mutex
	ftsStale bool
}

// NewEngine wires an engine over the given stores. dbPath locates the runs/
// directory for per-run log files.
func NewEngine(stores Stores, dbPath string) *Engine {
	return &Engine{
		stores:   stores,
		runs:     NewRunService(stores.Runs, dbPath),
		imports:  NewImportService(stores.Documents),
		queries:  NewQueryService(stores.Index, stores.Links),
		aligns:   NewAlignService(stores.Documents, stores.Units, stores.Links),
		curates:  NewCurateService(stores.Documents, stores.Units),
		segments: NewSegmentService(stores.Units),
		metas:    NewMetaService(stores.Documents, stores.Units),
	}
}

// FTSStale reports whether the index lags the stored text.
func (e *Engine) FTSStale() bool {
	e.staleMu.Lock()
	defer e.staleMu.Unlock()
	return e.ftsStale
}

func (e *Engine) setStale(stale bool) {
	e.staleMu.Lock()
	e.ftsStale = stale
	e.staleMu.Unlock()
}

// Runs exposes the run log service.
func (e *Engine) Runs() *RunService {
	return e.runs
}

// ==================== Ingestion ====================

// ImportResult pairs an import report with its run identity.
type ImportResult struct {
	RunID  string               `json:"run_id"`
	Mode   domain.ImportMode    `json:"mode"`
	Report *domain.ImportReport `json:"report"`
}

// Import ingests one source file under the write lock.
func (e *Engine) Import(ctx context.Context, req domain.ImportRequest) (*ImportResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	params := map[string]any{
		"mode": string(req.Mode), "path": req.Path, "language": req.Language,
		"title": req.Title, "doc_role": string(req.DocRole),
		"resource_type": req.ResourceType, "tei_unit": req.TEIUnit,
	}
	runID, err := e.runs.Create(ctx, domain.RunImport, params, "")
	if err != nil {
		return nil, err
	}
	log := e.runs.OpenLog(runID)
	defer log.Close()

	report, err := e.imports.Import(ctx, req, log)
	if err != nil {
		return nil, err
	}

	if report.UnitsLine > 0 {
		e.setStale(true)
	}
	e.updateRunStats(ctx, runID, map[string]any{
		"doc_id": report.DocID, "units_total": report.UnitsTotal,
		"units_line": report.UnitsLine, "units_structure": report.UnitsStructure,
		"warnings": report.Warnings,
	})

	return &ImportResult{RunID: runID, Mode: req.Mode, Report: report}, nil
}

// ==================== Index ====================

// IndexResult reports one FTS rebuild.
type IndexResult struct {
	RunID        string `json:"run_id"`
	UnitsIndexed int64  `json:"units_indexed"`
}

// RebuildIndex refreshes the FTS index from the stored line units and
// clears the stale flag.
func (e *Engine) RebuildIndex(ctx context.Context) (*IndexResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	runID, err := e.runs.Create(ctx, domain.RunIndex, map[string]any{}, "")
	if err != nil {
		return nil, err
	}

	count, err := e.stores.Index.Rebuild(ctx)
	if err != nil {
		return nil, err
	}

	e.setStale(false)
	e.updateRunStats(ctx, runID, map[string]any{"units_indexed": count})

	return &IndexResult{RunID: runID, UnitsIndexed: count}, nil
}

// ==================== Query ====================

// QueryResult pairs a query page with its run identity.
type QueryResult struct {
	RunID string            `json:"run_id"`
	Page  *domain.QueryPage `json:"page"`
}

// Query answers one search request. Reads run without the write lock.
func (e *Engine) Query(ctx context.Context, opts domain.QueryOptions) (*QueryResult, error) {
	runID, err := e.runs.Create(ctx, domain.RunQuery, map[string]any{
		"q": opts.Q, "mode": string(opts.Mode), "window": opts.Window,
		"limit": opts.Limit, "offset": opts.Offset,
		"include_aligned": opts.IncludeAligned, "all_occurrences": opts.AllOccurrences,
	}, "")
	if err != nil {
		return nil, err
	}

	page, err := e.queries.Query(ctx, opts)
	if err != nil {
		return nil, err
	}
	page.FTSStale = e.FTSStale()

	e.updateRunStats(ctx, runID, map[string]any{
		"count": len(page.Hits), "offset": page.Offset, "limit": page.Limit,
		"has_more": page.HasMore,
	})

	return &QueryResult{RunID: runID, Page: page}, nil
}

// ==================== Alignment ====================

// AlignResult is the response of one alignment run.
type AlignResult struct {
	RunID             string                   `json:"run_id"`
	Strategy          domain.AlignStrategy     `json:"strategy"`
	PivotDocID        int64                    `json:"pivot_doc_id"`
	DebugAlign        bool                     `json:"debug_align"`
	TotalLinksCreated int                      `json:"total_links_created"`
	Reports           []domain.AlignmentReport `json:"reports"`
}

// Align runs one alignment under the write lock. runID may be empty.
func (e *Engine) Align(ctx context.Context, req AlignRequest, runID string) (*AlignResult, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	params := map[string]any{
		"pivot_doc_id": req.PivotDocID, "target_doc_ids": req.TargetDocIDs,
		"strategy": string(req.Strategy), "debug_align": req.Debug,
	}
	if req.Strategy == domain.AlignSimilarity {
		threshold := req.SimThreshold
		if threshold == 0 {
			threshold = DefaultSimThreshold
		}
		params["sim_threshold"] = threshold
	}

	createdRunID, err := e.runs.Create(ctx, domain.RunAlign, params, runID)
	if err != nil {
		return nil, err
	}
	log := e.runs.OpenLog(createdRunID)
	defer log.Close()

	reports, err := e.aligns.Align(ctx, req, createdRunID, log)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, r := range reports {
		total += r.LinksCreated
	}
	e.updateRunStats(ctx, createdRunID, map[string]any{
		"strategy": string(req.Strategy), "pivot_doc_id": req.PivotDocID,
		"target_doc_ids": req.TargetDocIDs, "debug_align": req.Debug,
		"total_links_created": total, "pairs": reports,
	})

	return &AlignResult{
		RunID:             createdRunID,
		Strategy:          req.Strategy,
		PivotDocID:        req.PivotDocID,
		DebugAlign:        req.Debug,
		TotalLinksCreated: total,
		Reports:           reports,
	}, nil
}

// AuditLinks lists links for a pivot↔target pair with lookahead pagination.
func (e *Engine) AuditLinks(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRow, bool, error) {
	if f.Limit < 1 || f.Limit > domain.MaxQueryLimit {
		return nil, false, fmt.Errorf("limit must be in [1, %d]: %w", domain.MaxQueryLimit, domain.ErrValidation)
	}
	if f.Offset < 0 {
		return nil, false, fmt.Errorf("offset must be >= 0: %w", domain.ErrValidation)
	}
	return e.stores.Links.AuditPage(ctx, f)
}

// AlignQuality computes coverage metrics for one pivot↔target pair.
func (e *Engine) AlignQuality(
	ctx context.Context, pivotDocID, targetDocID int64, runID string,
) (*domain.QualityReport, error) {
	return e.stores.Links.Quality(ctx, pivotDocID, targetDocID, runID)
}

// UpdateLinkStatus sets the review status of one link.
func (e *Engine) UpdateLinkStatus(ctx context.Context, linkID int64, status *string) error {
	if status != nil && *status != domain.LinkAccepted && *status != domain.LinkRejected {
		return fmt.Errorf("status must be 'accepted', 'rejected', or null: %w", domain.ErrValidation)
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Links.UpdateLinkStatus(ctx, linkID, status)
}

// DeleteLink removes one link.
func (e *Engine) DeleteLink(ctx context.Context, linkID int64) (int64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Links.DeleteLink(ctx, linkID)
}

// RetargetLink points an existing link at a new target unit.
func (e *Engine) RetargetLink(ctx context.Context, linkID, newTargetUnitID int64) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Links.RetargetLink(ctx, linkID, newTargetUnitID)
}

// ==================== Curation ====================

// CurateResult is the response of one curation apply.
type CurateResult struct {
	RunID         string                  `json:"run_id"`
	DocsCurated   int                     `json:"docs_curated"`
	UnitsModified int                     `json:"units_modified"`
	FTSStale      bool                    `json:"fts_stale"`
	Results       []domain.CurationReport `json:"results"`
}

// Curate applies rules to one document (docID != nil) or the whole corpus,
// under the write lock. Marks the index stale when any unit changed.
func (e *Engine) Curate(
	ctx context.Context, docID *int64, rules []domain.CurationRule,
) (*CurateResult, error) {
	compiled, err := CompileRules(rules)
	if err != nil {
		return nil, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	params := map[string]any{"rules": len(rules)}
	if docID != nil {
		params["doc_id"] = *docID
	}
	runID, err := e.runs.Create(ctx, domain.RunCurate, params, "")
	if err != nil {
		return nil, err
	}
	log := e.runs.OpenLog(runID)
	defer log.Close()

	var reports []domain.CurationReport
	if docID != nil {
		report, err := e.curates.Curate(ctx, *docID, compiled, log)
		if err != nil {
			return nil, err
		}
		reports = []domain.CurationReport{*report}
	} else {
		reports, err = e.curates.CurateAll(ctx, compiled, log)
		if err != nil {
			return nil, err
		}
	}

	totalModified := 0
	for _, r := range reports {
		totalModified += r.UnitsModified
	}
	if totalModified > 0 {
		e.setStale(true)
	}
	e.updateRunStats(ctx, runID, map[string]any{
		"docs_curated": len(reports), "units_modified": totalModified,
	})

	return &CurateResult{
		RunID:         runID,
		DocsCurated:   len(reports),
		UnitsModified: totalModified,
		FTSStale:      totalModified > 0,
		Results:       reports,
	}, nil
}

// CuratePreview simulates rules against one document. Read-only.
func (e *Engine) CuratePreview(
	ctx context.Context, docID int64, rules []domain.CurationRule, limitExamples int,
) (*domain.CurationPreview, error) {
	return e.curates.Preview(ctx, docID, rules, limitExamples)
}

// ==================== Segmentation ====================

// SegmentResult pairs a segmentation report with its run identity.
type SegmentResult struct {
	RunID    string                     `json:"run_id"`
	FTSStale bool                       `json:"fts_stale"`
	Report   *domain.SegmentationReport `json:"report"`
}

// Segment resegments one document into sentence-level units under the
// write lock.
func (e *Engine) Segment(ctx context.Context, docID int64, lang string) (*SegmentResult, error) {
	if lang == "" {
		lang = "und"
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	runID, err := e.runs.Create(ctx, domain.RunSegment,
		map[string]any{"doc_id": docID, "lang": lang}, "")
	if err != nil {
		return nil, err
	}
	log := e.runs.OpenLog(runID)
	defer log.Close()

	report, err := e.segments.Resegment(ctx, docID, lang, log)
	if err != nil {
		return nil, err
	}

	if report.UnitsOutput > 0 {
		e.setStale(true)
	}
	e.updateRunStats(ctx, runID, map[string]any{
		"doc_id": docID, "units_input": report.UnitsInput,
		"units_output": report.UnitsOutput, "links_dropped": report.LinksDropped,
	})

	return &SegmentResult{RunID: runID, FTSStale: report.UnitsOutput > 0, Report: report}, nil
}

// ==================== Metadata ====================

// ValidateMeta validates one document (docID != nil) or the whole corpus.
func (e *Engine) ValidateMeta(ctx context.Context, docID *int64) ([]domain.MetaValidationResult, error) {
	if docID != nil {
		result, err := e.metas.Validate(ctx, *docID)
		if err != nil {
			return nil, err
		}
		return []domain.MetaValidationResult{*result}, nil
	}
	return e.metas.ValidateAll(ctx)
}

// ==================== Documents & relations ====================

// Documents lists all documents with line-unit counts.
func (e *Engine) Documents(ctx context.Context) ([]domain.DocumentSummary, error) {
	return e.stores.Documents.ListDocuments(ctx)
}

// UpdateDocument rewrites mutable metadata fields of one document.
func (e *Engine) UpdateDocument(ctx context.Context, upd domain.DocumentUpdate) (*domain.Document, error) {
	if upd.Role != nil && !domain.ValidDocRole(domain.DocRole(*upd.Role)) {
		return nil, fmt.Errorf("doc_role %q: %w", *upd.Role, domain.ErrValidation)
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Documents.UpdateDocument(ctx, upd)
}

// BulkUpdateDocuments applies many metadata updates in one transaction.
func (e *Engine) BulkUpdateDocuments(ctx context.Context, upds []domain.DocumentUpdate) (int64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Documents.BulkUpdateDocuments(ctx, upds)
}

// SetRelation upserts a document relation.
func (e *Engine) SetRelation(ctx context.Context, rel *domain.DocRelation) (int64, bool, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Relations.SetRelation(ctx, rel)
}

// DeleteRelation removes a relation by id.
func (e *Engine) DeleteRelation(ctx context.Context, id int64) (int64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	return e.stores.Relations.DeleteRelation(ctx, id)
}

// Relations lists the relations of one document.
func (e *Engine) Relations(ctx context.Context, docID int64) ([]domain.DocRelation, error) {
	return e.stores.Relations.RelationsForDoc(ctx, docID)
}

// ==================== Shared ====================

// updateRunStats records stats, tolerating failures: a run row without
// stats is still a valid audit record.
func (e *Engine) updateRunStats(ctx context.Context, runID string, stats map[string]any) {
	_ = e.runs.UpdateStats(ctx, runID, stats)
}
