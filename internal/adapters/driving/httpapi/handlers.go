package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/services"
	"github.com/custodia-labs/agrafes/internal/logger"
	"github.com/custodia-labs/agrafes/internal/version"
)

// TokenHeader guards write endpoints.
const TokenHeader = "X-Agrafes-Token"

// Route is one path+method pair of the external contract.
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Write  bool   `json:"-"`
}

// Routes is the frozen external contract. Adding endpoints is allowed;
// removing any fails the snapshot test.
var Routes = []Route{
	{Method: http.MethodGet, Path: "/health"},
	{Method: http.MethodGet, Path: "/openapi.json"},
	{Method: http.MethodGet, Path: "/documents"},
	{Method: http.MethodGet, Path: "/doc_relations"},
	{Method: http.MethodPost, Path: "/query"},
	{Method: http.MethodPost, Path: "/import", Write: true},
	{Method: http.MethodPost, Path: "/index", Write: true},
	{Method: http.MethodPost, Path: "/curate", Write: true},
	{Method: http.MethodPost, Path: "/curate/preview"},
	{Method: http.MethodPost, Path: "/segment", Write: true},
	{Method: http.MethodPost, Path: "/align", Write: true},
	{Method: http.MethodPost, Path: "/align/audit"},
	{Method: http.MethodPost, Path: "/align/quality"},
	{Method: http.MethodPost, Path: "/align/link/update_status", Write: true},
	{Method: http.MethodPost, Path: "/align/link/delete", Write: true},
	{Method: http.MethodPost, Path: "/align/link/retarget", Write: true},
	{Method: http.MethodPost, Path: "/documents/update", Write: true},
	{Method: http.MethodPost, Path: "/documents/bulk_update", Write: true},
	{Method: http.MethodPost, Path: "/doc_relations/set", Write: true},
	{Method: http.MethodPost, Path: "/doc_relations/delete", Write: true},
	{Method: http.MethodPost, Path: "/validate-meta", Write: true},
	{Method: http.MethodPost, Path: "/export/tei", Write: true},
	{Method: http.MethodPost, Path: "/export/align_csv", Write: true},
	{Method: http.MethodPost, Path: "/export/run_report", Write: true},
	{Method: http.MethodGet, Path: "/jobs"},
	{Method: http.MethodGet, Path: "/jobs/{id}"},
	{Method: http.MethodPost, Path: "/jobs/enqueue", Write: true},
	{Method: http.MethodPost, Path: "/jobs/{id}/cancel", Write: true},
	{Method: http.MethodPost, Path: "/shutdown", Write: true},
}

// routes builds the request mux.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	get := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, s.method(http.MethodGet, false, h))
	}
	post := func(path string, write bool, h http.HandlerFunc) {
		mux.HandleFunc(path, s.method(http.MethodPost, write, h))
	}

	get("/health", s.handleHealth)
	get("/openapi.json", s.handleOpenAPI)
	get("/documents", s.handleDocuments)
	get("/doc_relations", s.handleDocRelations)
	post("/query", false, s.handleQuery)
	post("/import", true, s.handleImport)
	post("/index", true, s.handleIndex)
	post("/curate", true, s.handleCurate)
	post("/curate/preview", false, s.handleCuratePreview)
	post("/segment", true, s.handleSegment)
	post("/align", true, s.handleAlign)
	post("/align/audit", false, s.handleAlignAudit)
	post("/align/quality", false, s.handleAlignQuality)
	post("/align/link/update_status", true, s.handleLinkUpdateStatus)
	post("/align/link/delete", true, s.handleLinkDelete)
	post("/align/link/retarget", true, s.handleLinkRetarget)
	post("/documents/update", true, s.handleDocumentsUpdate)
	post("/documents/bulk_update", true, s.handleDocumentsBulkUpdate)
	post("/doc_relations/set", true, s.handleDocRelationsSet)
	post("/doc_relations/delete", true, s.handleDocRelationsDelete)
	post("/validate-meta", true, s.handleValidateMeta)
	post("/export/tei", true, s.handleExportTEI)
	post("/export/align_csv", true, s.handleExportAlignCSV)
	post("/export/run_report", true, s.handleExportRunReport)
	get("/jobs", s.handleJobsList)
	post("/jobs/enqueue", true, s.handleJobsEnqueue)
	mux.HandleFunc("/jobs/", s.handleJobsSubtree)
	post("/shutdown", true, s.handleShutdown)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w, fmt.Sprintf("Unknown route: %s", r.URL.Path))
	})

	return mux
}

// method enforces the HTTP method, the token guard on writes, and the
// JSON content type on bodies, then recovers handler panics into the
// internal-error envelope.
func (s *Server) method(verb string, write bool, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != verb {
			writeNotFound(w, fmt.Sprintf("Unknown route: %s %s", r.Method, r.URL.Path))
			return
		}
		if write && !s.checkToken(w, r) {
			return
		}
		if r.Method == http.MethodPost && r.ContentLength > 0 {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.Contains(ct, "application/json") {
				writeBadRequest(w, "Content-Type must be application/json")
				return
			}
		}
		defer func() {
			if rec := recover(); rec != nil {
				logger.Warn("handler panic on %s: %v", r.URL.Path, rec)
				writeJSON(w, http.StatusInternalServerError,
					errorPayload(fmt.Sprintf("internal error: %v", rec), ErrCodeInternal, nil))
			}
		}()
		h(w, r)
	}
}

// checkToken validates the write token. No token configured means no auth.
func (s *Server) checkToken(w http.ResponseWriter, r *http.Request) bool {
	if s.token == "" {
		return true
	}
	if r.Header.Get(TokenHeader) != s.token {
		writeJSON(w, http.StatusUnauthorized,
			errorPayload("Missing or invalid "+TokenHeader, ErrCodeUnauthorized, nil))
		return false
	}
	return true
}

// decodeBody reads a JSON object body into v. Empty bodies are allowed and
// leave v zero-valued.
func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid JSON body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

// ==================== Health & contract ====================

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{
		"version":        version.Version,
		"pid":            s.pid,
		"started_at":     s.startedAt,
		"host":           s.cfg.Host,
		"port":           s.Port(),
		"portfile":       s.portfile,
		"token_required": s.token != "",
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openAPISpec())
}

// ==================== Documents & relations ====================

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.engine.Documents(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"documents": docs, "count": len(docs)})
}

func (s *Server) handleDocRelations(w http.ResponseWriter, r *http.Request) {
	docIDStr := r.URL.Query().Get("doc_id")
	if docIDStr == "" {
		writeBadRequest(w, "doc_id query param is required")
		return
	}
	docID, err := strconv.ParseInt(docIDStr, 10, 64)
	if err != nil {
		writeBadRequest(w, "doc_id must be an integer")
		return
	}

	relations, err := s.engine.Relations(r.Context(), docID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"doc_id": docID, "relations": relations, "count": len(relations)})
}

type documentUpdateRequest struct {
	DocID        *int64  `json:"doc_id"`
	Title        *string `json:"title"`
	Language     *string `json:"language"`
	DocRole      *string `json:"doc_role"`
	ResourceType *string `json:"resource_type"`
}

func (s *Server) handleDocumentsUpdate(w http.ResponseWriter, r *http.Request) {
	var req documentUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.DocID == nil {
		writeBadRequest(w, "doc_id is required")
		return
	}

	upd := domain.DocumentUpdate{
		DocID:        *req.DocID,
		Title:        req.Title,
		Language:     req.Language,
		Role:         req.DocRole,
		ResourceType: req.ResourceType,
	}
	if upd.IsEmpty() {
		writeBadRequest(w, "No updatable fields provided (allowed: title, language, doc_role, resource_type)")
		return
	}

	doc, err := s.engine.UpdateDocument(r.Context(), upd)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"updated": 1, "doc": doc})
}

func (s *Server) handleDocumentsBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []documentUpdateRequest `json:"updates"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if len(req.Updates) == 0 {
		writeBadRequest(w, "updates must be a non-empty list of {doc_id, ...fields}")
		return
	}

	upds := make([]domain.DocumentUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		if u.DocID == nil {
			continue
		}
		upds = append(upds, domain.DocumentUpdate{
			DocID:        *u.DocID,
			Title:        u.Title,
			Language:     u.Language,
			Role:         u.DocRole,
			ResourceType: u.ResourceType,
		})
	}

	updated, err := s.engine.BulkUpdateDocuments(r.Context(), upds)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"updated": updated})
}

func (s *Server) handleDocRelationsSet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID        *int64 `json:"doc_id"`
		RelationType string `json:"relation_type"`
		TargetDocID  *int64 `json:"target_doc_id"`
		Note         string `json:"note"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.DocID == nil || req.RelationType == "" || req.TargetDocID == nil {
		writeBadRequest(w, "doc_id, relation_type, and target_doc_id are required")
		return
	}

	rel := &domain.DocRelation{
		DocID:       *req.DocID,
		Type:        domain.RelationType(req.RelationType),
		TargetDocID: *req.TargetDocID,
		Note:        req.Note,
	}
	id, created, err := s.engine.SetRelation(r.Context(), rel)
	if err != nil {
		writeErr(w, err)
		return
	}
	action := "updated"
	if created {
		action = "created"
	}
	writeOK(w, map[string]any{
		"action": action, "id": id, "doc_id": rel.DocID,
		"relation_type": string(rel.Type), "target_doc_id": rel.TargetDocID,
	})
}

func (s *Server) handleDocRelationsDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID *int64 `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.ID == nil {
		writeBadRequest(w, "id is required")
		return
	}

	deleted, err := s.engine.DeleteRelation(r.Context(), *req.ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"deleted": deleted})
}

// ==================== Query & index ====================

type queryRequest struct {
	Q              string `json:"q"`
	Mode           string `json:"mode"`
	Window         int    `json:"window"`
	Language       string `json:"language"`
	DocID          *int64 `json:"doc_id"`
	ResourceType   string `json:"resource_type"`
	DocRole        string `json:"doc_role"`
	IncludeAligned bool   `json:"include_aligned"`
	AlignedLimit   int    `json:"aligned_limit"`
	AllOccurrences bool   `json:"all_occurrences"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	result, err := s.engine.Query(r.Context(), domain.QueryOptions{
		Q:              req.Q,
		Mode:           domain.QueryMode(req.Mode),
		Window:         req.Window,
		Language:       req.Language,
		DocID:          req.DocID,
		ResourceType:   req.ResourceType,
		DocRole:        req.DocRole,
		IncludeAligned: req.IncludeAligned,
		AlignedLimit:   req.AlignedLimit,
		AllOccurrences: req.AllOccurrences,
		Limit:          req.Limit,
		Offset:         req.Offset,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	page := result.Page
	writeOK(w, map[string]any{
		"run_id":      result.RunID,
		"count":       len(page.Hits),
		"hits":        page.Hits,
		"limit":       page.Limit,
		"offset":      page.Offset,
		"next_offset": page.NextOffset,
		"has_more":    page.HasMore,
		"total":       page.Total,
		"fts_stale":   page.FTSStale,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.RebuildIndex(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"run_id": result.RunID, "units_indexed": result.UnitsIndexed})
}

// ==================== Ingestion ====================

type importRequest struct {
	Mode         string `json:"mode"`
	Path         string `json:"path"`
	Language     string `json:"language"`
	Title        string `json:"title"`
	DocRole      string `json:"doc_role"`
	ResourceType string `json:"resource_type"`
	TEIUnit      string `json:"tei_unit"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.Mode == "" {
		writeValidation(w, "mode is required and must be a string", nil)
		return
	}
	if req.Path == "" {
		writeValidation(w, "path is required and must be a string", nil)
		return
	}

	result, err := s.engine.Import(r.Context(), domain.ImportRequest{
		Mode:         domain.ImportMode(req.Mode),
		Path:         req.Path,
		Language:     req.Language,
		Title:        req.Title,
		DocRole:      domain.DocRole(req.DocRole),
		ResourceType: req.ResourceType,
		TEIUnit:      req.TEIUnit,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	report := result.Report
	status := "ok"
	if len(report.Warnings) > 0 {
		status = "warnings"
	}
	writeJSON(w, http.StatusOK, successPayload(map[string]any{
		"run_id":          result.RunID,
		"mode":            string(result.Mode),
		"doc_id":          report.DocID,
		"units_total":     report.UnitsTotal,
		"units_line":      report.UnitsLine,
		"units_structure": report.UnitsStructure,
		"duplicates":      report.Duplicates,
		"holes":           report.Holes,
		"non_monotonic":   report.NonMonotonic,
		"warnings":        report.Warnings,
		"encoding":        report.Encoding,
		"enc_method":      report.EncodingMethod,
		"fts_stale":       report.UnitsLine > 0,
	}, status))
}

// ==================== Curation ====================

type curateRequest struct {
	Rules         []domain.CurationRule `json:"rules"`
	DocID         *int64                `json:"doc_id"`
	LimitExamples int                   `json:"limit_examples"`
}

func (s *Server) handleCurate(w http.ResponseWriter, r *http.Request) {
	var req curateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	result, err := s.engine.Curate(r.Context(), req.DocID, req.Rules)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"run_id":         result.RunID,
		"docs_curated":   result.DocsCurated,
		"units_modified": result.UnitsModified,
		"fts_stale":      result.FTSStale,
		"results":        result.Results,
	})
}

func (s *Server) handleCuratePreview(w http.ResponseWriter, r *http.Request) {
	var req curateRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.DocID == nil {
		writeBadRequest(w, "doc_id is required")
		return
	}

	preview, err := s.engine.CuratePreview(r.Context(), *req.DocID, req.Rules, req.LimitExamples)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"doc_id": preview.DocID,
		"stats": map[string]any{
			"units_total":        preview.UnitsTotal,
			"units_changed":      preview.UnitsChanged,
			"replacements_total": preview.ReplacementsTotal,
		},
		"examples":  preview.Examples,
		"fts_stale": false,
	})
}

// ==================== Segmentation & metadata ====================

func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID *int64 `json:"doc_id"`
		Lang  string `json:"lang"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.DocID == nil {
		writeBadRequest(w, "doc_id is required")
		return
	}

	result, err := s.engine.Segment(r.Context(), *req.DocID, req.Lang)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"run_id":        result.RunID,
		"fts_stale":     result.FTSStale,
		"doc_id":        result.Report.DocID,
		"units_input":   result.Report.UnitsInput,
		"units_output":  result.Report.UnitsOutput,
		"links_dropped": result.Report.LinksDropped,
		"warnings":      result.Report.Warnings,
	})
}

func (s *Server) handleValidateMeta(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocID *int64 `json:"doc_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	results, err := s.engine.ValidateMeta(r.Context(), req.DocID)
	if err != nil {
		writeErr(w, err)
		return
	}

	status := "ok"
	for _, res := range results {
		if !res.IsValid {
			status = "warnings"
			break
		}
	}
	writeJSON(w, http.StatusOK, successPayload(map[string]any{
		"docs_validated": len(results),
		"results":        results,
	}, status))
}

// ==================== Alignment ====================

type alignRequest struct {
	PivotDocID   *int64   `json:"pivot_doc_id"`
	TargetDocIDs []int64  `json:"target_doc_ids"`
	Strategy     string   `json:"strategy"`
	SimThreshold *float64 `json:"sim_threshold"`
	DebugAlign   bool     `json:"debug_align"`
	RunID        string   `json:"run_id"`
}

func (s *Server) handleAlign(w http.ResponseWriter, r *http.Request) {
	var req alignRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.PivotDocID == nil || len(req.TargetDocIDs) == 0 {
		writeBadRequest(w, "pivot_doc_id and target_doc_ids (non-empty list) are required")
		return
	}

	strategy := domain.AlignStrategy(req.Strategy)
	if req.Strategy == "" {
		strategy = domain.AlignExternalID
	}
	if !domain.ValidAlignStrategy(strategy) {
		writeValidation(w, fmt.Sprintf("Unsupported align strategy: %q", req.Strategy),
			map[string]any{"supported_strategies": []string{
				string(domain.AlignExternalID), string(domain.AlignExternalIDThenPosition),
				string(domain.AlignPosition), string(domain.AlignSimilarity),
			}})
		return
	}

	alignReq := services.AlignRequest{
		PivotDocID:   *req.PivotDocID,
		TargetDocIDs: req.TargetDocIDs,
		Strategy:     strategy,
		Debug:        req.DebugAlign,
	}
	if req.SimThreshold != nil {
		alignReq.SimThreshold = *req.SimThreshold
	}

	result, err := s.engine.Align(r.Context(), alignReq, strings.TrimSpace(req.RunID))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"run_id":              result.RunID,
		"strategy":            string(result.Strategy),
		"pivot_doc_id":        result.PivotDocID,
		"debug_align":         result.DebugAlign,
		"total_links_created": result.TotalLinksCreated,
		"reports":             result.Reports,
	})
}

func (s *Server) handleAlignAudit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PivotDocID  *int64  `json:"pivot_doc_id"`
		TargetDocID *int64  `json:"target_doc_id"`
		ExternalID  *int64  `json:"external_id"`
		Status      *string `json:"status"`
		Limit       int     `json:"limit"`
		Offset      int     `json:"offset"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.PivotDocID == nil || req.TargetDocID == nil {
		writeBadRequest(w, "pivot_doc_id and target_doc_id are required")
		return
	}
	if req.Limit == 0 {
		req.Limit = domain.DefaultQueryLimit
	}

	filter := domain.AuditFilter{
		PivotDocID:  *req.PivotDocID,
		TargetDocID: *req.TargetDocID,
		ExternalID:  req.ExternalID,
		Status:      req.Status,
		Limit:       req.Limit,
		Offset:      req.Offset,
	}
	links, hasMore, err := s.engine.AuditLinks(r.Context(), filter)
	if err != nil {
		writeErr(w, err)
		return
	}
	if links == nil {
		links = []domain.AuditRow{}
	}

	var nextOffset *int
	if hasMore {
		next := req.Offset + req.Limit
		nextOffset = &next
	}
	writeOK(w, map[string]any{
		"pivot_doc_id":  *req.PivotDocID,
		"target_doc_id": *req.TargetDocID,
		"limit":         req.Limit,
		"offset":        req.Offset,
		"has_more":      hasMore,
		"next_offset":   nextOffset,
		"stats":         map[string]any{"links_returned": len(links)},
		"links":         links,
	})
}

func (s *Server) handleAlignQuality(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PivotDocID  *int64 `json:"pivot_doc_id"`
		TargetDocID *int64 `json:"target_doc_id"`
		RunID       string `json:"run_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.PivotDocID == nil || req.TargetDocID == nil {
		writeBadRequest(w, "pivot_doc_id and target_doc_id are required")
		return
	}

	report, err := s.engine.AlignQuality(r.Context(), *req.PivotDocID, *req.TargetDocID, req.RunID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"pivot_doc_id":         report.PivotDocID,
		"target_doc_id":        report.TargetDocID,
		"run_id":               report.RunID,
		"stats":                report.Stats,
		"sample_orphan_pivot":  report.SampleOrphanPivot,
		"sample_orphan_target": report.SampleOrphanTarget,
	})
}

func (s *Server) handleLinkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID *int64  `json:"link_id"`
		Status *string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.LinkID == nil {
		writeBadRequest(w, "link_id is required")
		return
	}

	if err := s.engine.UpdateLinkStatus(r.Context(), *req.LinkID, req.Status); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"link_id": *req.LinkID, "status": req.Status, "updated": 1})
}

func (s *Server) handleLinkDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID *int64 `json:"link_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.LinkID == nil {
		writeBadRequest(w, "link_id is required")
		return
	}

	deleted, err := s.engine.DeleteLink(r.Context(), *req.LinkID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{"link_id": *req.LinkID, "deleted": deleted})
}

func (s *Server) handleLinkRetarget(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkID          *int64 `json:"link_id"`
		NewTargetUnitID *int64 `json:"new_target_unit_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.LinkID == nil || req.NewTargetUnitID == nil {
		writeBadRequest(w, "link_id and new_target_unit_id are required")
		return
	}

	if err := s.engine.RetargetLink(r.Context(), *req.LinkID, *req.NewTargetUnitID); err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"link_id": *req.LinkID, "new_target_unit_id": *req.NewTargetUnitID, "updated": 1,
	})
}

// ==================== Exports ====================

func (s *Server) handleExportTEI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutDir           string  `json:"out_dir"`
		DocIDs           []int64 `json:"doc_ids"`
		IncludeStructure bool    `json:"include_structure"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.OutDir == "" {
		writeBadRequest(w, "out_dir is required")
		return
	}
	if !localPath(req.OutDir) {
		writeValidation(w, "out_dir must be a local path", nil)
		return
	}

	result, err := s.engine.ExportTEI(r.Context(), req.OutDir, req.DocIDs, req.IncludeStructure, nil)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"run_id": result.RunID, "files_created": result.FilesCreated, "count": result.Count,
	})
}

func (s *Server) handleExportAlignCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutPath     string `json:"out_path"`
		PivotDocID  *int64 `json:"pivot_doc_id"`
		TargetDocID *int64 `json:"target_doc_id"`
		ExternalID  *int64 `json:"external_id"`
		Delimiter   string `json:"delimiter"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.OutPath == "" {
		writeBadRequest(w, "out_path is required")
		return
	}
	if !localPath(req.OutPath) {
		writeValidation(w, "out_path must be a local path", nil)
		return
	}

	delimiter := ','
	if req.Delimiter == "\t" {
		delimiter = '\t'
	}
	filter := domain.AlignExportFilter{
		PivotDocID:  req.PivotDocID,
		TargetDocID: req.TargetDocID,
		ExternalID:  req.ExternalID,
	}
	result, err := s.engine.ExportAlignCSV(r.Context(), filter, req.OutPath, delimiter)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"run_id": result.RunID, "out_path": result.OutPath, "rows_written": result.RowsWritten,
	})
}

func (s *Server) handleExportRunReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OutPath string `json:"out_path"`
		Format  string `json:"format"`
		RunID   string `json:"run_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if req.OutPath == "" {
		writeBadRequest(w, "out_path is required")
		return
	}
	if !localPath(req.OutPath) {
		writeValidation(w, "out_path must be a local path", nil)
		return
	}

	result, err := s.engine.ExportRunReport(r.Context(), req.RunID, req.OutPath, req.Format)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeOK(w, map[string]any{
		"out_path": result.OutPath, "runs_exported": result.RunsExported, "format": result.Format,
	})
}

// localPath rejects URL-shaped destinations; exports write to the local
// filesystem only.
func localPath(path string) bool {
	return !strings.Contains(path, "://")
}

// ==================== Shutdown ====================

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"message": "Shutdown requested", "shutting_down": true})
	go s.requestShutdown()
}
