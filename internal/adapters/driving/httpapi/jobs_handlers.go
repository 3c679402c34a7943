package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

func (s *Server) handleJobsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.JobStatus(q.Get("status"))

	limit := 100
	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	page, total, hasMore := s.jobs.List(status, limit, offset)
	if page == nil {
		page = []domain.Job{}
	}

	var nextOffset *int
	if hasMore {
		next := offset + limit
		nextOffset = &next
	}
	writeOK(w, map[string]any{
		"jobs":        page,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
		"has_more":    hasMore,
		"next_offset": nextOffset,
	})
}

type enqueueRequest struct {
	Kind   string         `json:"kind"`
	Params map[string]any `json:"params"`
}

func (s *Server) handleJobsEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decodeBody(r, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.Kind) == "" {
		writeValidation(w, "kind is required and must be a string", nil)
		return
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	kind := domain.JobKind(req.Kind)
	if !domain.ValidJobKind(kind) {
		writeValidation(w, fmt.Sprintf("Unsupported job kind: %q", req.Kind),
			map[string]any{"supported_kinds": supportedJobKinds()})
		return
	}

	if err := validateJobParams(kind, req.Params); err != nil {
		writeValidation(w, err.Error(), nil)
		return
	}

	job, err := s.jobs.Submit(kind, req.Params)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted,
		successPayload(map[string]any{"job": job}, "accepted"))
}

// handleJobsSubtree dispatches GET /jobs/{id} and POST /jobs/{id}/cancel.
func (s *Server) handleJobsSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
		s.handleJobGet(w, parts[0])
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		if !s.checkToken(w, r) {
			return
		}
		s.handleJobCancel(w, parts[0])
	default:
		writeNotFound(w, fmt.Sprintf("Unknown route: %s %s", r.Method, r.URL.Path))
	}
}

func (s *Server) handleJobGet(w http.ResponseWriter, jobID string) {
	job, ok := s.jobs.Get(jobID)
	if !ok {
		writeNotFound(w, fmt.Sprintf("Unknown job_id: %s", jobID))
		return
	}
	writeOK(w, map[string]any{"job": job})
}

func (s *Server) handleJobCancel(w http.ResponseWriter, jobID string) {
	status, ok := s.jobs.Cancel(jobID)
	if !ok {
		writeNotFound(w, fmt.Sprintf("Unknown job_id: %s", jobID))
		return
	}
	writeOK(w, map[string]any{"job_id": jobID, "status": string(status)})
}

func supportedJobKinds() []string {
	return []string{
		string(domain.JobAlign), string(domain.JobCurate),
		string(domain.JobExportAlignCSV), string(domain.JobExportRunReport),
		string(domain.JobExportTEI), string(domain.JobImport),
		string(domain.JobIndex), string(domain.JobSegment),
		string(domain.JobValidateMeta),
	}
}

// validateJobParams checks the per-kind parameter shape before the job is
// accepted. Deep validation happens again inside the runner; this gate gives
// collaborators an immediate 400 instead of a failed job.
func validateJobParams(kind domain.JobKind, params map[string]any) error {
	switch kind {
	case domain.JobImport:
		if stringParam(params, "mode") == "" || stringParam(params, "path") == "" {
			return fmt.Errorf("import job requires params.mode and params.path")
		}
	case domain.JobCurate:
		if _, ok := params["rules"].([]any); !ok {
			return fmt.Errorf("curate job requires params.rules (array)")
		}
	case domain.JobSegment:
		if _, ok := intParam(params, "doc_id"); !ok {
			return fmt.Errorf("segment job requires params.doc_id (integer)")
		}
	case domain.JobValidateMeta:
		if _, present := params["doc_id"]; present {
			if _, ok := intParam(params, "doc_id"); !ok {
				return fmt.Errorf("validate-meta params.doc_id must be an integer")
			}
		}
	case domain.JobAlign:
		if _, ok := intParam(params, "pivot_doc_id"); !ok {
			return fmt.Errorf("align job requires params.pivot_doc_id and params.target_doc_ids")
		}
		targets, ok := int64SliceParam(params, "target_doc_ids")
		if !ok || len(targets) == 0 {
			return fmt.Errorf("align job requires params.pivot_doc_id and params.target_doc_ids")
		}
		strategy := stringParam(params, "strategy")
		if strategy != "" && !domain.ValidAlignStrategy(domain.AlignStrategy(strategy)) {
			return fmt.Errorf("unsupported align strategy: %q", strategy)
		}
		if raw, present := params["sim_threshold"]; present {
			threshold, ok := raw.(float64)
			if !ok || threshold < 0 || threshold > 1 {
				return fmt.Errorf("align params.sim_threshold must be a number in [0.0, 1.0]")
			}
		}
	case domain.JobExportTEI:
		if stringParam(params, "out_dir") == "" {
			return fmt.Errorf("export_tei job requires params.out_dir")
		}
	case domain.JobExportAlignCSV, domain.JobExportRunReport:
		if stringParam(params, "out_path") == "" {
			return fmt.Errorf("%s job requires params.out_path", kind)
		}
	}
	return nil
}

// stringParam fetches a string parameter, "" when absent or mistyped.
func stringParam(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

// intParam fetches an integer parameter. JSON numbers arrive as float64.
func intParam(params map[string]any, key string) (int64, bool) {
	switch v := params[key].(type) {
	case float64:
		return int64(v), v == float64(int64(v))
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}

// int64SliceParam fetches an integer-array parameter.
func int64SliceParam(params map[string]any, key string) ([]int64, bool) {
	raw, ok := params[key].([]any)
	if !ok {
		return nil, false
	}
	out := make([]int64, 0, len(raw))
	for _, item := range raw {
		f, ok := item.(float64)
		if !ok {
			return nil, false
		}
		out = append(out, int64(f))
	}
	return out, true
}
