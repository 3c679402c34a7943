package httpapi

import (
	"strings"

	"github.com/custodia-labs/agrafes/internal/version"
)

// openAPISpec returns the machine-readable contract snapshot. Paths are
// generated from the Routes table, so the published spec and the snapshot
// test can never drift apart.
func openAPISpec() map[string]any {
	paths := map[string]any{}
	for _, route := range Routes {
		entry, _ := paths[route.Path].(map[string]any)
		if entry == nil {
			entry = map[string]any{}
		}

		operation := map[string]any{
			"summary": routeSummary(route),
			"responses": map[string]any{
				"200": map[string]any{
					"description": "Success envelope",
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/SuccessEnvelope"},
						},
					},
				},
				"400": errorResponse("Bad request"),
				"500": errorResponse("Internal error"),
			},
		}
		if route.Write {
			operation["security"] = []map[string]any{{"sidecarToken": map[string]any{}}}
			responses := operation["responses"].(map[string]any)
			responses["401"] = errorResponse("Unauthorized")
		}

		entry[strings.ToLower(route.Method)] = operation
		paths[route.Path] = entry
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":       "Agrafes sidecar API",
			"version":     APIVersion,
			"description": "Localhost HTTP API for corpus import/index/query/align/curate/segment/export.",
			"x-engine":    version.Version,
		},
		"servers": []map[string]any{{"url": "http://127.0.0.1:8765"}},
		"paths":   paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"sidecarToken": map[string]any{
					"type": "apiKey",
					"in":   "header",
					"name": TokenHeader,
				},
			},
			"schemas": map[string]any{
				"SuccessEnvelope": map[string]any{
					"type":     "object",
					"required": []string{"ok", "api_version", "version", "status"},
					"properties": map[string]any{
						"ok":          map[string]any{"type": "boolean"},
						"api_version": map[string]any{"type": "string"},
						"version":     map[string]any{"type": "string"},
						"status":      map[string]any{"type": "string"},
					},
				},
				"ErrorEnvelope": map[string]any{
					"type":     "object",
					"required": []string{"ok", "api_version", "version", "status", "error", "error_code"},
					"properties": map[string]any{
						"ok":          map[string]any{"type": "boolean"},
						"api_version": map[string]any{"type": "string"},
						"version":     map[string]any{"type": "string"},
						"status":      map[string]any{"type": "string"},
						"error": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"type":    map[string]any{"type": "string"},
								"message": map[string]any{"type": "string"},
								"details": map[string]any{},
							},
						},
						"error_code":    map[string]any{"type": "string"},
						"error_details": map[string]any{},
					},
				},
			},
		},
	}
}

func errorResponse(description string) map[string]any {
	return map[string]any{
		"description": description,
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{"$ref": "#/components/schemas/ErrorEnvelope"},
			},
		},
	}
}

func routeSummary(route Route) string {
	switch route.Path {
	case "/health":
		return "Health check"
	case "/openapi.json":
		return "OpenAPI contract"
	case "/documents":
		return "List documents with unit counts"
	case "/doc_relations":
		return "List typed document relations"
	case "/query":
		return "Run a segment or KWIC query"
	case "/import":
		return "Ingest a source file"
	case "/index":
		return "Rebuild the FTS index"
	case "/curate":
		return "Apply curation rules"
	case "/curate/preview":
		return "Dry-run curation preview"
	case "/segment":
		return "Resegment a document"
	case "/align":
		return "Run alignment"
	case "/align/audit":
		return "Paginated link listing"
	case "/align/quality":
		return "Alignment quality metrics"
	case "/align/link/update_status":
		return "Accept/reject/clear a link"
	case "/align/link/delete":
		return "Delete a link"
	case "/align/link/retarget":
		return "Retarget a link"
	case "/documents/update":
		return "Update document metadata"
	case "/documents/bulk_update":
		return "Update metadata of many documents"
	case "/doc_relations/set":
		return "Upsert a document relation"
	case "/doc_relations/delete":
		return "Delete a document relation"
	case "/validate-meta":
		return "Validate document metadata"
	case "/export/tei":
		return "Export documents as XML"
	case "/export/align_csv":
		return "Export alignment links as CSV/TSV"
	case "/export/run_report":
		return "Export the run log"
	case "/jobs":
		return "List jobs"
	case "/jobs/{id}":
		return "Fetch one job"
	case "/jobs/enqueue":
		return "Enqueue an async job"
	case "/jobs/{id}/cancel":
		return "Cancel a job"
	case "/shutdown":
		return "Graceful shutdown"
	}
	return route.Path
}
