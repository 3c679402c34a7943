package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/version"
)

// APIVersion is the contract version carried in every response.
const APIVersion = "1.0.0"

// Error code catalog (stable machine-readable values).
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeValidation   = "VALIDATION_ERROR"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// errorBody is the nested error object of the failure envelope.
type errorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// successPayload builds a success envelope. Extra fields merge at the top
// level; the envelope shape is contractually frozen — fields are only ever
// added, never removed.
func successPayload(data map[string]any, status string) map[string]any {
	payload := map[string]any{
		"ok":          true,
		"api_version": APIVersion,
		"version":     version.Version,
		"status":      status,
	}
	for k, v := range data {
		payload[k] = v
	}
	return payload
}

// errorPayload builds a failure envelope.
func errorPayload(message, code string, details any) map[string]any {
	payload := map[string]any{
		"ok":          false,
		"api_version": APIVersion,
		"version":     version.Version,
		"status":      "error",
		"error": errorBody{
			Type:    code,
			Message: message,
			Details: details,
		},
		"error_code": code,
	}
	if details != nil {
		payload["error_details"] = details
	}
	return payload
}

// writeJSON serializes one JSON object response.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"ok":false,"status":"error","error_code":"INTERNAL_ERROR"}`,
			http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body) //nolint:errcheck
}

// writeOK writes a success envelope with status "ok".
func writeOK(w http.ResponseWriter, data map[string]any) {
	writeJSON(w, http.StatusOK, successPayload(data, "ok"))
}

// writeErr maps a domain error to its HTTP status and error code, then
// writes the failure envelope.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized,
			errorPayload(err.Error(), ErrCodeUnauthorized, nil))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound,
			errorPayload(err.Error(), ErrCodeNotFound, nil))
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrQuerySyntax):
		writeJSON(w, http.StatusBadRequest,
			errorPayload(err.Error(), ErrCodeValidation, nil))
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest,
			errorPayload(err.Error(), ErrCodeBadRequest, nil))
	default:
		writeJSON(w, http.StatusInternalServerError,
			errorPayload(err.Error(), ErrCodeInternal, nil))
	}
}

// writeBadRequest writes a 400 with the BAD_REQUEST code.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorPayload(message, ErrCodeBadRequest, nil))
}

// writeValidation writes a 400 with the VALIDATION_ERROR code.
func writeValidation(w http.ResponseWriter, message string, details any) {
	writeJSON(w, http.StatusBadRequest, errorPayload(message, ErrCodeValidation, details))
}

// writeNotFound writes a 404.
func writeNotFound(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusNotFound, errorPayload(message, ErrCodeNotFound, nil))
}
