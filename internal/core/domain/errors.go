package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates a request parameter failed validation
	// (out-of-range number, unknown enumerant, invalid regex).
	ErrValidation = errors.New("validation error")

	// ErrUnauthorized indicates a write operation was attempted without a
	// valid sidecar token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrQuerySyntax indicates the full-text query could not be parsed by
	// the index engine.
	ErrQuerySyntax = errors.New("malformed query")

	// ErrAlreadyRunning indicates another sidecar already serves this
	// database (live portfile).
	ErrAlreadyRunning = errors.New("sidecar already running")

	// ErrJobCanceled indicates a job observed its cancel flag and aborted.
	ErrJobCanceled = errors.New("job canceled")
)
