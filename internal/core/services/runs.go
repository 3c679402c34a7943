package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// RunService writes the append-only run log and opens per-run file sinks.
type RunService struct {
	store  driven.RunStore
	dbPath string
}

// NewRunService creates a run service. dbPath locates the runs/ directory
// for file sinks.
func NewRunService(store driven.RunStore, dbPath string) *RunService {
	return &RunService{store: store, dbPath: dbPath}
}

// Create inserts a run row. runID may be empty, in which case a fresh UUID
// is assigned.
func (s *RunService) Create(
	ctx context.Context, kind domain.RunKind, params map[string]any, runID string,
) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		runID = uuid.New().String()
	}

	run := &domain.Run{ID: runID, Kind: kind, Params: params}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return runID, nil
}

// UpdateStats fills the stats object of an existing run.
func (s *RunService) UpdateStats(ctx context.Context, runID string, stats map[string]any) error {
	return s.store.UpdateRunStats(ctx, runID, stats)
}

// List returns runs, optionally filtered to one identity.
func (s *RunService) List(ctx context.Context, runID string) ([]domain.Run, error) {
	return s.store.ListRuns(ctx, runID)
}

// OpenLog opens the file sink for a run. Failures degrade to a no-op sink:
// the run log file is a convenience, never a reason to fail the operation.
func (s *RunService) OpenLog(runID string) *logger.RunLog {
	log, err := logger.NewRunLog(s.dbPath, runID)
	if err != nil {
		logger.Warn("run %s: could not open log file: %v", runID, err)
		return nil
	}
	return log
}
