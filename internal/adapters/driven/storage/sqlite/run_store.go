package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// CreateRun inserts a run row with the caller-supplied identity.
func (s *runStore) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}

	paramsJSON, err := marshalMeta(run.Params)
	if err != nil {
		return err
	}

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = parseTime(utcNow())
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, kind, params_json, stats_json, created_at)
		VALUES (?, ?, ?, NULL, ?)
	`, run.ID, string(run.Kind), paramsJSON, createdAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	run.CreatedAt = createdAt
	return nil
}

// UpdateRunStats fills the stats object of an existing run.
func (s *runStore) UpdateRunStats(ctx context.Context, runID string, stats map[string]any) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshalling stats: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx,
		"UPDATE runs SET stats_json = ? WHERE run_id = ?", string(statsJSON), runID)
	if err != nil {
		return fmt.Errorf("updating run stats: %w", err)
	}
	return nil
}

// ListRuns returns runs ordered by creation time, optionally one identity.
func (s *runStore) ListRuns(ctx context.Context, runID string) ([]domain.Run, error) {
	query := "SELECT run_id, kind, params_json, stats_json, created_at FROM runs"
	var args []any
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY created_at, run_id"

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run //nolint:prealloc // size unknown from query
	for rows.Next() {
		var run domain.Run
		var kind, createdAt string
		var paramsJSON, statsJSON sql.NullString
		if err := rows.Scan(&run.ID, &kind, &paramsJSON, &statsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		run.Kind = domain.RunKind(kind)
		run.CreatedAt = parseTime(createdAt)

		params, err := unmarshalMeta(paramsJSON)
		if err != nil {
			return nil, err
		}
		run.Params = params

		stats, err := unmarshalMeta(statsJSON)
		if err != nil {
			return nil, err
		}
		run.Stats = stats

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}
