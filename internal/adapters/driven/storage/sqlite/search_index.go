package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// searchIndex implements driven.SearchIndex on the fts_units FTS5 table.
type searchIndex struct {
	store *Store
}

var _ driven.SearchIndex = (*searchIndex)(nil)

// Rebuild clears the FTS table and repopulates it from line units. rowid is
// set to unit_id so search hits join back to units directly.
func (s *searchIndex) Rebuild(ctx context.Context) (int64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// fts_units is a regular (non-content) FTS5 table, so DELETE FROM works.
	if _, err := tx.ExecContext(ctx, "DELETE FROM fts_units"); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO fts_units(rowid, text_norm)
		SELECT unit_id, text_norm
		FROM units
		WHERE unit_type = 'line'
	`); err != nil {
		return 0, fmt.Errorf("populating index: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	var count int64
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM units WHERE unit_type = 'line'").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting line units: %w", err)
	}
	return count, nil
}

// Search runs an FTS5 MATCH and returns matching rows joined to their units
// and documents, ordered by (doc_id, n).
func (s *searchIndex) Search(
	ctx context.Context, q string, filter domain.IndexFilter, limit, offset int,
) ([]domain.IndexRow, error) {
	where := "u.unit_type = 'line'"
	params := []any{q}

	if filter.Language != "" {
		where += " AND d.language = ?"
		params = append(params, filter.Language)
	}
	if filter.DocID != nil {
		where += " AND u.doc_id = ?"
		params = append(params, *filter.DocID)
	}
	if filter.ResourceType != "" {
		where += " AND d.resource_type = ?"
		params = append(params, filter.ResourceType)
	}
	if filter.DocRole != "" {
		where += " AND d.doc_role = ?"
		params = append(params, filter.DocRole)
	}

	query := `
		SELECT u.unit_id, u.doc_id, u.external_id, u.text_norm, u.text_raw,
		       d.language, d.title
		FROM fts_units f
		JOIN units u ON u.unit_id = f.rowid
		JOIN documents d ON d.doc_id = u.doc_id
		WHERE fts_units MATCH ?
		  AND ` + where + `
		ORDER BY u.doc_id, u.n
	`
	if limit > 0 {
		query += "\nLIMIT ? OFFSET ?"
		params = append(params, limit, offset)
	} else if offset > 0 {
		query += "\nLIMIT -1 OFFSET ?"
		params = append(params, offset)
	}

	rows, err := s.store.db.QueryContext(ctx, query, params...)
	if err != nil {
		if isQuerySyntaxError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrQuerySyntax, err)
		}
		return nil, fmt.Errorf("running FTS query: %w", err)
	}
	defer rows.Close()

	var out []domain.IndexRow //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.IndexRow
		var externalID sql.NullInt64
		if err := rows.Scan(&r.UnitID, &r.DocID, &externalID, &r.TextNorm,
			&r.TextRaw, &r.Language, &r.Title); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		r.ExternalID = scanNullInt64(externalID)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		if isQuerySyntaxError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrQuerySyntax, err)
		}
		return nil, fmt.Errorf("iterating hits: %w", err)
	}

	return out, nil
}

// isQuerySyntaxError recognises FTS5 parse failures so they surface as
// validation errors instead of internal ones.
func isQuerySyntaxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "fts5") ||
		strings.Contains(msg, "syntax error") ||
		strings.Contains(msg, "malformed MATCH") ||
		strings.Contains(msg, "unterminated string")
}
