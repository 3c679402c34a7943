package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// unitStore implements driven.UnitStore.
type unitStore struct {
	store *Store
}

var _ driven.UnitStore = (*unitStore)(nil)

const unitColumns = "unit_id, doc_id, unit_type, n, external_id, text_raw, text_norm, meta_json"

// Unit retrieves one unit by identity.
func (s *unitStore) Unit(ctx context.Context, unitID int64) (*domain.Unit, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+unitColumns+" FROM units WHERE unit_id = ?", unitID)

	unit, err := scanUnitRow(row)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

// LineUnits returns the line units of a document ordered by n.
func (s *unitStore) LineUnits(ctx context.Context, docID int64) ([]domain.Unit, error) {
	return s.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE doc_id = ? AND unit_type = 'line' ORDER BY n",
		docID)
}

// DocUnits returns every unit of a document ordered by n.
func (s *unitStore) DocUnits(ctx context.Context, docID int64) ([]domain.Unit, error) {
	return s.queryUnits(ctx,
		"SELECT "+unitColumns+" FROM units WHERE doc_id = ? ORDER BY n",
		docID)
}

func (s *unitStore) queryUnits(ctx context.Context, query string, args ...any) ([]domain.Unit, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var units []domain.Unit //nolint:prealloc // size unknown from query
	for rows.Next() {
		unit, err := scanUnitRows(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *unit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}

	return units, nil
}

// UpdateTextNorm rewrites text_norm for the given units in one transaction.
func (s *unitStore) UpdateTextNorm(ctx context.Context, updates []domain.TextNormUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, "UPDATE units SET text_norm = ? WHERE unit_id = ?")
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.TextNorm, u.UnitID); err != nil {
			return fmt.Errorf("updating unit %d: %w", u.UnitID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ReplaceLineUnits swaps the line-unit set of one document in a single
// transaction. Alignment links touching the document are dropped first so the
// foreign keys never dangle.
func (s *unitStore) ReplaceLineUnits(
	ctx context.Context, docID int64, units []domain.NewUnit,
) (int64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		"DELETE FROM alignment_links WHERE pivot_doc_id = ? OR target_doc_id = ?",
		docID, docID)
	if err != nil {
		return 0, fmt.Errorf("dropping alignment links: %w", err)
	}
	linksDropped, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM units WHERE doc_id = ? AND unit_type = 'line'", docID); err != nil {
		return 0, fmt.Errorf("deleting line units: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (doc_id, unit_type, n, external_id, text_raw, text_norm, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing unit insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		unitMeta, err := marshalMeta(u.Metadata)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, docID, string(u.Kind), u.N,
			nullInt64(u.ExternalID), u.TextRaw, u.TextNorm, unitMeta); err != nil {
			return 0, fmt.Errorf("inserting unit n=%d: %w", u.N, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return linksDropped, nil
}

// scanUnitRow scans a unit from *sql.Row.
func scanUnitRow(row *sql.Row) (*domain.Unit, error) {
	var unit domain.Unit
	var kind string
	var externalID sql.NullInt64
	var metaJSON sql.NullString

	if err := row.Scan(&unit.ID, &unit.DocID, &kind, &unit.N, &externalID,
		&unit.TextRaw, &unit.TextNorm, &metaJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning unit: %w", err)
	}

	unit.Kind = domain.UnitKind(kind)
	unit.ExternalID = scanNullInt64(externalID)

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, err
	}
	unit.Metadata = meta

	return &unit, nil
}

// scanUnitRows scans a unit from *sql.Rows.
func scanUnitRows(rows *sql.Rows) (*domain.Unit, error) {
	var unit domain.Unit
	var kind string
	var externalID sql.NullInt64
	var metaJSON sql.NullString

	if err := rows.Scan(&unit.ID, &unit.DocID, &kind, &unit.N, &externalID,
		&unit.TextRaw, &unit.TextNorm, &metaJSON); err != nil {
		return nil, fmt.Errorf("scanning unit: %w", err)
	}

	unit.Kind = domain.UnitKind(kind)
	unit.ExternalID = scanNullInt64(externalID)

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, err
	}
	unit.Metadata = meta

	return &unit, nil
}
