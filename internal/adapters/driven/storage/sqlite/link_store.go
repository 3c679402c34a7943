package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// linkStore implements driven.LinkStore.
type linkStore struct {
	store *Store
}

var _ driven.LinkStore = (*linkStore)(nil)

// InsertLinks writes one link set for a (pivot, target) pair in a single
// transaction, tagged with the producing run identity.
func (s *linkStore) InsertLinks(
	ctx context.Context, runID string, pivotDocID, targetDocID int64, links []domain.NewLink,
) error {
	if len(links) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO alignment_links
			(run_id, pivot_unit_id, target_unit_id, external_id,
			 pivot_doc_id, target_doc_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing link insert: %w", err)
	}
	defer stmt.Close()

	now := utcNow()
	for _, l := range links {
		if _, err := stmt.ExecContext(ctx, runID, l.PivotUnitID, l.TargetUnitID,
			nullInt64(l.ExternalID), pivotDocID, targetDocID, now); err != nil {
			return fmt.Errorf("inserting link: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// AuditPage returns one page of audit rows with limit+1 lookahead.
func (s *linkStore) AuditPage(
	ctx context.Context, f domain.AuditFilter,
) ([]domain.AuditRow, bool, error) {
	where := "al.pivot_doc_id = ? AND al.target_doc_id = ?"
	params := []any{f.PivotDocID, f.TargetDocID}

	if f.ExternalID != nil {
		where += " AND al.external_id = ?"
		params = append(params, *f.ExternalID)
	}
	if f.Status != nil {
		switch *f.Status {
		case "unreviewed":
			where += " AND al.status IS NULL"
		case domain.LinkAccepted, domain.LinkRejected:
			where += " AND al.status = ?"
			params = append(params, *f.Status)
		}
	}

	params = append(params, f.Limit+1, f.Offset)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT al.link_id, al.external_id, al.pivot_unit_id, al.target_unit_id,
		       pu.text_norm AS pivot_text, tu.text_norm AS target_text,
		       al.status
		FROM alignment_links al
		JOIN units pu ON pu.unit_id = al.pivot_unit_id
		JOIN units tu ON tu.unit_id = al.target_unit_id
		WHERE `+where+`
		ORDER BY al.external_id, al.link_id
		LIMIT ? OFFSET ?
	`, params...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit page: %w", err)
	}
	defer rows.Close()

	var page []domain.AuditRow //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.AuditRow
		var externalID sql.NullInt64
		var status sql.NullString
		if err := rows.Scan(&r.LinkID, &externalID, &r.PivotUnitID, &r.TargetUnitID,
			&r.PivotText, &r.TargetText, &status); err != nil {
			return nil, false, fmt.Errorf("scanning audit row: %w", err)
		}
		r.ExternalID = scanNullInt64(externalID)
		r.Status = scanNullString(status)
		page = append(page, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating audit rows: %w", err)
	}

	hasMore := len(page) > f.Limit
	if hasMore {
		page = page[:f.Limit]
	}
	return page, hasMore, nil
}

// UpdateLinkStatus sets the review status of one link. Idempotent.
func (s *linkStore) UpdateLinkStatus(ctx context.Context, linkID int64, status *string) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE alignment_links SET status = ? WHERE link_id = ?",
		nullString(status), linkID)
	if err != nil {
		return fmt.Errorf("updating link status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteLink removes one link by identity.
func (s *linkStore) DeleteLink(ctx context.Context, linkID int64) (int64, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM alignment_links WHERE link_id = ?", linkID)
	if err != nil {
		return 0, fmt.Errorf("deleting link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected, nil
}

// RetargetLink points an existing link at a new target unit. The new target
// must exist and be of kind line.
func (s *linkStore) RetargetLink(ctx context.Context, linkID, newTargetUnitID int64) error {
	var kind string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT unit_type FROM units WHERE unit_id = ?", newTargetUnitID).Scan(&kind)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("target unit %d: %w", newTargetUnitID, domain.ErrNotFound)
		}
		return fmt.Errorf("checking target unit: %w", err)
	}
	if kind != string(domain.UnitLine) {
		return fmt.Errorf("target unit %d is not a line unit: %w", newTargetUnitID, domain.ErrValidation)
	}

	res, err := s.store.db.ExecContext(ctx,
		"UPDATE alignment_links SET target_unit_id = ? WHERE link_id = ?",
		newTargetUnitID, linkID)
	if err != nil {
		return fmt.Errorf("retargeting link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("link %d: %w", linkID, domain.ErrNotFound)
	}
	return nil
}

// Quality computes the coverage metrics for one pivot↔target pair.
func (s *linkStore) Quality(
	ctx context.Context, pivotDocID, targetDocID int64, runID string,
) (*domain.QualityReport, error) {
	linkWhere := "al.pivot_doc_id = ? AND al.target_doc_id = ?"
	linkParams := []any{pivotDocID, targetDocID}
	if runID != "" {
		linkWhere += " AND al.run_id = ?"
		linkParams = append(linkParams, runID)
	}

	report := &domain.QualityReport{
		PivotDocID:  pivotDocID,
		TargetDocID: targetDocID,
		RunID:       runID,
	}
	stats := &report.Stats

	var unreviewed, accepted, rejected sql.NullInt64
	err := s.store.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*)                          AS total_links,
			COUNT(DISTINCT al.pivot_unit_id)  AS covered_pivot,
			COUNT(DISTINCT al.target_unit_id) AS covered_target,
			SUM(CASE WHEN al.status IS NULL      THEN 1 ELSE 0 END),
			SUM(CASE WHEN al.status = 'accepted' THEN 1 ELSE 0 END),
			SUM(CASE WHEN al.status = 'rejected' THEN 1 ELSE 0 END)
		FROM alignment_links al
		WHERE `+linkWhere,
		linkParams...,
	).Scan(&stats.TotalLinks, &stats.CoveredPivotUnits, &stats.CoveredTargetUnits,
		&unreviewed, &accepted, &rejected)
	if err != nil {
		return nil, fmt.Errorf("aggregating links: %w", err)
	}
	stats.StatusCounts = map[string]int64{
		"unreviewed": unreviewed.Int64,
		"accepted":   accepted.Int64,
		"rejected":   rejected.Int64,
	}

	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM units WHERE doc_id = ? AND unit_type = 'line'",
		pivotDocID).Scan(&stats.TotalPivotUnits); err != nil {
		return nil, fmt.Errorf("counting pivot units: %w", err)
	}
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM units WHERE doc_id = ? AND unit_type = 'line'",
		targetDocID).Scan(&stats.TotalTargetUnits); err != nil {
		return nil, fmt.Errorf("counting target units: %w", err)
	}

	if stats.TotalPivotUnits > 0 {
		pct := float64(stats.CoveredPivotUnits) / float64(stats.TotalPivotUnits) * 100
		stats.CoveragePct = float64(int64(pct*100+0.5)) / 100
	}
	stats.OrphanPivotCount = stats.TotalPivotUnits - stats.CoveredPivotUnits
	stats.OrphanTargetCount = stats.TotalTargetUnits - stats.CoveredTargetUnits

	// Collisions: pivot units appearing in more than one link for this pair.
	if err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM (
			SELECT pivot_unit_id
			FROM alignment_links al
			WHERE `+linkWhere+`
			GROUP BY pivot_unit_id
			HAVING COUNT(*) > 1
		)
	`, linkParams...).Scan(&stats.CollisionCount); err != nil {
		return nil, fmt.Errorf("counting collisions: %w", err)
	}

	samplePivot, err := s.orphanSamples(ctx, pivotDocID, "al.pivot_unit_id", linkWhere, linkParams)
	if err != nil {
		return nil, err
	}
	report.SampleOrphanPivot = samplePivot

	sampleTarget, err := s.orphanSamples(ctx, targetDocID, "al.target_unit_id", linkWhere, linkParams)
	if err != nil {
		return nil, err
	}
	report.SampleOrphanTarget = sampleTarget

	return report, nil
}

// orphanSamples returns up to 5 line units of docID with no link endpoint in
// the scoped link set.
func (s *linkStore) orphanSamples(
	ctx context.Context, docID int64, endpointCol, linkWhere string, linkParams []any,
) ([]domain.OrphanUnit, error) {
	params := append([]any{docID}, linkParams...)
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT u.unit_id, u.external_id, u.text_norm
		FROM units u
		WHERE u.doc_id = ? AND u.unit_type = 'line'
		  AND u.unit_id NOT IN (
			SELECT `+endpointCol+` FROM alignment_links al WHERE `+linkWhere+`
		  )
		ORDER BY u.unit_id
		LIMIT 5
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("querying orphan samples: %w", err)
	}
	defer rows.Close()

	samples := []domain.OrphanUnit{}
	for rows.Next() {
		var o domain.OrphanUnit
		var externalID sql.NullInt64
		if err := rows.Scan(&o.UnitID, &externalID, &o.Text); err != nil {
			return nil, fmt.Errorf("scanning orphan sample: %w", err)
		}
		o.ExternalID = scanNullInt64(externalID)
		samples = append(samples, o)
	}
	return samples, rows.Err()
}

// AlignedUnits returns the sibling units linked to unitID, outgoing and
// incoming, capped at limit.
func (s *linkStore) AlignedUnits(
	ctx context.Context, unitID int64, limit int,
) ([]domain.AlignedUnit, error) {
	query := `
		SELECT u.unit_id, u.doc_id, al.external_id, d.language, d.title, u.text_norm
		FROM alignment_links al
		JOIN units u ON u.unit_id = al.target_unit_id
		JOIN documents d ON d.doc_id = u.doc_id
		WHERE al.pivot_unit_id = ?
		UNION
		SELECT u.unit_id, u.doc_id, al.external_id, d.language, d.title, u.text_norm
		FROM alignment_links al
		JOIN units u ON u.unit_id = al.pivot_unit_id
		JOIN documents d ON d.doc_id = u.doc_id
		WHERE al.target_unit_id = ?
		ORDER BY 4, 2
	`
	params := []any{unitID, unitID}
	if limit > 0 {
		query += " LIMIT ?"
		params = append(params, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("querying aligned units: %w", err)
	}
	defer rows.Close()

	var aligned []domain.AlignedUnit //nolint:prealloc // size unknown from query
	for rows.Next() {
		var a domain.AlignedUnit
		var externalID sql.NullInt64
		if err := rows.Scan(&a.UnitID, &a.DocID, &externalID, &a.Language, &a.Title, &a.Text); err != nil {
			return nil, fmt.Errorf("scanning aligned unit: %w", err)
		}
		a.ExternalID = scanNullInt64(externalID)
		aligned = append(aligned, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating aligned units: %w", err)
	}

	return aligned, nil
}

// ExportRows returns the alignment dump rows matching the filter.
func (s *linkStore) ExportRows(
	ctx context.Context, f domain.AlignExportFilter,
) ([]domain.AlignExportRow, error) {
	where := ""
	var params []any
	appendClause := func(clause string, v any) {
		if where == "" {
			where = "WHERE " + clause
		} else {
			where += " AND " + clause
		}
		params = append(params, v)
	}
	if f.PivotDocID != nil {
		appendClause("al.pivot_doc_id = ?", *f.PivotDocID)
	}
	if f.TargetDocID != nil {
		appendClause("al.target_doc_id = ?", *f.TargetDocID)
	}
	if f.ExternalID != nil {
		appendClause("al.external_id = ?", *f.ExternalID)
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT al.link_id, al.external_id, al.pivot_doc_id, al.target_doc_id,
		       al.pivot_unit_id, al.target_unit_id,
		       pu.text_norm AS pivot_text, tu.text_norm AS target_text,
		       al.status
		FROM alignment_links al
		JOIN units pu ON pu.unit_id = al.pivot_unit_id
		JOIN units tu ON tu.unit_id = al.target_unit_id
		`+where+`
		ORDER BY al.pivot_doc_id, al.target_doc_id, al.external_id, al.link_id
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("querying export rows: %w", err)
	}
	defer rows.Close()

	var out []domain.AlignExportRow //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.AlignExportRow
		var externalID sql.NullInt64
		var status sql.NullString
		if err := rows.Scan(&r.LinkID, &externalID, &r.PivotDocID, &r.TargetDocID,
			&r.PivotUnitID, &r.TargetUnitID, &r.PivotText, &r.TargetText, &status); err != nil {
			return nil, fmt.Errorf("scanning export row: %w", err)
		}
		r.ExternalID = scanNullInt64(externalID)
		r.Status = scanNullString(status)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating export rows: %w", err)
	}

	return out, nil
}
