package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// relationStore implements driven.RelationStore.
type relationStore struct {
	store *Store
}

var _ driven.RelationStore = (*relationStore)(nil)

// SetRelation upserts a relation. An existing (doc, type, target) row only
// has its note refreshed.
func (s *relationStore) SetRelation(
	ctx context.Context, rel *domain.DocRelation,
) (int64, bool, error) {
	if !domain.ValidRelationType(rel.Type) {
		return 0, false, fmt.Errorf("relation type %q: %w", rel.Type, domain.ErrValidation)
	}

	var existing int64
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id FROM doc_relations
		WHERE doc_id = ? AND relation_type = ? AND target_doc_id = ?
	`, rel.DocID, string(rel.Type), rel.TargetDocID).Scan(&existing)
	switch {
	case err == nil:
		if _, err := s.store.db.ExecContext(ctx,
			"UPDATE doc_relations SET note = ? WHERE id = ?",
			emptyToNull(rel.Note), existing); err != nil {
			return 0, false, fmt.Errorf("updating relation note: %w", err)
		}
		rel.ID = existing
		return existing, false, nil
	case err != sql.ErrNoRows:
		return 0, false, fmt.Errorf("checking existing relation: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO doc_relations (doc_id, relation_type, target_doc_id, note, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, rel.DocID, string(rel.Type), rel.TargetDocID, emptyToNull(rel.Note), utcNow())
	if err != nil {
		return 0, false, fmt.Errorf("inserting relation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading relation id: %w", err)
	}
	rel.ID = id
	return id, true, nil
}

// DeleteRelation removes a relation by id.
func (s *relationStore) DeleteRelation(ctx context.Context, id int64) (int64, error) {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM doc_relations WHERE id = ?", id)
	if err != nil {
		return 0, fmt.Errorf("deleting relation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected: %w", err)
	}
	return affected, nil
}

// RelationsForDoc lists the relations originating at docID.
func (s *relationStore) RelationsForDoc(
	ctx context.Context, docID int64,
) ([]domain.DocRelation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, doc_id, relation_type, target_doc_id, note, created_at
		FROM doc_relations WHERE doc_id = ? ORDER BY id
	`, docID)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.DocRelation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.DocRelation
		var relType, createdAt string
		var note sql.NullString
		if err := rows.Scan(&r.ID, &r.DocID, &relType, &r.TargetDocID, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		r.Type = domain.RelationType(relType)
		r.Note = note.String
		r.CreatedAt = parseTime(createdAt)
		relations = append(relations, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}

	return relations, nil
}
