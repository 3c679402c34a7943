package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// CreateDocumentWithUnits writes the document row and all its units in one
// transaction. Units are inserted in ascending n.
func (s *documentStore) CreateDocumentWithUnits(
	ctx context.Context, doc *domain.Document, units []domain.NewUnit,
) (int64, error) {
	metaJSON, err := marshalMeta(doc.Metadata)
	if err != nil {
		return 0, err
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = parseTime(utcNow())
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents
			(title, language, doc_role, resource_type, meta_json, source_path, source_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.Title, doc.Language, string(doc.Role), emptyToNull(doc.ResourceType),
		metaJSON, emptyToNull(doc.SourcePath), emptyToNull(doc.SourceHash),
		createdAt.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("inserting document: %w", err)
	}

	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading document id: %w", err)
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

	doc.ID = docID
	doc.CreatedAt = createdAt
	return docID, nil
}

// GetDocument retrieves a document by identity.
func (s *documentStore) GetDocument(ctx context.Context, docID int64) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT doc_id, title, language, doc_role, resource_type, meta_json,
		       source_path, source_hash, created_at
		FROM documents WHERE doc_id = ?
	`, docID)

	return scanDocument(row)
}

// ListDocuments returns all documents with line-unit counts.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT d.doc_id, d.title, d.language, d.doc_role, d.resource_type,
		       COUNT(u.unit_id) AS unit_count
		FROM documents d
		LEFT JOIN units u ON u.doc_id = d.doc_id AND u.unit_type = 'line'
		GROUP BY d.doc_id
		ORDER BY d.doc_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.DocumentSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var d domain.DocumentSummary
		var role string
		var resourceType sql.NullString
		if err := rows.Scan(&d.ID, &d.Title, &d.Language, &role, &resourceType, &d.UnitCount); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.Role = domain.DocRole(role)
		d.ResourceType = resourceType.String
		docs = append(docs, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ListDocIDs returns every document identity in ascending order.
func (s *documentStore) ListDocIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT doc_id FROM documents ORDER BY doc_id")
	if err != nil {
		return nil, fmt.Errorf("querying document ids: %w", err)
	}
	defer rows.Close()

	var ids []int64 //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateDocument rewrites the mutable metadata fields of one document.
func (s *documentStore) UpdateDocument(
	ctx context.Context, upd domain.DocumentUpdate,
) (*domain.Document, error) {
	if upd.IsEmpty() {
		return nil, domain.ErrInvalidInput
	}

	set := ""
	var params []any
	appendField := func(col string, v *string) {
		if v == nil {
			return
		}
		if set != "" {
			set += ", "
		}
		set += col + " = ?"
		params = append(params, *v)
	}
	appendField("title", upd.Title)
	appendField("language", upd.Language)
	appendField("doc_role", upd.Role)
	appendField("resource_type", upd.ResourceType)
	params = append(params, upd.DocID)

	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET "+set+" WHERE doc_id = ?", params...)
	if err != nil {
		return nil, fmt.Errorf("updating document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return nil, domain.ErrNotFound
	}

	return s.GetDocument(ctx, upd.DocID)
}

// BulkUpdateDocuments applies many metadata updates in one transaction.
func (s *documentStore) BulkUpdateDocuments(
	ctx context.Context, upds []domain.DocumentUpdate,
) (int64, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var total int64
	for _, upd := range upds {
		if upd.IsEmpty() {
			continue
		}
		set := ""
		var params []any
		appendField := func(col string, v *string) {
			if v == nil {
				return
			}
			if set != "" {
				set += ", "
			}
			set += col + " = ?"
			params = append(params, *v)
		}
		appendField("title", upd.Title)
		appendField("language", upd.Language)
		appendField("doc_role", upd.Role)
		appendField("resource_type", upd.ResourceType)
		params = append(params, upd.DocID)

		res, err := tx.ExecContext(ctx,
			"UPDATE documents SET "+set+" WHERE doc_id = ?", params...)
		if err != nil {
			return 0, fmt.Errorf("updating document %d: %w", upd.DocID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("reading rows affected: %w", err)
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}
	return total, nil
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var role string
	var resourceType, metaJSON, sourcePath, sourceHash sql.NullString
	var createdAt string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.Language, &role, &resourceType,
		&metaJSON, &sourcePath, &sourceHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Role = domain.DocRole(role)
	doc.ResourceType = resourceType.String
	doc.SourcePath = sourcePath.String
	doc.SourceHash = sourceHash.String
	doc.CreatedAt = parseTime(createdAt)

	meta, err := unmarshalMeta(metaJSON)
	if err != nil {
		return nil, err
	}
	doc.Metadata = meta

	return &doc, nil
}

// emptyToNull stores empty strings as NULL.
func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
