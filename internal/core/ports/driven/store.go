package driven

import (
	"context"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

// DocumentStore persists documents and their unit graphs.
type DocumentStore interface {
	// CreateDocumentWithUnits writes one document row and all its units in a
	// single transaction. Either everything lands or nothing does. Returns
	// the new document identity.
	CreateDocumentWithUnits(ctx context.Context, doc *domain.Document, units []domain.NewUnit) (int64, error)

	// GetDocument retrieves a document by identity.
	GetDocument(ctx context.Context, docID int64) (*domain.Document, error)

	// ListDocuments returns all documents with their line-unit counts.
	ListDocuments(ctx context.Context) ([]domain.DocumentSummary, error)

	// ListDocIDs returns every document identity in ascending order.
	ListDocIDs(ctx context.Context) ([]int64, error)

	// UpdateDocument rewrites the mutable metadata fields of one document
	// and returns the updated row. domain.ErrNotFound when absent.
	UpdateDocument(ctx context.Context, upd domain.DocumentUpdate) (*domain.Document, error)

	// BulkUpdateDocuments applies many metadata updates in one transaction
	// and returns the number of rows changed. Entries without fields or
	// with unknown doc ids are skipped.
	BulkUpdateDocuments(ctx context.Context, upds []domain.DocumentUpdate) (int64, error)
}

// UnitStore reads and mutates the unit rows of documents.
type UnitStore interface {
	// Unit retrieves one unit by identity. domain.ErrNotFound when absent.
	Unit(ctx context.Context, unitID int64) (*domain.Unit, error)

	// LineUnits returns the line units of a document ordered by n.
	LineUnits(ctx context.Context, docID int64) ([]domain.Unit, error)

	// DocUnits returns every unit of a document, both kinds, ordered by n.
	DocUnits(ctx context.Context, docID int64) ([]domain.Unit, error)

	// UpdateTextNorm rewrites text_norm for the given units in a single
	// transaction. text_raw is untouched.
	UpdateTextNorm(ctx context.Context, updates []domain.TextNormUpdate) error

	// ReplaceLineUnits swaps the line-unit set of one document in a single
	// transaction: alignment links touching the document are deleted, the
	// old line units removed, and the replacements inserted. Structure
	// units are preserved. Returns the number of links dropped.
	ReplaceLineUnits(ctx context.Context, docID int64, units []domain.NewUnit) (int64, error)
}

// RunStore appends to and reads the run log.
type RunStore interface {
	// CreateRun inserts a run row. The caller supplies the identity.
	CreateRun(ctx context.Context, run *domain.Run) error

	// UpdateRunStats fills the stats object of an existing run.
	UpdateRunStats(ctx context.Context, runID string, stats map[string]any) error

	// ListRuns returns runs ordered by creation time, optionally filtered
	// to one identity (runID == "" returns all).
	ListRuns(ctx context.Context, runID string) ([]domain.Run, error)
}

// LinkStore persists and audits alignment links.
type LinkStore interface {
	// InsertLinks writes one link set for a (pivot, target) pair in a
	// single transaction, tagged with the producing run identity.
	InsertLinks(ctx context.Context, runID string, pivotDocID, targetDocID int64, links []domain.NewLink) error

	// AuditPage returns one page of audit rows plus a lookahead has-more
	// flag.
	AuditPage(ctx context.Context, f domain.AuditFilter) ([]domain.AuditRow, bool, error)

	// UpdateLinkStatus sets the review status (accepted, rejected, or nil
	// to clear). domain.ErrNotFound when the link does not exist.
	UpdateLinkStatus(ctx context.Context, linkID int64, status *string) error

	// DeleteLink removes one link and returns the number of rows deleted.
	DeleteLink(ctx context.Context, linkID int64) (int64, error)

	// RetargetLink points an existing link at a new target unit. The unit
	// must exist and be of kind line.
	RetargetLink(ctx context.Context, linkID, newTargetUnitID int64) error

	// Quality computes the coverage metrics for one pivot↔target pair,
	// optionally scoped to one run (runID == "" for all runs).
	Quality(ctx context.Context, pivotDocID, targetDocID int64, runID string) (*domain.QualityReport, error)

	// AlignedUnits returns the sibling units linked to unitID, outgoing and
	// incoming, capped at limit (limit <= 0 means uncapped).
	AlignedUnits(ctx context.Context, unitID int64, limit int) ([]domain.AlignedUnit, error)

	// ExportRows returns the alignment dump rows matching the filter.
	ExportRows(ctx context.Context, f domain.AlignExportFilter) ([]domain.AlignExportRow, error)
}

// RelationStore persists document-level typed edges.
type RelationStore interface {
	// SetRelation upserts a relation; an existing (doc, type, target) row
	// only has its note refreshed. Returns the row id and whether a new
	// row was created.
	SetRelation(ctx context.Context, rel *domain.DocRelation) (int64, bool, error)

	// DeleteRelation removes a relation by id, returning rows deleted.
	DeleteRelation(ctx context.Context, id int64) (int64, error)

	// RelationsForDoc lists the relations originating at docID.
	RelationsForDoc(ctx context.Context, docID int64) ([]domain.DocRelation, error)
}

// SearchIndex is the inverted index over text_norm of line units.
type SearchIndex interface {
	// Rebuild repopulates the index from the line units and returns the
	// number of units indexed. Full rebuild is the only refresh mode.
	Rebuild(ctx context.Context) (int64, error)

	// Search runs a full-text match and returns limit rows from offset,
	// ordered by (doc_id, n). A syntax error in q surfaces as
	// domain.ErrQuerySyntax.
	Search(ctx context.Context, q string, filter domain.IndexFilter, limit, offset int) ([]domain.IndexRow, error)
}
