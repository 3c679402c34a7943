package services

import (
	"context"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockDocStore implements driven.DocumentStore for testing.
type mockDocStore struct {
	docs   map[int64]*domain.Document
	nextID int64
}

var _ driven.DocumentStore = (*mockDocStore)(nil)

func newMockDocStore() *mockDocStore {
	return &mockDocStore{docs: map[int64]*domain.Document{}, nextID: 1}
}

func (m *mockDocStore) CreateDocumentWithUnits(
	_ context.Context, doc *domain.Document, _ []domain.NewUnit,
) (int64, error) {
	doc.ID = m.nextID
	m.nextID++
	copied := *doc
	m.docs[doc.ID] = &copied
	return doc.ID, nil
}

func (m *mockDocStore) GetDocument(_ context.Context, docID int64) (*domain.Document, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *mockDocStore) ListDocuments(_ context.Context) ([]domain.DocumentSummary, error) {
	var out []domain.DocumentSummary
	for id := int64(1); id < m.nextID; id++ {
		if doc, ok := m.docs[id]; ok {
			out = append(out, domain.DocumentSummary{
				ID: doc.ID, Title: doc.Title, Language: doc.Language, Role: doc.Role,
			})
		}
	}
	return out, nil
}

func (m *mockDocStore) ListDocIDs(_ context.Context) ([]int64, error) {
	var out []int64
	for id := int64(1); id < m.nextID; id++ {
		if _, ok := m.docs[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockDocStore) UpdateDocument(_ context.Context, upd domain.DocumentUpdate) (*domain.Document, error) {
	doc, ok := m.docs[upd.DocID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if upd.Title != nil {
		doc.Title = *upd.Title
	}
	if upd.Language != nil {
		doc.Language = *upd.Language
	}
	if upd.Role != nil {
		doc.Role = domain.DocRole(*upd.Role)
	}
	if upd.ResourceType != nil {
		doc.ResourceType = *upd.ResourceType
	}
	return doc, nil
}

func (m *mockDocStore) BulkUpdateDocuments(ctx context.Context, upds []domain.DocumentUpdate) (int64, error) {
	var n int64
	for _, upd := range upds {
		if _, err := m.UpdateDocument(ctx, upd); err == nil {
			n++
		}
	}
	return n, nil
}

// addDoc registers a document with preset line units.
func (m *mockDocStore) addDoc(title string, units *mockUnitStore, lineUnits []domain.Unit) int64 {
	id := m.nextID
	m.nextID++
	m.docs[id] = &domain.Document{ID: id, Title: title, Language: "fr", Role: domain.DocRoleStandalone}
	if units != nil {
		units.byDoc[id] = lineUnits
	}
	return id
}

// mockUnitStore implements driven.UnitStore for testing.
type mockUnitStore struct {
	byDoc        map[int64][]domain.Unit
	normUpdates  []domain.TextNormUpdate
	replaced     map[int64][]domain.NewUnit
	linksDropped int64
}

var _ driven.UnitStore = (*mockUnitStore)(nil)

func newMockUnitStore() *mockUnitStore {
	return &mockUnitStore{byDoc: map[int64][]domain.Unit{}, replaced: map[int64][]domain.NewUnit{}}
}

func (m *mockUnitStore) Unit(_ context.Context, unitID int64) (*domain.Unit, error) {
	for _, units := range m.byDoc {
		for i := range units {
			if units[i].ID == unitID {
				return &units[i], nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockUnitStore) LineUnits(_ context.Context, docID int64) ([]domain.Unit, error) {
	var out []domain.Unit
	for _, u := range m.byDoc[docID] {
		if u.Kind == domain.UnitLine {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUnitStore) DocUnits(_ context.Context, docID int64) ([]domain.Unit, error) {
	return m.byDoc[docID], nil
}

func (m *mockUnitStore) UpdateTextNorm(_ context.Context, updates []domain.TextNormUpdate) error {
	m.normUpdates = append(m.normUpdates, updates...)
	for _, upd := range updates {
		for docID, units := range m.byDoc {
			for i := range units {
				if units[i].ID == upd.UnitID {
					m.byDoc[docID][i].TextNorm = upd.TextNorm
				}
			}
		}
	}
	return nil
}

func (m *mockUnitStore) ReplaceLineUnits(
	_ context.Context, docID int64, units []domain.NewUnit,
) (int64, error) {
	m.replaced[docID] = units
	return m.linksDropped, nil
}

// mockLinkStore implements driven.LinkStore for testing.
type mockLinkStore struct {
	inserted map[string][]domain.NewLink // key: runID
	aligned  map[int64][]domain.AlignedUnit
}

var _ driven.LinkStore = (*mockLinkStore)(nil)

func newMockLinkStore() *mockLinkStore {
	return &mockLinkStore{
		inserted: map[string][]domain.NewLink{},
		aligned:  map[int64][]domain.AlignedUnit{},
	}
}

func (m *mockLinkStore) InsertLinks(
	_ context.Context, runID string, _, _ int64, links []domain.NewLink,
) error {
	m.inserted[runID] = append(m.inserted[runID], links...)
	return nil
}

func (m *mockLinkStore) AuditPage(_ context.Context, _ domain.AuditFilter) ([]domain.AuditRow, bool, error) {
	return nil, false, nil
}

func (m *mockLinkStore) UpdateLinkStatus(_ context.Context, _ int64, _ *string) error {
	return nil
}

func (m *mockLinkStore) DeleteLink(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (m *mockLinkStore) RetargetLink(_ context.Context, _, _ int64) error {
	return nil
}

func (m *mockLinkStore) Quality(_ context.Context, _, _ int64, _ string) (*domain.QualityReport, error) {
	return &domain.QualityReport{}, nil
}

func (m *mockLinkStore) AlignedUnits(_ context.Context, unitID int64, limit int) ([]domain.AlignedUnit, error) {
	units := m.aligned[unitID]
	if limit > 0 && len(units) > limit {
		units = units[:limit]
	}
	return units, nil
}

func (m *mockLinkStore) ExportRows(_ context.Context, _ domain.AlignExportFilter) ([]domain.AlignExportRow, error) {
	return nil, nil
}

// mockIndex implements driven.SearchIndex for testing.
type mockIndex struct {
	rows       []domain.IndexRow
	rebuildN   int64
	searchErr  error
	lastLimit  int
	lastOffset int
}

var _ driven.SearchIndex = (*mockIndex)(nil)

func (m *mockIndex) Rebuild(_ context.Context) (int64, error) {
	return m.rebuildN, nil
}

func (m *mockIndex) Search(
	_ context.Context, _ string, _ domain.IndexFilter, limit, offset int,
) ([]domain.IndexRow, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.lastLimit, m.lastOffset = limit, offset
	rows := m.rows
	if offset < len(rows) {
		rows = rows[offset:]
	} else {
		rows = nil
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// mockRunStore implements driven.RunStore for testing.
type mockRunStore struct {
	runs  []domain.Run
	stats map[string]map[string]any
}

var _ driven.RunStore = (*mockRunStore)(nil)

func newMockRunStore() *mockRunStore {
	return &mockRunStore{stats: map[string]map[string]any{}}
}

func (m *mockRunStore) CreateRun(_ context.Context, run *domain.Run) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *mockRunStore) UpdateRunStats(_ context.Context, runID string, stats map[string]any) error {
	m.stats[runID] = stats
	return nil
}

func (m *mockRunStore) ListRuns(_ context.Context, runID string) ([]domain.Run, error) {
	if runID == "" {
		return m.runs, nil
	}
	var out []domain.Run
	for _, r := range m.runs {
		if r.ID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

// mockRelationStore implements driven.RelationStore for testing.
type mockRelationStore struct {
	relations []domain.DocRelation
}

var _ driven.RelationStore = (*mockRelationStore)(nil)

func (m *mockRelationStore) SetRelation(_ context.Context, rel *domain.DocRelation) (int64, bool, error) {
	rel.ID = int64(len(m.relations) + 1)
	m.relations = append(m.relations, *rel)
	return rel.ID, true, nil
}

func (m *mockRelationStore) DeleteRelation(_ context.Context, _ int64) (int64, error) {
	return 1, nil
}

func (m *mockRelationStore) RelationsForDoc(_ context.Context, docID int64) ([]domain.DocRelation, error) {
	var out []domain.DocRelation
	for _, r := range m.relations {
		if r.DocID == docID {
			out = append(out, r)
		}
	}
	return out, nil
}

// lineUnit builds one line unit for mock fixtures.
func lineUnit(id int64, docID int64, n int, extID *int64, text string) domain.Unit {
	return domain.Unit{
		ID: id, DocID: docID, Kind: domain.UnitLine, N: n,
		ExternalID: extID, TextRaw: text, TextNorm: text,
	}
}

func extPtr(v int64) *int64 { return &v }
