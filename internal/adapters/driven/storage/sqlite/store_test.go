package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

// newTestStore opens a fresh store in a temp directory.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func int64Ptr(v int64) *int64 { return &v }

// seedDoc inserts a document with line units carrying the given external
// ids. Texts default to "text <ext>".
func seedDoc(t *testing.T, store *Store, title, lang string, externalIDs []int64) int64 {
	t.Helper()
	units := make([]domain.NewUnit, 0, len(externalIDs))
	for i, eid := range externalIDs {
		eid := eid
		units = append(units, domain.NewUnit{
			Kind:       domain.UnitLine,
			N:          i + 1,
			ExternalID: &eid,
			TextRaw:    "text " + title,
			TextNorm:   "text " + title,
		})
	}
	docID, err := store.DocumentStore().CreateDocumentWithUnits(context.Background(), &domain.Document{
		Title:    title,
		Language: lang,
		Role:     domain.DocRoleStandalone,
	}, units)
	require.NoError(t, err)
	return docID
}

func TestMigrations_Idempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	versions, err := store.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
	require.NoError(t, store.Close())

	// Re-opening re-runs the migration scan; nothing applies twice.
	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()
	versions, err = store.AppliedMigrations()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, versions)
}

func TestCreateDocumentWithUnits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	units := []domain.NewUnit{
		{Kind: domain.UnitStructure, N: 1, TextRaw: "Intro", TextNorm: "Intro"},
		{Kind: domain.UnitLine, N: 2, ExternalID: int64Ptr(1), TextRaw: "Bonjour¤monde", TextNorm: "Bonjour monde",
			Metadata: map[string]any{"sep_count": 1}},
		{Kind: domain.UnitLine, N: 3, ExternalID: int64Ptr(2), TextRaw: "Deuxième", TextNorm: "Deuxième"},
	}
	docID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title:    "Fixture",
		Language: "fr",
		Role:     domain.DocRoleOriginal,
		Metadata: map[string]any{"encoding": "utf-8"},
	}, units)
	require.NoError(t, err)
	require.Positive(t, docID)

	doc, err := store.DocumentStore().GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "Fixture", doc.Title)
	assert.Equal(t, domain.DocRoleOriginal, doc.Role)
	assert.Equal(t, "utf-8", doc.Metadata["encoding"])
	assert.False(t, doc.CreatedAt.IsZero())

	all, err := store.UnitStore().DocUnits(ctx, docID)
	require.NoError(t, err)
	require.Len(t, all, 3)

	lines, err := store.UnitStore().LineUnits(ctx, docID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Bonjour¤monde", lines[0].TextRaw)
	assert.Equal(t, "Bonjour monde", lines[0].TextNorm)
	require.NotNil(t, lines[0].Metadata)

	summaries, err := store.DocumentStore().ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, int64(2), summaries[0].UnitCount) // line units only
}

func TestCreateDocumentWithUnits_AtomicOnDuplicateN(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	units := []domain.NewUnit{
		{Kind: domain.UnitLine, N: 1, TextRaw: "a", TextNorm: "a"},
		{Kind: domain.UnitLine, N: 1, TextRaw: "b", TextNorm: "b"}, // UNIQUE(doc_id, n)
	}
	_, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "Broken", Language: "fr", Role: domain.DocRoleStandalone,
	}, units)
	require.Error(t, err)

	// Nothing surfaced: neither the document nor a partial unit prefix.
	summaries, err := store.DocumentStore().ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSearchIndex_RowIDContract(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "Doc", Language: "fr", Role: domain.DocRoleStandalone,
	}, []domain.NewUnit{
		{Kind: domain.UnitStructure, N: 1, TextRaw: "Titre", TextNorm: "Titre"},
		{Kind: domain.UnitLine, N: 2, ExternalID: int64Ptr(1), TextRaw: "Bonjour le monde.", TextNorm: "Bonjour le monde."},
		{Kind: domain.UnitLine, N: 3, ExternalID: int64Ptr(2), TextRaw: "Deuxième ligne.", TextNorm: "Deuxième ligne."},
	})
	require.NoError(t, err)

	count, err := store.SearchIndex().Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count) // structure units never indexed

	rows, err := store.SearchIndex().Search(ctx, "Bonjour", domain.IndexFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, docID, rows[0].DocID)
	assert.Equal(t, "Bonjour le monde.", rows[0].TextNorm)

	// The hit's row identity is the unit identity.
	unit, err := store.UnitStore().Unit(ctx, rows[0].UnitID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnitLine, unit.Kind)
	assert.Equal(t, 2, unit.N)

	// Diagnostics agree that the index is in sync.
	diag, err := store.CollectDiagnostics(ctx)
	require.NoError(t, err)
	assert.False(t, diag.FTSStale)
	assert.Equal(t, int64(2), diag.FTSRows)
}

func TestSearchIndex_SyntaxError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, err := store.SearchIndex().Rebuild(ctx)
	require.NoError(t, err)

	_, err = store.SearchIndex().Search(ctx, `"unbalanced`, domain.IndexFilter{}, 10, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQuerySyntax)
}

func TestSearchIndex_Filters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedTextDoc := func(title, lang, text string) int64 {
		docID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
			Title: title, Language: lang, Role: domain.DocRoleStandalone,
		}, []domain.NewUnit{
			{Kind: domain.UnitLine, N: 1, ExternalID: int64Ptr(1), TextRaw: text, TextNorm: text},
		})
		require.NoError(t, err)
		return docID
	}
	frID := seedTextDoc("FR", "fr", "bonjour tout le monde")
	seedTextDoc("EN", "en", "bonjour is a french word")

	_, err := store.SearchIndex().Rebuild(ctx)
	require.NoError(t, err)

	rows, err := store.SearchIndex().Search(ctx, "bonjour", domain.IndexFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = store.SearchIndex().Search(ctx, "bonjour", domain.IndexFilter{Language: "fr"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, frID, rows[0].DocID)
}

func TestUpdateTextNormAndReplaceLineUnits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docID := seedDoc(t, store, "doc", "fr", []int64{1, 2})
	lines, err := store.UnitStore().LineUnits(ctx, docID)
	require.NoError(t, err)

	// Curation path: text_norm changes, text_raw does not.
	err = store.UnitStore().UpdateTextNorm(ctx, []domain.TextNormUpdate{
		{UnitID: lines[0].ID, TextNorm: "rewritten"},
	})
	require.NoError(t, err)
	unit, err := store.UnitStore().Unit(ctx, lines[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "rewritten", unit.TextNorm)
	assert.Equal(t, lines[0].TextRaw, unit.TextRaw)

	// Segmentation path: links touching the document are dropped with the
	// replaced units.
	targetID := seedDoc(t, store, "target", "en", []int64{1, 2})
	targetLines, err := store.UnitStore().LineUnits(ctx, targetID)
	require.NoError(t, err)
	err = store.LinkStore().InsertLinks(ctx, "run-1", docID, targetID, []domain.NewLink{
		{PivotUnitID: lines[0].ID, TargetUnitID: targetLines[0].ID, ExternalID: int64Ptr(1)},
	})
	require.NoError(t, err)

	dropped, err := store.UnitStore().ReplaceLineUnits(ctx, docID, []domain.NewUnit{
		{Kind: domain.UnitLine, N: 1, TextRaw: "s1", TextNorm: "s1"},
		{Kind: domain.UnitLine, N: 2, TextRaw: "s2", TextNorm: "s2"},
		{Kind: domain.UnitLine, N: 3, TextRaw: "s3", TextNorm: "s3"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), dropped)

	lines, err = store.UnitStore().LineUnits(ctx, docID)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	for i, u := range lines {
		assert.Equal(t, i+1, u.N)
	}
}

func TestRunStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &domain.Run{ID: "run-abc", Kind: domain.RunImport, Params: map[string]any{"mode": "tei"}}
	require.NoError(t, store.RunStore().CreateRun(ctx, run))
	require.NoError(t, store.RunStore().UpdateRunStats(ctx, "run-abc", map[string]any{"units_total": float64(3)}))

	runs, err := store.RunStore().ListRuns(ctx, "run-abc")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunImport, runs[0].Kind)
	assert.Equal(t, "tei", runs[0].Params["mode"])
	assert.Equal(t, float64(3), runs[0].Stats["units_total"])

	all, err := store.RunStore().ListRuns(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRelationStore_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	docID := seedDoc(t, store, "pivot", "fr", []int64{1})
	targetID := seedDoc(t, store, "target", "en", []int64{1})

	rel := &domain.DocRelation{DocID: docID, Type: domain.RelationTranslationOf, TargetDocID: targetID, Note: "v1"}
	id, created, err := store.RelationStore().SetRelation(ctx, rel)
	require.NoError(t, err)
	assert.True(t, created)

	// Same edge again: note refreshes, no second row.
	rel2 := &domain.DocRelation{DocID: docID, Type: domain.RelationTranslationOf, TargetDocID: targetID, Note: "v2"}
	id2, created2, err := store.RelationStore().SetRelation(ctx, rel2)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, id, id2)

	relations, err := store.RelationStore().RelationsForDoc(ctx, docID)
	require.NoError(t, err)
	require.Len(t, relations, 1)
	assert.Equal(t, "v2", relations[0].Note)

	deleted, err := store.RelationStore().DeleteRelation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, _, err = store.RelationStore().SetRelation(ctx, &domain.DocRelation{
		DocID: docID, Type: "made_up", TargetDocID: targetID,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
