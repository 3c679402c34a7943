package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

// engineFixture wires an engine over mocks.
func engineFixture(t *testing.T) (*Engine, *mockDocStore, *mockUnitStore, *mockRunStore, *mockIndex) {
	t.Helper()
	docs := newMockDocStore()
	units := newMockUnitStore()
	runs := newMockRunStore()
	index := &mockIndex{rebuildN: 2}

	engine := NewEngine(Stores{
		Documents: docs,
		Units:     units,
		Runs:      runs,
		Links:     newMockLinkStore(),
		Relations: &mockRelationStore{},
		Index:     index,
	}, filepath.Join(t.TempDir(), "corpus.db"))

	return engine, docs, units, runs, index
}

func TestEngine_StaleFlagLifecycle(t *testing.T) {
	engine, docs, units, _, _ := engineFixture(t)
	ctx := context.Background()

	docID := docs.addDoc("doc", units, nil)
	units.byDoc[docID] = []domain.Unit{lineUnit(1, docID, 1, nil, "a b")}

	assert.False(t, engine.FTSStale())

	// Curation that modifies units (NBSP to space) marks the index stale.
	result, err := engine.Curate(ctx, &docID, []domain.CurationRule{
		{Pattern: " ", Replacement: " "},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnitsModified)
	assert.True(t, result.FTSStale)
	assert.True(t, engine.FTSStale())

	// Queries surface the flag without failing.
	queryResult, err := engine.Query(ctx, domain.QueryOptions{Q: "a"})
	require.NoError(t, err)
	assert.True(t, queryResult.Page.FTSStale)

	// Rebuild clears it.
	indexResult, err := engine.RebuildIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), indexResult.UnitsIndexed)
	assert.False(t, engine.FTSStale())

	queryResult, err = engine.Query(ctx, domain.QueryOptions{Q: "a"})
	require.NoError(t, err)
	assert.False(t, queryResult.Page.FTSStale)
}

func TestEngine_EmptyRuleSetIsNoOp(t *testing.T) {
	engine, docs, units, _, _ := engineFixture(t)
	ctx := context.Background()

	docID := docs.addDoc("doc", units, nil)
	units.byDoc[docID] = []domain.Unit{lineUnit(1, docID, 1, nil, "texte")}

	result, err := engine.Curate(ctx, &docID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.UnitsModified)
	assert.False(t, result.FTSStale)
	assert.False(t, engine.FTSStale())
}

func TestEngine_PreviewNeverMarksStale(t *testing.T) {
	engine, docs, units, _, _ := engineFixture(t)
	ctx := context.Background()

	docID := docs.addDoc("doc", units, nil)
	units.byDoc[docID] = []domain.Unit{lineUnit(1, docID, 1, nil, "a b")}

	preview, err := engine.CuratePreview(ctx, docID, []domain.CurationRule{
		{Pattern: " ", Replacement: " "},
	}, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.UnitsChanged)
	assert.Equal(t, 1, preview.ReplacementsTotal)
	assert.False(t, engine.FTSStale())
	assert.Empty(t, units.normUpdates)
}

func TestEngine_SegmentMarksStale(t *testing.T) {
	engine, docs, units, _, _ := engineFixture(t)
	ctx := context.Background()

	docID := docs.addDoc("doc", units, nil)
	units.byDoc[docID] = []domain.Unit{lineUnit(1, docID, 1, nil, "Une. Deux.")}

	result, err := engine.Segment(ctx, docID, "")
	require.NoError(t, err)
	assert.True(t, result.FTSStale)
	assert.Equal(t, 2, result.Report.UnitsOutput)
	assert.True(t, engine.FTSStale())
}

func TestEngine_RunsAreRecorded(t *testing.T) {
	engine, _, _, runs, _ := engineFixture(t)
	ctx := context.Background()

	_, err := engine.RebuildIndex(ctx)
	require.NoError(t, err)
	_, err = engine.Query(ctx, domain.QueryOptions{Q: "x"})
	require.NoError(t, err)

	require.Len(t, runs.runs, 2)
	assert.Equal(t, domain.RunIndex, runs.runs[0].Kind)
	assert.Equal(t, domain.RunQuery, runs.runs[1].Kind)
	// Stats arrive after completion.
	assert.Contains(t, runs.stats[runs.runs[0].ID], "units_indexed")
}

func TestEngine_UpdateLinkStatusValidation(t *testing.T) {
	engine, _, _, _, _ := engineFixture(t)
	bogus := "maybe"
	err := engine.UpdateLinkStatus(context.Background(), 1, &bogus)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestEngine_UpdateDocumentValidation(t *testing.T) {
	engine, docs, units, _, _ := engineFixture(t)
	docID := docs.addDoc("doc", units, nil)

	role := "not_a_role"
	_, err := engine.UpdateDocument(context.Background(), domain.DocumentUpdate{
		DocID: docID, Role: &role,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
