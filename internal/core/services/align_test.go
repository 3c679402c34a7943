package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

// alignFixture wires an AlignService over mocks with a pivot doc carrying
// anchors {1,2,3} and a target doc carrying anchors {2,3,4}.
func alignFixture(t *testing.T) (*AlignService, *mockLinkStore, int64, int64) {
	t.Helper()
	docs := newMockDocStore()
	units := newMockUnitStore()
	links := newMockLinkStore()

	pivotID := docs.addDoc("pivot", units, nil)
	targetID := docs.addDoc("target", units, nil)
	units.byDoc[pivotID] = []domain.Unit{
		lineUnit(1, pivotID, 1, extPtr(1), "premier"),
		lineUnit(2, pivotID, 2, extPtr(2), "deuxième"),
		lineUnit(3, pivotID, 3, extPtr(3), "troisième"),
	}
	units.byDoc[targetID] = []domain.Unit{
		lineUnit(11, targetID, 1, extPtr(2), "second"),
		lineUnit(12, targetID, 2, extPtr(3), "third"),
		lineUnit(13, targetID, 3, extPtr(4), "fourth"),
	}

	return NewAlignService(docs, units, links), links, pivotID, targetID
}

func TestAlign_ExternalID(t *testing.T) {
	svc, links, pivotID, targetID := alignFixture(t)

	reports, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID:   pivotID,
		TargetDocIDs: []int64{targetID},
		Strategy:     domain.AlignExternalID,
	}, "run-1", nil)
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, 2, report.LinksCreated)
	assert.Equal(t, 1, report.LinksSkipped)
	assert.InDelta(t, 66.67, report.CoveragePct, 0.01)
	assert.Equal(t, []int64{2, 3}, report.Matched)
	assert.Equal(t, []int64{1}, report.MissingInTarget)
	assert.Equal(t, []int64{4}, report.MissingInPivot)
	assert.NotEmpty(t, report.Warnings)

	created := links.inserted["run-1"]
	require.Len(t, created, 2)
	assert.Equal(t, int64(2), created[0].PivotUnitID)
	assert.Equal(t, int64(11), created[0].TargetUnitID)
	assert.Equal(t, int64(2), *created[0].ExternalID)
}

func TestAlign_ExternalID_DuplicatesKeepFirst(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	links := newMockLinkStore()
	pivotID := docs.addDoc("pivot", units, nil)
	targetID := docs.addDoc("target", units, nil)
	units.byDoc[pivotID] = []domain.Unit{
		lineUnit(1, pivotID, 1, extPtr(7), "première occurrence"),
		lineUnit(2, pivotID, 2, extPtr(7), "doublon"),
	}
	units.byDoc[targetID] = []domain.Unit{
		lineUnit(11, targetID, 1, extPtr(7), "target"),
	}
	svc := NewAlignService(docs, units, links)

	reports, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
		Strategy: domain.AlignExternalID, Debug: true,
	}, "run-dup", nil)
	require.NoError(t, err)

	report := reports[0]
	assert.Equal(t, []int64{7}, report.DuplicatesPivot)
	require.Len(t, links.inserted["run-dup"], 1)
	// First occurrence (lowest n) wins.
	assert.Equal(t, int64(1), links.inserted["run-dup"][0].PivotUnitID)

	require.NotNil(t, report.Debug)
	assert.Equal(t, 1, report.Debug.LinkSources["external_id"])
	assert.Len(t, report.Debug.SampleLinks, 1)
}

func TestAlign_HybridFallsBackToPosition(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	links := newMockLinkStore()
	pivotID := docs.addDoc("pivot", units, nil)
	targetID := docs.addDoc("target", units, nil)
	// Anchor 5 matches; n=2 has no anchor on either side and pairs by
	// position.
	units.byDoc[pivotID] = []domain.Unit{
		lineUnit(1, pivotID, 1, extPtr(5), "ancre"),
		lineUnit(2, pivotID, 2, nil, "sans ancre"),
	}
	units.byDoc[targetID] = []domain.Unit{
		lineUnit(11, targetID, 1, extPtr(5), "anchor"),
		lineUnit(12, targetID, 2, nil, "no anchor"),
	}
	svc := NewAlignService(docs, units, links)

	reports, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
		Strategy: domain.AlignExternalIDThenPosition, Debug: true,
	}, "run-h", nil)
	require.NoError(t, err)

	report := reports[0]
	assert.Equal(t, 2, report.LinksCreated)
	assert.Equal(t, 0, report.LinksSkipped)
	require.NotNil(t, report.Debug)
	assert.Equal(t, 1, report.Debug.LinkSources["external_id"])
	assert.Equal(t, 1, report.Debug.LinkSources["position"])

	created := links.inserted["run-h"]
	require.Len(t, created, 2)
	assert.Equal(t, int64(2), created[1].PivotUnitID)
	assert.Equal(t, int64(12), created[1].TargetUnitID)
}

func TestAlign_Position(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	links := newMockLinkStore()
	pivotID := docs.addDoc("pivot", units, nil)
	targetID := docs.addDoc("target", units, nil)
	units.byDoc[pivotID] = []domain.Unit{
		lineUnit(1, pivotID, 1, nil, "un"),
		lineUnit(2, pivotID, 2, nil, "deux"),
		lineUnit(3, pivotID, 3, nil, "trois"),
	}
	units.byDoc[targetID] = []domain.Unit{
		lineUnit(11, targetID, 1, nil, "one"),
		lineUnit(12, targetID, 2, nil, "two"),
	}
	svc := NewAlignService(docs, units, links)

	reports, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
		Strategy: domain.AlignPosition,
	}, "run-p", nil)
	require.NoError(t, err)

	report := reports[0]
	assert.Equal(t, 2, report.LinksCreated)
	assert.Equal(t, []int64{3}, report.MissingInTarget)
	assert.Empty(t, report.MissingInPivot)
}

func TestAlign_Similarity(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	links := newMockLinkStore()
	pivotID := docs.addDoc("pivot", units, nil)
	targetID := docs.addDoc("target", units, nil)
	units.byDoc[pivotID] = []domain.Unit{
		lineUnit(1, pivotID, 1, nil, "Le chat dort sur le tapis."),
		lineUnit(2, pivotID, 2, nil, "Une phrase totalement différente."),
	}
	units.byDoc[targetID] = []domain.Unit{
		lineUnit(11, targetID, 1, nil, "Le chat dort sur le tapis!"),
		lineUnit(12, targetID, 2, nil, "xyzzy"),
	}
	svc := NewAlignService(docs, units, links)

	reports, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
		Strategy: domain.AlignSimilarity, SimThreshold: 0.8, Debug: true,
	}, "run-s", nil)
	require.NoError(t, err)

	report := reports[0]
	assert.Equal(t, 1, report.LinksCreated)
	require.Len(t, links.inserted["run-s"], 1)
	assert.Equal(t, int64(1), links.inserted["run-s"][0].PivotUnitID)
	assert.Equal(t, int64(11), links.inserted["run-s"][0].TargetUnitID)

	require.NotNil(t, report.Debug)
	require.NotNil(t, report.Debug.SimilarityStats)
	assert.Equal(t, 1, report.Debug.SimilarityStats.MatchedCount)
	assert.GreaterOrEqual(t, report.Debug.SimilarityStats.ScoreMin, 0.8)
}

func TestAlign_SimilarityDeterministic(t *testing.T) {
	run := func(runID string) []domain.NewLink {
		docs := newMockDocStore()
		units := newMockUnitStore()
		links := newMockLinkStore()
		pivotID := docs.addDoc("pivot", units, nil)
		targetID := docs.addDoc("target", units, nil)
		units.byDoc[pivotID] = []domain.Unit{
			lineUnit(1, pivotID, 1, nil, "même texte"),
		}
		// Two identical candidates: the lowest unit id wins every time.
		units.byDoc[targetID] = []domain.Unit{
			lineUnit(11, targetID, 1, nil, "même texte"),
			lineUnit(12, targetID, 2, nil, "même texte"),
		}
		svc := NewAlignService(docs, units, links)
		_, err := svc.Align(context.Background(), AlignRequest{
			PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
			Strategy: domain.AlignSimilarity,
		}, runID, nil)
		require.NoError(t, err)
		return links.inserted[runID]
	}

	first := run("a")
	second := run("b")
	require.Len(t, first, 1)
	assert.Equal(t, int64(11), first[0].TargetUnitID)
	assert.Equal(t, first[0].TargetUnitID, second[0].TargetUnitID)
}

func TestAlign_Validation(t *testing.T) {
	svc, _, pivotID, targetID := alignFixture(t)

	_, err := svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID}, Strategy: "made_up",
	}, "r", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, Strategy: domain.AlignExternalID,
	}, "r", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Align(context.Background(), AlignRequest{
		PivotDocID: pivotID, TargetDocIDs: []int64{targetID},
		Strategy: domain.AlignSimilarity, SimThreshold: 1.5,
	}, "r", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 1.0, similarity("abc", "abc"))
	assert.Equal(t, 0.0, similarity("abc", "xyz"))
	assert.InDelta(t, 0.75, similarity("abcd", "abcx"), 0.001)
}
