package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

// seedAlignedPair inserts a pivot doc {1,2,3}, a target doc {2,3,4}, and
// links for the shared anchors 2 and 3. Returns (pivotID, targetID, linkIDs).
func seedAlignedPair(t *testing.T, store *Store) (int64, int64, []domain.AuditRow) {
	t.Helper()
	ctx := context.Background()

	pivotID := seedDoc(t, store, "pivot", "fr", []int64{1, 2, 3})
	targetID := seedDoc(t, store, "target", "en", []int64{2, 3, 4})

	pivotLines, err := store.UnitStore().LineUnits(ctx, pivotID)
	require.NoError(t, err)
	targetLines, err := store.UnitStore().LineUnits(ctx, targetID)
	require.NoError(t, err)

	// pivot ext 2 -> target ext 2, pivot ext 3 -> target ext 3.
	err = store.LinkStore().InsertLinks(ctx, "run-1", pivotID, targetID, []domain.NewLink{
		{PivotUnitID: pivotLines[1].ID, TargetUnitID: targetLines[0].ID, ExternalID: int64Ptr(2)},
		{PivotUnitID: pivotLines[2].ID, TargetUnitID: targetLines[1].ID, ExternalID: int64Ptr(3)},
	})
	require.NoError(t, err)

	rows, _, err := store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	return pivotID, targetID, rows
}

func TestQuality(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, targetID, _ := seedAlignedPair(t, store)

	report, err := store.LinkStore().Quality(ctx, pivotID, targetID, "")
	require.NoError(t, err)

	stats := report.Stats
	assert.Equal(t, int64(3), stats.TotalPivotUnits)
	assert.Equal(t, int64(3), stats.TotalTargetUnits)
	assert.Equal(t, int64(2), stats.TotalLinks)
	assert.Equal(t, int64(2), stats.CoveredPivotUnits)
	assert.Equal(t, int64(2), stats.CoveredTargetUnits)
	assert.InDelta(t, 66.67, stats.CoveragePct, 0.01)
	assert.Equal(t, int64(1), stats.OrphanPivotCount)
	assert.Equal(t, int64(1), stats.OrphanTargetCount)
	assert.Equal(t, int64(0), stats.CollisionCount)
	assert.Equal(t, int64(2), stats.StatusCounts["unreviewed"])
	assert.Equal(t, int64(0), stats.StatusCounts["accepted"])

	require.Len(t, report.SampleOrphanPivot, 1)
	require.NotNil(t, report.SampleOrphanPivot[0].ExternalID)
	assert.Equal(t, int64(1), *report.SampleOrphanPivot[0].ExternalID)
	require.Len(t, report.SampleOrphanTarget, 1)
	assert.Equal(t, int64(4), *report.SampleOrphanTarget[0].ExternalID)

	// Scoping to an unknown run sees no links at all.
	empty, err := store.LinkStore().Quality(ctx, pivotID, targetID, "no-such-run")
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Stats.TotalLinks)
	assert.Equal(t, int64(3), empty.Stats.OrphanPivotCount)
}

func TestAuditPage_Lookahead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, targetID, _ := seedAlignedPair(t, store)

	page1, hasMore, err := store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Limit: 1, Offset: 0,
	})
	require.NoError(t, err)
	require.Len(t, page1, 1)
	assert.True(t, hasMore)
	assert.NotEmpty(t, page1[0].PivotText)
	assert.NotEmpty(t, page1[0].TargetText)

	page2, hasMore, err := store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Limit: 1, Offset: 1,
	})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.False(t, hasMore)

	// Pagination consistency: pages concatenate to the full listing.
	full, _, err := store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Limit: 10, Offset: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, full, append(page1, page2...))
}

func TestLinkStatusLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, targetID, rows := seedAlignedPair(t, store)

	accepted := domain.LinkAccepted
	require.NoError(t, store.LinkStore().UpdateLinkStatus(ctx, rows[0].LinkID, &accepted))
	// Idempotent.
	require.NoError(t, store.LinkStore().UpdateLinkStatus(ctx, rows[0].LinkID, &accepted))

	statusFilter := "accepted"
	filtered, _, err := store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Status: &statusFilter, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, rows[0].LinkID, filtered[0].LinkID)

	// Clear back to unreviewed.
	require.NoError(t, store.LinkStore().UpdateLinkStatus(ctx, rows[0].LinkID, nil))
	unreviewed := "unreviewed"
	filtered, _, err = store.LinkStore().AuditPage(ctx, domain.AuditFilter{
		PivotDocID: pivotID, TargetDocID: targetID, Status: &unreviewed, Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	err = store.LinkStore().UpdateLinkStatus(ctx, 99999, &accepted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRetargetAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_, targetID, rows := seedAlignedPair(t, store)

	targetLines, err := store.UnitStore().LineUnits(ctx, targetID)
	require.NoError(t, err)

	// Retarget to the unused target unit (ext 4).
	require.NoError(t, store.LinkStore().RetargetLink(ctx, rows[0].LinkID, targetLines[2].ID))

	// Unknown target unit.
	err = store.LinkStore().RetargetLink(ctx, rows[0].LinkID, 99999)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := store.LinkStore().DeleteLink(ctx, rows[0].LinkID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	deleted, err = store.LinkStore().DeleteLink(ctx, rows[0].LinkID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestRetarget_RejectsStructureUnit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, targetID, rows := seedAlignedPair(t, store)
	_ = pivotID

	// Add a structure unit to the target document.
	structID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "other", Language: "fr", Role: domain.DocRoleStandalone,
	}, []domain.NewUnit{
		{Kind: domain.UnitStructure, N: 1, TextRaw: "Heading", TextNorm: "Heading"},
	})
	require.NoError(t, err)
	units, err := store.UnitStore().DocUnits(ctx, structID)
	require.NoError(t, err)
	require.Len(t, units, 1)

	err = store.LinkStore().RetargetLink(ctx, rows[0].LinkID, units[0].ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_ = targetID
}

func TestAlignedUnits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, _, _ := seedAlignedPair(t, store)

	pivotLines, err := store.UnitStore().LineUnits(ctx, pivotID)
	require.NoError(t, err)

	// Outgoing link from pivot ext 2.
	aligned, err := store.LinkStore().AlignedUnits(ctx, pivotLines[1].ID, 20)
	require.NoError(t, err)
	require.Len(t, aligned, 1)
	assert.Equal(t, "en", aligned[0].Language)
	assert.Equal(t, "target", aligned[0].Title)

	// A non-positive limit leaves the result uncapped.
	aligned, err = store.LinkStore().AlignedUnits(ctx, pivotLines[1].ID, 0)
	require.NoError(t, err)
	assert.Len(t, aligned, 1)
}

func TestExportRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pivotID, _, _ := seedAlignedPair(t, store)

	rows, err := store.LinkStore().ExportRows(ctx, domain.AlignExportFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, pivotID, rows[0].PivotDocID)
	assert.NotEmpty(t, rows[0].PivotText)

	extID := int64(3)
	rows, err = store.LinkStore().ExportRows(ctx, domain.AlignExportFilter{ExternalID: &extID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(3), *rows[0].ExternalID)
}
