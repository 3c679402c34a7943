package exporters

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/agrafes/internal/core/domain"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func extPtr(v int64) *int64 { return &v }

func TestExportTEI(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	docID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "Tom & Jerry <v1>", Language: "fr", Role: domain.DocRoleOriginal,
		SourceHash: "abc123",
	}, []domain.NewUnit{
		{Kind: domain.UnitStructure, N: 1, TextRaw: "Chapitre", TextNorm: "Chapitre"},
		{Kind: domain.UnitLine, N: 2, ExternalID: extPtr(1),
			TextRaw: `Il a dit "bonjour" & <adieu>` + "\x01", TextNorm: `Il a dit "bonjour" & <adieu>` + "\x01"},
	})
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "out", "doc.tei.xml")
	require.NoError(t, ExportTEI(ctx, store.DocumentStore(), store.UnitStore(), docID, outPath, TEIOptions{}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	content := string(data)

	assert.True(t, strings.HasPrefix(content, `<?xml version="1.0" encoding="UTF-8"?>`))
	// Title and text are escaped.
	assert.Contains(t, content, "Tom &amp; Jerry &lt;v1&gt;")
	assert.Contains(t, content, "&quot;bonjour&quot; &amp; &lt;adieu&gt;")
	// The XML 1.0-invalid control byte is filtered out entirely.
	assert.NotContains(t, content, "\x01")
	// Structure units are off by default.
	assert.NotContains(t, content, "Chapitre")
	assert.Contains(t, content, `xml:lang="fr"`)
	assert.Contains(t, content, `n="1"`)

	// With the flag, structure units are exported as <ab>.
	withStructure := filepath.Join(t.TempDir(), "full.xml")
	require.NoError(t, ExportTEI(ctx, store.DocumentStore(), store.UnitStore(), docID,
		withStructure, TEIOptions{IncludeStructure: true}))
	data, err = os.ReadFile(withStructure)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<ab type="structure">Chapitre</ab>`)
}

func TestExportTEI_UnknownDoc(t *testing.T) {
	store := newStore(t)
	err := ExportTEI(context.Background(), store.DocumentStore(), store.UnitStore(),
		42, filepath.Join(t.TempDir(), "x.xml"), TEIOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// seedLinks creates a pivot/target pair with one link.
func seedLinks(t *testing.T, store *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	pivotID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "pivot", Language: "fr", Role: domain.DocRoleOriginal,
	}, []domain.NewUnit{
		{Kind: domain.UnitLine, N: 1, ExternalID: extPtr(1), TextRaw: "texte, avec virgule", TextNorm: "texte, avec virgule"},
	})
	require.NoError(t, err)
	targetID, err := store.DocumentStore().CreateDocumentWithUnits(ctx, &domain.Document{
		Title: "target", Language: "en", Role: domain.DocRoleTranslation,
	}, []domain.NewUnit{
		{Kind: domain.UnitLine, N: 1, ExternalID: extPtr(1), TextRaw: "text with\ttab", TextNorm: "text with\ttab"},
	})
	require.NoError(t, err)

	pivotLines, err := store.UnitStore().LineUnits(ctx, pivotID)
	require.NoError(t, err)
	targetLines, err := store.UnitStore().LineUnits(ctx, targetID)
	require.NoError(t, err)
	require.NoError(t, store.LinkStore().InsertLinks(ctx, "run-1", pivotID, targetID, []domain.NewLink{
		{PivotUnitID: pivotLines[0].ID, TargetUnitID: targetLines[0].ID, ExternalID: extPtr(1)},
	}))
}

func TestExportAlignCSV(t *testing.T) {
	store := newStore(t)
	seedLinks(t, store)

	outPath := filepath.Join(t.TempDir(), "links.csv")
	rows, err := ExportAlignCSV(context.Background(), store.LinkStore(),
		domain.AlignExportFilter{}, outPath, ',')
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, alignHeader, records[0])
	// The embedded comma survives the CSV quoting.
	assert.Equal(t, "texte, avec virgule", records[1][6])
	assert.Equal(t, "", records[1][8]) // unreviewed status is empty
}

func TestExportAlignCSV_TSV(t *testing.T) {
	store := newStore(t)
	seedLinks(t, store)

	outPath := filepath.Join(t.TempDir(), "links.tsv")
	rows, err := ExportAlignCSV(context.Background(), store.LinkStore(),
		domain.AlignExportFilter{}, outPath, '\t')
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	f, err := os.Open(outPath)
	require.NoError(t, err)
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = '\t'
	records, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	// The embedded tab in the target text is quoted, not a field break.
	assert.Equal(t, "text with\ttab", records[1][7])
}

func TestExportRunReport_JSONL(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.RunStore().CreateRun(ctx, &domain.Run{
		ID: "run-1", Kind: domain.RunImport, Params: map[string]any{"mode": "tei"},
	}))
	require.NoError(t, store.RunStore().CreateRun(ctx, &domain.Run{
		ID: "run-2", Kind: domain.RunIndex, Params: map[string]any{},
	}))

	outPath := filepath.Join(t.TempDir(), "runs.jsonl")
	count, err := ExportRunReport(ctx, store.RunStore(), "", outPath, FormatJSONL)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"run_id":"run-1"`)

	// Filtering to one run.
	single := filepath.Join(t.TempDir(), "one.jsonl")
	count, err = ExportRunReport(ctx, store.RunStore(), "run-2", single, "")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExportRunReport_HTMLEscapes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.RunStore().CreateRun(ctx, &domain.Run{
		ID: "run-<script>alert(1)</script>", Kind: domain.RunQuery,
		Params: map[string]any{},
	}))

	outPath := filepath.Join(t.TempDir(), "runs.html")
	count, err := ExportRunReport(ctx, store.RunStore(), "", outPath, FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	content := string(data)
	assert.NotContains(t, content, "<script>")
	assert.Contains(t, content, "&lt;script&gt;")
}

func TestExportRunReport_BadFormat(t *testing.T) {
	store := newStore(t)
	_, err := ExportRunReport(context.Background(), store.RunStore(), "",
		filepath.Join(t.TempDir(), "x"), "yaml")
	assert.Error(t, err)
}
