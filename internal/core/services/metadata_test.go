package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agrafes/internal/core/domain"
)

func TestValidate_CompleteDocument(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	docID, err := docs.CreateDocumentWithUnits(context.Background(), &domain.Document{
		Title: "Essais", Language: "fr", Role: domain.DocRoleOriginal,
		SourcePath: "/tmp/essais.txt", SourceHash: "abc", ResourceType: "prose",
	}, nil)
	require.NoError(t, err)
	units.byDoc[docID] = []domain.Unit{lineUnit(1, docID, 1, extPtr(1), "texte")}

	svc := NewMetaService(docs, units)
	result, err := svc.Validate(context.Background(), docID)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Warnings)
}

func TestValidate_MissingFields(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	docID, err := docs.CreateDocumentWithUnits(context.Background(), &domain.Document{
		Title: "", Language: "fr", Role: "weird_role",
	}, nil)
	require.NoError(t, err)
	// No line units either.

	svc := NewMetaService(docs, units)
	result, err := svc.Validate(context.Background(), docID)
	require.NoError(t, err)

	// Missing required title makes the document invalid; the rest warns.
	assert.False(t, result.IsValid)
	assert.Contains(t, result.Warnings, "Required field 'title' is empty")
	assert.Contains(t, result.Warnings, "Recommended field 'source_path' is empty")
	assert.Contains(t, result.Warnings, `doc_role="weird_role" is not a recognised value`)
	assert.Contains(t, result.Warnings, "Document has no line units (nothing indexed in FTS)")
}

func TestValidate_UnknownDocument(t *testing.T) {
	svc := NewMetaService(newMockDocStore(), newMockUnitStore())
	result, err := svc.Validate(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	assert.Equal(t, "<not found>", result.Title)
}

func TestValidateAll(t *testing.T) {
	docs := newMockDocStore()
	units := newMockUnitStore()
	for range 3 {
		docID, err := docs.CreateDocumentWithUnits(context.Background(), &domain.Document{
			Title: "t", Language: "fr", Role: domain.DocRoleStandalone,
		}, nil)
		require.NoError(t, err)
		units.byDoc[docID] = []domain.Unit{lineUnit(docID*10, docID, 1, nil, "x")}
	}

	svc := NewMetaService(docs, units)
	results, err := svc.ValidateAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
