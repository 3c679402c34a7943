package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// Metadata fields checked by validation. Missing required fields make a
// document invalid; missing recommended fields only warn.
var (
	requiredMetaFields    = []string{"title", "language"}
	recommendedMetaFields = []string{"source_path", "source_hash", "doc_role", "resource_type"}
)

// MetaService validates document metadata. Warnings are advisory: validation
// never blocks an operation.
type MetaService struct {
	docs  driven.DocumentStore
	units driven.UnitStore
}

// NewMetaService creates a metadata validation service.
func NewMetaService(docs driven.DocumentStore, units driven.UnitStore) *MetaService {
	return &MetaService{docs: docs, units: units}
}

// Validate checks one document and returns its warnings. Never errors on
// bad metadata, only on storage failures.
func (s *MetaService) Validate(ctx context.Context, docID int64) (*domain.MetaValidationResult, error) {
	doc, err := s.docs.GetDocument(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.MetaValidationResult{
			DocID:    docID,
			Title:    "<not found>",
			IsValid:  false,
			Warnings: []string{fmt.Sprintf("Document doc_id=%d does not exist", docID)},
		}, nil
	}
	if err != nil {
		return nil, err
	}

	result := &domain.MetaValidationResult{
		DocID:    docID,
		Title:    doc.Title,
		IsValid:  true,
		Warnings: []string{},
	}

	fieldValue := map[string]string{
		"title":         doc.Title,
		"language":      doc.Language,
		"source_path":   doc.SourcePath,
		"source_hash":   doc.SourceHash,
		"doc_role":      string(doc.Role),
		"resource_type": doc.ResourceType,
	}

	for _, field := range requiredMetaFields {
		if fieldValue[field] == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Required field '%s' is empty", field))
			result.IsValid = false
		}
	}
	for _, field := range recommendedMetaFields {
		if fieldValue[field] == "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("Recommended field '%s' is empty", field))
		}
	}

	if doc.Role != "" && !domain.ValidDocRole(doc.Role) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("doc_role=%q is not a recognised value", doc.Role))
	}

	lines, err := s.units.LineUnits(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		result.Warnings = append(result.Warnings,
			"Document has no line units (nothing indexed in FTS)")
	}

	return result, nil
}

// ValidateAll checks every document in the corpus.
func (s *MetaService) ValidateAll(ctx context.Context) ([]domain.MetaValidationResult, error) {
	docIDs, err := s.docs.ListDocIDs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]domain.MetaValidationResult, 0, len(docIDs))
	for _, docID := range docIDs {
		result, err := s.Validate(ctx, docID)
		if err != nil {
			return nil, err
		}
		results = append(results, *result)
	}
	return results, nil
}
