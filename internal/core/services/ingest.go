package services

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/importers"
	"github.com/custodia-labs/agrafes/internal/importers/docxnum"
	"github.com/custodia-labs/agrafes/internal/importers/docxpara"
	"github.com/custodia-labs/agrafes/internal/importers/tei"
	"github.com/custodia-labs/agrafes/internal/importers/txt"
	"github.com/custodia-labs/agrafes/internal/logger"
)

// ImportService runs the ingestion pipeline: parse, normalize, diagnose,
// write atomically.
type ImportService struct {
	docs driven.DocumentStore
}

// NewImportService creates an import service.
func NewImportService(docs driven.DocumentStore) *ImportService {
	return &ImportService{docs: docs}
}

// Import ingests one source file. The document row and its full unit graph
// land in a single transaction; a failed parse or write leaves no trace.
func (s *ImportService) Import(
	ctx context.Context, req domain.ImportRequest, log *logger.RunLog,
) (*domain.ImportReport, error) {
	if !domain.ValidImportMode(req.Mode) {
		return nil, fmt.Errorf("unsupported import mode %q: %w", req.Mode, domain.ErrValidation)
	}
	if req.Path == "" {
		return nil, fmt.Errorf("path is required: %w", domain.ErrValidation)
	}
	if _, err := os.Stat(req.Path); err != nil {
		return nil, fmt.Errorf("source file %s: %w", req.Path, domain.ErrValidation)
	}
	if req.Mode != domain.ImportTEI && req.Language == "" {
		return nil, fmt.Errorf("language is required for %s imports: %w", req.Mode, domain.ErrValidation)
	}

	log.Infof("Starting import of %s (mode=%s)", req.Path, req.Mode)

	parsed, err := s.parse(req)
	if err != nil {
		return nil, err
	}

	sourceHash, err := importers.FileHash(req.Path)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		Title:        req.Title,
		Language:     req.Language,
		Role:         req.DocRole,
		ResourceType: req.ResourceType,
		Metadata:     parsed.Meta,
		SourcePath:   req.Path,
		SourceHash:   sourceHash,
	}
	if doc.Title == "" {
		doc.Title = parsed.Title
	}
	if doc.Language == "" {
		if parsed.Language != "" {
			doc.Language = parsed.Language
		} else {
			doc.Language = "und"
		}
	}
	if doc.Role == "" {
		doc.Role = domain.DocRoleStandalone
	}
	if !domain.ValidDocRole(doc.Role) {
		return nil, fmt.Errorf("doc_role %q: %w", doc.Role, domain.ErrValidation)
	}

	docID, err := s.docs.CreateDocumentWithUnits(ctx, doc, parsed.Units)
	if err != nil {
		return nil, fmt.Errorf("writing document: %w", err)
	}
	log.Infof("Created document doc_id=%d title=%q", docID, doc.Title)

	report := buildImportReport(docID, parsed)
	for _, w := range report.Warnings {
		log.Warnf("%s", w)
	}
	log.Infof("Import complete: %d units (%d line, %d structure)",
		report.UnitsTotal, report.UnitsLine, report.UnitsStructure)

	return report, nil
}

// parse dispatches to the format parser for the request mode.
func (s *ImportService) parse(req domain.ImportRequest) (*importers.Parsed, error) {
	switch req.Mode {
	case domain.ImportDocxNumbered:
		return docxnum.Parse(req.Path)
	case domain.ImportTxtNumbered:
		return txt.Parse(req.Path)
	case domain.ImportDocxParas:
		return docxpara.Parse(req.Path)
	case domain.ImportTEI:
		unitElement := req.TEIUnit
		if unitElement == "" {
			unitElement = "p"
		}
		return tei.Parse(req.Path, unitElement)
	}
	return nil, fmt.Errorf("unsupported import mode %q: %w", req.Mode, domain.ErrValidation)
}

// buildImportReport assembles counts and sequence diagnostics.
func buildImportReport(docID int64, parsed *importers.Parsed) *domain.ImportReport {
	duplicates, holes, nonMonotonic := importers.AnalyzeExternalIDs(parsed.ExternalIDs)

	report := &domain.ImportReport{
		DocID:          docID,
		UnitsTotal:     len(parsed.Units),
		UnitsLine:      len(parsed.ExternalIDs),
		UnitsStructure: len(parsed.Units) - len(parsed.ExternalIDs),
		Duplicates:     duplicates,
		Holes:          holes,
		NonMonotonic:   nonMonotonic,
		Warnings:       []string{},
	}
	if enc, ok := parsed.Meta["encoding"].(string); ok {
		report.Encoding = enc
	}
	if method, ok := parsed.Meta["enc_method"].(string); ok {
		report.EncodingMethod = method
	}

	if len(duplicates) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Duplicate external_id(s) found: %v", duplicates))
	}
	if len(holes) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Holes in external_id sequence: %v", holes))
	}
	if len(nonMonotonic) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Non-monotonic external_id(s): %v", nonMonotonic))
	}
	if report.EncodingMethod == "cp1252-fallback" || report.EncodingMethod == "latin-1-fallback" {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Encoding detection fell back to %s", report.Encoding))
	}

	return report
}
