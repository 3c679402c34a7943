// Package docxnum parses DOCX files using the numbered-lines convention:
// paragraphs matching "[n] text" become line units carrying the parsed
// anchor, other non-blank paragraphs become structure units.
package docxnum

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agrafes/internal/importers"
)

// Parse reads one DOCX file and builds its unit graph.
func Parse(path string) (*importers.Parsed, error) {
	paragraphs, err := importers.ExtractDOCXParagraphs(path)
	if err != nil {
		return nil, err
	}

	units, externalIDs := importers.BuildNumberedUnits(paragraphs)

	return &importers.Parsed{
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Units:       units,
		ExternalIDs: externalIDs,
	}, nil
}
