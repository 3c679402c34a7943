// Package docxpara parses DOCX files where every non-empty paragraph becomes
// a line unit. The 1-based paragraph position is stored as both n and
// external_id, which keeps the sequence monotone and gap-free and makes the
// document alignable by position even without explicit numbering.
package docxpara

import (
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/importers"
)

// Parse reads one DOCX file and builds line units from its paragraphs.
func Parse(path string) (*importers.Parsed, error) {
	paragraphs, err := importers.ExtractDOCXParagraphs(path)
	if err != nil {
		return nil, err
	}

	var units []domain.NewUnit
	var externalIDs []int64
	n := 0

	for _, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text == "" {
			continue
		}
		n++
		extID := int64(n)
		externalIDs = append(externalIDs, extID)
		units = append(units, importers.LineUnit(n, &extID, text))
	}

	return &importers.Parsed{
		Title:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Units:       units,
		ExternalIDs: externalIDs,
	}, nil
}
