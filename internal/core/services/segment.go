package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
	"github.com/custodia-labs/agrafes/internal/logger"
	"github.com/custodia-labs/agrafes/internal/normalize"
)

// abbrevRe matches tokens whose terminal period must not end a sentence:
// honorifics, month abbreviations, scholarly shorthand, decimal numbers.
var abbrevRe = regexp.MustCompile(
	`\b(?:M|Mme|Mmes|Dr|Prof|St|Sgt|Cdt|Lt|Cpt|Mlle|Mlles|No|Nos|Mr|Mrs|Ms)\.` +
		`|\b(?:Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)\.` +
		`|\b(?:p|pp|vol|ed|eds|fig|tab|art|sect|cf|vs|ibid|loc|op|cit)\.` +
		`|\d+\.\d+`)

// splitRe finds sentence boundaries: end punctuation, whitespace, then a
// capital letter, quote, or opening parenthesis. Go's regexp has no
// lookbehind, so the boundary is located by matching the punctuation too and
// cutting after it.
var splitRe = regexp.MustCompile(`[.!?]\s+[A-ZÀ-Ÿ"\x{2018}\x{2019}\x{201C}\x{201D}(]`)

// SegmentText splits text into sentence strings using rule-based regex.
//
// Known abbreviations are replaced by placeholders so their periods are
// invisible to the boundary search, then restored in each fragment. When no
// boundary is found the whole text comes back as a single sentence. lang is
// reserved for language-specific rule packs.
func SegmentText(text, lang string) []string {
	_ = lang
	if strings.TrimSpace(text) == "" {
		if text == "" {
			return []string{}
		}
		return []string{text}
	}

	// Step 1: protect abbreviations.
	placeholders := map[string]string{}
	counter := 0
	protected := abbrevRe.ReplaceAllStringFunc(text, func(m string) string {
		ph := fmt.Sprintf("\x00A%d\x00", counter)
		placeholders[ph] = m
		counter++
		return ph
	})

	// Step 2: split after end punctuation. The match includes the opening
	// rune of the next sentence, so the cut lands right after the
	// punctuation character.
	var fragments []string
	last := 0
	for _, loc := range splitRe.FindAllStringIndex(protected, -1) {
		cut := loc[0] + 1 // after the [.!?]
		fragments = append(fragments, protected[last:cut])
		last = cut
	}
	fragments = append(fragments, protected[last:])

	// Step 3: restore abbreviations in each fragment.
	var sentences []string
	for _, fragment := range fragments {
		restored := fragment
		for ph, original := range placeholders {
			restored = strings.ReplaceAll(restored, ph, original)
		}
		if trimmed := strings.TrimSpace(restored); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}

	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}
	return sentences
}

// SegmentService replaces a document's line units with sentence-level units.
type SegmentService struct {
	units driven.UnitStore
}

// NewSegmentService creates a segmentation service.
func NewSegmentService(units driven.UnitStore) *SegmentService {
	return &SegmentService{units: units}
}

// Resegment splits every line unit of docID into sentences and replaces the
// line-unit set in one transaction. Alignment links touching the document
// are dropped (they reference replaced units) and the count is surfaced as a
// warning; the FTS index is stale afterwards and the caller owns the rebuild.
func (s *SegmentService) Resegment(
	ctx context.Context, docID int64, lang string, log *logger.RunLog,
) (*domain.SegmentationReport, error) {
	lines, err := s.units.LineUnits(ctx, docID)
	if err != nil {
		return nil, err
	}

	report := &domain.SegmentationReport{
		DocID:      docID,
		UnitsInput: len(lines),
		Warnings:   []string{},
	}
	if len(lines) == 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("No line units found for doc_id=%d", docID))
		log.Warnf("resegment: no line units for doc_id=%d", docID)
		return report, nil
	}

	var newUnits []domain.NewUnit
	n := 0
	for _, line := range lines {
		for _, sentence := range SegmentText(line.TextNorm, lang) {
			n++
			unit := domain.NewUnit{
				Kind:     domain.UnitLine,
				N:        n,
				TextRaw:  sentence,
				TextNorm: normalize.Normalize(sentence),
			}
			newUnits = append(newUnits, unit)
		}
	}

	linksDropped, err := s.units.ReplaceLineUnits(ctx, docID, newUnits)
	if err != nil {
		return nil, err
	}

	report.UnitsOutput = len(newUnits)
	report.LinksDropped = linksDropped
	if linksDropped > 0 {
		warn := fmt.Sprintf("Deleted %d alignment_link(s) for doc_id=%d (stale after resegmentation)",
			linksDropped, docID)
		report.Warnings = append(report.Warnings, warn)
		log.Warnf("%s", warn)
	}

	log.Infof("Resegmented doc_id=%d: %d line units -> %d sentence units",
		docID, report.UnitsInput, report.UnitsOutput)
	return report, nil
}
