package importers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/normalize"
)

// NumberedRe matches the numbered-line convention "[n] text…". (?s) lets the
// content group span soft line breaks inside one DOCX paragraph.
var NumberedRe = regexp.MustCompile(`(?s)^\[\s*(\d+)\s*\]\s*(.+)$`)

// Parsed is the output of one format parser, ready for the atomic store
// write. ExternalIDs lists the line-unit anchors in emission order for
// sequence diagnostics.
type Parsed struct {
	Title       string
	Language    string
	Meta        map[string]any
	Units       []domain.NewUnit
	ExternalIDs []int64
}

// BuildNumberedUnits converts raw paragraphs into units under the
// numbered-line convention: matches become line units carrying the parsed
// anchor, everything else becomes a structure unit. Blank paragraphs are
// skipped; n counts emitted units.
func BuildNumberedUnits(paragraphs []string) ([]domain.NewUnit, []int64) {
	var units []domain.NewUnit
	var externalIDs []int64
	n := 0

	for _, para := range paragraphs {
		text := strings.TrimSpace(para)
		if text == "" {
			continue
		}
		n++

		if m := NumberedRe.FindStringSubmatch(text); m != nil {
			extID, err := strconv.ParseInt(m[1], 10, 64)
			if err == nil {
				externalIDs = append(externalIDs, extID)
				units = append(units, LineUnit(n, &extID, m[2]))
				continue
			}
		}

		units = append(units, domain.NewUnit{
			Kind:     domain.UnitStructure,
			N:        n,
			TextRaw:  normalize.NormalizeRaw(text),
			TextNorm: normalize.Normalize(text),
		})
	}

	return units, externalIDs
}

// LineUnit builds one line unit with normalization and separator count
// applied.
func LineUnit(n int, extID *int64, text string) domain.NewUnit {
	raw := normalize.NormalizeRaw(text)
	unit := domain.NewUnit{
		Kind:       domain.UnitLine,
		N:          n,
		ExternalID: extID,
		TextRaw:    raw,
		TextNorm:   normalize.Normalize(text),
	}
	if sep := normalize.CountSep(raw); sep > 0 {
		unit.Metadata = map[string]any{"sep_count": sep}
	}
	return unit
}

// AnalyzeExternalIDs returns (duplicates, holes, nonMonotonic) diagnostics
// for a sequence of anchors in emission order. Holes are the integers absent
// between the minimum and maximum anchor.
func AnalyzeExternalIDs(externalIDs []int64) (duplicates, holes, nonMonotonic []int64) {
	seen := map[int64]bool{}
	dupSeen := map[int64]bool{}

	for i, eid := range externalIDs {
		if seen[eid] && !dupSeen[eid] {
			duplicates = append(duplicates, eid)
			dupSeen[eid] = true
		}
		seen[eid] = true
		if i > 0 && eid <= externalIDs[i-1] {
			nonMonotonic = append(nonMonotonic, eid)
		}
	}

	if len(externalIDs) > 0 {
		minID, maxID := externalIDs[0], externalIDs[0]
		for _, eid := range externalIDs {
			if eid < minID {
				minID = eid
			}
			if eid > maxID {
				maxID = eid
			}
		}
		for expected := minID; expected <= maxID; expected++ {
			if !seen[expected] {
				holes = append(holes, expected)
			}
		}
	}

	return duplicates, holes, nonMonotonic
}

// FileHash returns the hex SHA-256 of a file's bytes, for source_hash.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
