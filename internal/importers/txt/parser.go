// Package txt parses plain-text files using the numbered-lines convention:
// lines matching "[n] text" become line units, other non-blank lines become
// structure units.
package txt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agrafes/internal/importers"
	"github.com/custodia-labs/agrafes/internal/importers/encoding"
)

// Parse decodes and parses one TXT file.
func Parse(path string) (*importers.Parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading TXT file: %w", err)
	}

	text, enc, method, err := encoding.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	lines := strings.Split(strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n"), "\n")
	units, externalIDs := importers.BuildNumberedUnits(lines)

	return &importers.Parsed{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Meta: map[string]any{
			"encoding":   enc,
			"enc_method": method,
		},
		Units:       units,
		ExternalIDs: externalIDs,
	}, nil
}
