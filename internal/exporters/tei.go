package exporters

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// TEIOptions configures a structured XML export.
type TEIOptions struct {
	// IncludeStructure also exports structure units, as <ab> elements.
	IncludeStructure bool
}

// ExportTEI writes one document as TEI-flavoured XML to outPath: UTF-8 with
// an XML declaration, full escaping, an XML 1.0 invalid-codepoint filter,
// and a small header block with the document's identifying metadata.
func ExportTEI(
	ctx context.Context, docs driven.DocumentStore, units driven.UnitStore,
	docID int64, outPath string, opts TEIOptions,
) error {
	doc, err := docs.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("document %d: %w", docID, err)
	}

	var docUnits []domain.Unit
	if opts.IncludeStructure {
		docUnits, err = units.DocUnits(ctx, docID)
	} else {
		docUnits, err = units.LineUnits(ctx, docID)
	}
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<TEI xmlns="http://www.tei-c.org/ns/1.0">` + "\n")
	b.WriteString("  <teiHeader>\n")
	b.WriteString("    <fileDesc>\n")
	b.WriteString("      <titleStmt>\n")
	fmt.Fprintf(&b, "        <title>%s</title>\n", xmlEscape(doc.Title))
	b.WriteString("      </titleStmt>\n")
	b.WriteString("      <sourceDesc>\n")
	fmt.Fprintf(&b, "        <p>doc_id=%d role=%s", doc.ID, xmlEscape(string(doc.Role)))
	if doc.ResourceType != "" {
		fmt.Fprintf(&b, " resource_type=%s", xmlEscape(doc.ResourceType))
	}
	if doc.SourceHash != "" {
		fmt.Fprintf(&b, " source_hash=%s", xmlEscape(doc.SourceHash))
	}
	b.WriteString("</p>\n")
	b.WriteString("      </sourceDesc>\n")
	b.WriteString("    </fileDesc>\n")
	b.WriteString("  </teiHeader>\n")
	fmt.Fprintf(&b, `  <text xml:lang="%s">`+"\n", xmlEscape(doc.Language))
	b.WriteString("    <body>\n")

	for _, u := range docUnits {
		text := xmlEscape(filterInvalidXML(u.TextNorm))
		switch u.Kind {
		case domain.UnitLine:
			if u.ExternalID != nil {
				fmt.Fprintf(&b, `      <p n="%d" xml:id="u%d">%s</p>`+"\n", *u.ExternalID, u.ID, text)
			} else {
				fmt.Fprintf(&b, `      <p xml:id="u%d">%s</p>`+"\n", u.ID, text)
			}
		case domain.UnitStructure:
			fmt.Fprintf(&b, `      <ab type="structure">%s</ab>`+"\n", text)
		}
	}

	b.WriteString("    </body>\n")
	b.WriteString("  </text>\n")
	b.WriteString("</TEI>\n")

	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("writing TEI export: %w", err)
	}
	return nil
}

// xmlEscape escapes the five XML special characters.
func xmlEscape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

// filterInvalidXML drops code points that XML 1.0 forbids even escaped.
func filterInvalidXML(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0x9 || r == 0xA || r == 0xD:
			return r
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		}
		return -1
	}, s)
}
