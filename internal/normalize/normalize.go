// Package normalize implements the text normalization policy that produces
// text_norm from decoded source text. The policy is deterministic: identical
// input yields byte-identical output, which is what makes FTS rebuilds and
// curation diffs reproducible.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator is the domain separator character preserved in text_raw and
// replaced by a space in text_norm.
const Separator = '¤'

// Characters removed entirely from text_norm.
var removeChars = map[rune]struct{}{
	'\u200B': {}, // ZERO WIDTH SPACE
	'\u200C': {}, // ZERO WIDTH NON-JOINER
	'\u200D': {}, // ZERO WIDTH JOINER
	'\u2060': {}, // WORD JOINER
	'\uFEFF': {}, // BOM / ZERO WIDTH NO-BREAK SPACE
	'\u00AD': {}, // SOFT HYPHEN
}

// Characters mapped to one ASCII space in text_norm.
var spaceChars = map[rune]struct{}{
	'\u00A0':  {}, // NON-BREAKING SPACE
	'\u202F':  {}, // NARROW NO-BREAK SPACE
	'\u2007':  {}, // FIGURE SPACE
	'\u2009':  {}, // THIN SPACE
	Separator: {}, // CURRENCY SIGN (¤), the domain separator
}

// Normalize applies the full policy and returns text_norm.
//
// Steps, in order:
//  1. Unicode NFC composition.
//  2. Line-ending normalization (CRLF/CR → LF).
//  3. Removal of zero-width and format invisibles.
//  4. NBSP/NNBSP/thin spaces and ¤ → one ASCII space.
//  5. Removal of ASCII controls 0x00..0x1F except TAB, LF, CR.
func Normalize(text string) string {
	if text == "" {
		return text
	}

	text = norm.NFC.String(text)
	text = normalizeLineEndings(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if _, ok := removeChars[r]; ok {
			continue
		}
		if _, ok := spaceChars[r]; ok {
			b.WriteByte(' ')
			continue
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeRaw prepares text_raw: only line endings are normalized, every
// other byte of the decoded text is kept, ¤ included.
func NormalizeRaw(text string) string {
	return normalizeLineEndings(text)
}

// CountSep counts ¤ separators in text_raw, for unit metadata.
func CountSep(textRaw string) int {
	return strings.Count(textRaw, string(Separator))
}

// Display returns a UI-friendly rendering of text_raw with the ¤ separator
// shown as a visible boundary. Never stored.
func Display(textRaw string) string {
	return strings.ReplaceAll(textRaw, string(Separator), " | ")
}

func normalizeLineEndings(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
