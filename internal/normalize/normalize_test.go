package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Invisibles(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"zero width space", "a\u200Bb", "ab"},
		{"zero width non-joiner", "a\u200Cb", "ab"},
		{"zero width joiner", "a\u200Db", "ab"},
		{"word joiner", "a\u2060b", "ab"},
		{"bom", "\uFEFFabc", "abc"},
		{"soft hyphen", "co\u00ADopération", "coopération"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_SpaceMapping(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nbsp", "a\u00A0b", "a b"},
		{"narrow nbsp", "a\u202Fb", "a b"},
		{"figure space", "a\u2007b", "a b"},
		{"thin space", "a\u2009b", "a b"},
		{"separator", "chat¤chien", "chat chien"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_LineEndings(t *testing.T) {
	assert.Equal(t, "a\nb\nc", Normalize("a\r\nb\rc"))
	assert.Equal(t, "a\nb\nc", NormalizeRaw("a\r\nb\rc"))
}

func TestNormalize_Controls(t *testing.T) {
	// TAB, LF, CR survive; other C0 controls are dropped.
	assert.Equal(t, "a\tb", Normalize("a\tb"))
	assert.Equal(t, "ab", Normalize("a\x00b"))
	assert.Equal(t, "ab", Normalize("a\x1fb"))
}

func TestNormalize_NFC(t *testing.T) {
	// e + combining acute composes to é.
	assert.Equal(t, "é", Normalize("e\u0301"))
}

func TestNormalize_Deterministic(t *testing.T) {
	input := "\uFEFF[1] Le chat¤le chien\u200B jouent.\r\n"
	first := Normalize(input)
	second := Normalize(input)
	assert.Equal(t, first, second)
	// Idempotent on its own output.
	assert.Equal(t, first, Normalize(first))
}

func TestSeparatorPreservation(t *testing.T) {
	raw := NormalizeRaw("un¤deux¤trois")
	assert.Equal(t, 2, CountSep(raw))
	assert.False(t, strings.ContainsRune(Normalize(raw), Separator))
	assert.Equal(t, "un | deux | trois", Display(raw))
}

func TestNormalizeRaw_KeepsSeparatorAndInvisibles(t *testing.T) {
	input := "a\u00A0b¤c\u200B"
	assert.Equal(t, input, NormalizeRaw(input))
}
