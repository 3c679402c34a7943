package tei

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTEI(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const namespacedTEI = `<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title>Les Essais</title></titleStmt>
    </fileDesc>
  </teiHeader>
  <text xml:lang="fr">
    <body>
      <p xml:id="p1">Premier paragraphe.</p>
      <p xml:id="p2">Deuxième <hi>paragraphe</hi> enrichi.</p>
      <p>Sans identifiant.</p>
    </body>
  </text>
</TEI>`

func TestParse_NamespacedTEI(t *testing.T) {
	path := writeTEI(t, "essais.xml", namespacedTEI)

	parsed, err := Parse(path, "p")
	require.NoError(t, err)

	assert.Equal(t, "Les Essais", parsed.Title)
	assert.Equal(t, "fr", parsed.Language)
	require.Len(t, parsed.Units, 3)

	// xml:id trailing digits become external ids; elements without an id
	// fall back to their position.
	assert.Equal(t, []int64{1, 2, 3}, parsed.ExternalIDs)

	// Nested elements contribute their text in document order.
	assert.Equal(t, "Deuxième paragraphe enrichi.", parsed.Units[1].TextRaw)
}

const plainTEI = `<?xml version="1.0"?>
<TEI lang="de">
  <text>
    <body>
      <s id="seg_041">Erster Satz.</s>
      <s id="seg_042">Zweiter Satz.</s>
    </body>
  </text>
</TEI>`

func TestParse_NoNamespaceSentences(t *testing.T) {
	path := writeTEI(t, "plain.xml", plainTEI)

	parsed, err := Parse(path, "s")
	require.NoError(t, err)

	// No teiHeader title: the file basename is the fallback.
	assert.Equal(t, "plain", parsed.Title)
	assert.Equal(t, "de", parsed.Language)
	assert.Equal(t, []int64{41, 42}, parsed.ExternalIDs)
	assert.Equal(t, "Erster Satz.", parsed.Units[0].TextRaw)
}

func TestParse_BadUnitElement(t *testing.T) {
	path := writeTEI(t, "x.xml", plainTEI)
	_, err := Parse(path, "div")
	assert.Error(t, err)
}

func TestParse_InvalidXML(t *testing.T) {
	path := writeTEI(t, "broken.xml", "<TEI><p>unclosed")
	_, err := Parse(path, "p")
	assert.Error(t, err)
}
