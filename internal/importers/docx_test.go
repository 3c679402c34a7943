package importers

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDOCX builds a minimal DOCX file with the given paragraph texts.
func writeDOCX(t *testing.T, dir string, paragraphs []string) string {
	t.Helper()

	body := ""
	for _, p := range paragraphs {
		body += fmt.Sprintf("<w:p><w:r><w:t>%s</w:t></w:r></w:p>", p)
	}
	documentXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`

	path := filepath.Join(dir, "fixture.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func TestExtractDOCXParagraphs(t *testing.T) {
	path := writeDOCX(t, t.TempDir(), []string{
		"Introduction",
		"[1] Bonjour le monde.",
		"[2] Deuxième ligne.",
	})

	paragraphs, err := ExtractDOCXParagraphs(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Introduction",
		"[1] Bonjour le monde.",
		"[2] Deuxième ligne.",
	}, paragraphs)
}

func TestExtractDOCXParagraphs_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	_, err := ExtractDOCXParagraphs(path)
	assert.Error(t, err)
}

func TestExtractDOCXParagraphs_MissingDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/other.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = ExtractDOCXParagraphs(path)
	assert.Error(t, err)
}
