// Package tei parses lightly-structured TEI-like XML. The unit element is
// configurable ("p" by default, "s" for sentence-level sources). Matching is
// by local element name, so any namespace prefix — or none — works.
package tei

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/importers"
)

// xmlNS is the namespace of the xml:lang / xml:id attributes.
const xmlNS = "http://www.w3.org/XML/1998/namespace"

var trailingDigitsRe = regexp.MustCompile(`(\d+)$`)

// Parse reads one TEI XML file, extracting unitElement ("p" or "s") elements
// as line units. Language and title come from the header when present.
func Parse(path, unitElement string) (*importers.Parsed, error) {
	if unitElement != "p" && unitElement != "s" {
		return nil, fmt.Errorf("unit element must be 'p' or 's', got %q: %w",
			unitElement, domain.ErrValidation)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TEI file: %w", err)
	}
	defer f.Close()

	root, err := parseTree(f)
	if err != nil {
		return nil, fmt.Errorf("TEI file is not valid XML: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("TEI file has no root element: %w", domain.ErrInvalidInput)
	}

	parsed := &importers.Parsed{
		Title:    findTitle(root),
		Language: findLang(root),
		Meta:     map[string]any{"tei_unit": unitElement},
	}
	if parsed.Title == "" {
		parsed.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	// Collect units from <body> when present, else from <text>, else the
	// whole tree.
	searchRoot := root
	if textEl := root.findFirst("text"); textEl != nil {
		searchRoot = textEl
		if bodyEl := textEl.findFirst("body"); bodyEl != nil {
			searchRoot = bodyEl
		}
	}

	n := 0
	for _, el := range searchRoot.findAll(unitElement) {
		text := strings.TrimSpace(el.allText())
		if text == "" {
			continue
		}
		n++

		extID := int64(n)
		if id := el.attr("id"); id != "" {
			if m := trailingDigitsRe.FindStringSubmatch(id); m != nil {
				if v, err := strconv.ParseInt(m[1], 10, 64); err == nil {
					extID = v
				}
			}
		}

		parsed.ExternalIDs = append(parsed.ExternalIDs, extID)
		parsed.Units = append(parsed.Units, importers.LineUnit(n, &extID, text))
	}

	return parsed, nil
}

// node is one parsed XML element, matched by local name only. content keeps
// character data and child elements interleaved in document order.
type node struct {
	local    string
	attrs    []xml.Attr
	children []*node
	content  []any // string | *node
}

// parseTree builds a node tree from an XML stream.
func parseTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var stack []*node
	var root *node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{local: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
				parent.content = append(parent.content, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.content = append(top.content, string(t))
			}
		}
	}

	return root, nil
}

// attr returns the value of a local attribute name, accepting both the xml
// namespace form (xml:id) and the bare form (id).
func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local != local {
			continue
		}
		if a.Name.Space == "" || a.Name.Space == "xml" || a.Name.Space == xmlNS {
			return a.Value
		}
	}
	return ""
}

// findFirst returns the first descendant (or self) with the given local name.
func (n *node) findFirst(local string) *node {
	if n.local == local {
		return n
	}
	for _, c := range n.children {
		if found := c.findFirst(local); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant (and self) with the given local name, in
// document order.
func (n *node) findAll(local string) []*node {
	var out []*node
	if n.local == local {
		out = append(out, n)
	}
	for _, c := range n.children {
		out = append(out, c.findAll(local)...)
	}
	return out
}

// allText concatenates the element's text content, descendants included, in
// document order.
func (n *node) allText() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *node) writeText(b *strings.Builder) {
	for _, chunk := range n.content {
		switch c := chunk.(type) {
		case string:
			b.WriteString(c)
		case *node:
			c.writeText(b)
		}
	}
}

// ownText returns only the element's direct character data.
func (n *node) ownText() string {
	var b strings.Builder
	for _, chunk := range n.content {
		if s, ok := chunk.(string); ok {
			b.WriteString(s)
		}
	}
	return b.String()
}

// findTitle returns the first non-empty <title> text anywhere in the tree.
func findTitle(root *node) string {
	for _, el := range root.findAll("title") {
		if text := strings.TrimSpace(el.ownText()); text != "" {
			return text
		}
	}
	return ""
}

// findLang returns xml:lang from the <text> element, falling back to the
// root element.
func findLang(root *node) string {
	if textEl := root.findFirst("text"); textEl != nil {
		if lang := textEl.attr("lang"); lang != "" {
			return lang
		}
	}
	return root.attr("lang")
}
