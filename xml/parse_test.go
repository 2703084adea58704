package xml_test

import (
	"strings"
	"testing"

	"github.com/midbel/angle/xml"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>`

func TestParseValidDocument(t *testing.T) {
	const doc = prolog + `
<!DOCTYPE catalog [ <!ELEMENT catalog ANY> ]>
<!-- books -->
<catalog xmlns="urn:books" xmlns:x="urn:extra">
  <book id="b1" x:lang='en'>Go &amp; XML &#65;&#x42;</book>
  <book id="b2"><![CDATA[<raw>]]></book>
  <?render fast?>
</catalog>`

	res, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	root := res.Root()
	if root == nil || root.LocalName() != "catalog" {
		t.Fatalf("root element not found")
	}
	if root.Uri != "urn:books" {
		t.Errorf("root namespace: want %s, got %s", "urn:books", root.Uri)
	}
	var books []*xml.Element
	for _, n := range root.Nodes {
		if e, ok := n.(*xml.Element); ok {
			books = append(books, e)
		}
	}
	if len(books) != 2 {
		t.Fatalf("books: want %d, got %d", 2, len(books))
	}
	if got := books[0].Value(); got != "Go & XML AB" {
		t.Errorf("text value: want %q, got %q", "Go & XML AB", got)
	}
	if len(books[0].Attrs) != 2 || books[0].Attrs[1].Uri != "urn:extra" {
		t.Errorf("prefixed attribute not resolved")
	}
	if got := books[1].Value(); got != "<raw>" {
		t.Errorf("cdata value: want %q, got %q", "<raw>", got)
	}
	if !xml.Before(books[0], books[1]) {
		t.Errorf("document order: first book should come before second")
	}
	if !xml.Before(books[0], books[0].Attrs[0]) || !xml.Before(books[0].Attrs[0], books[0].Nodes[0]) {
		t.Errorf("document order: attributes should come after their element and before its children")
	}
}

func TestParseInvalidDocument(t *testing.T) {
	data := []struct {
		Xml   string
		Cause string
	}{
		{
			Xml:   ``,
			Cause: "document without root element",
		},
		{
			Xml:   `<root empty-attr></root>`,
			Cause: "attribute without value",
		},
		{
			Xml:   `<root id="id-1" id="id-2"></root>`,
			Cause: "duplicate attribute",
		},
		{
			Xml:   `<root><child></root>`,
			Cause: "mismatched closing element",
		},
		{
			Xml:   `<x:root/>`,
			Cause: "undefined namespace prefix",
		},
		{
			Xml:   `<root>&unknown;</root>`,
			Cause: "undefined entity",
		},
		{
			Xml:   `<root/><root/>`,
			Cause: "multiple root elements",
		},
	}
	for _, d := range data {
		str := strings.NewReader(prolog + d.Xml)
		_, err := xml.NewParser(str).Parse()
		if err == nil {
			t.Errorf("%s: invalid document parsed properly!", d.Cause)
		}
	}
}

func TestParseWhitespace(t *testing.T) {
	p := xml.NewParser(strings.NewReader("<root>\n  <a/>\n  <b> x </b>\n</root>"))
	p.KeepEmpty = false
	doc, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if n := len(doc.Root().Nodes); n != 2 {
		t.Errorf("children: want %d, got %d", 2, n)
	}
	b := doc.Root().Nodes[1]
	if got := b.Value(); got != " x " {
		t.Errorf("text: want %q, got %q", " x ", got)
	}
}
