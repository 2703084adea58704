package xml_test

import (
	"strings"
	"testing"

	"github.com/midbel/angle/xml"
)

func TestWriteNode(t *testing.T) {
	tests := []struct {
		Input string
		Want  string
	}{
		{
			Input: `<root><item id="1">a &lt; b</item><empty/></root>`,
			Want:  `<root><item id="1">a &lt; b</item><empty/></root>`,
		},
		{
			Input: `<p:root xmlns:p="urn:p" p:attr="x &quot;y&quot;"/>`,
			Want:  `<p:root xmlns:p="urn:p" p:attr="x &quot;y&quot;"/>`,
		},
		{
			Input: `<root><!--note--><?pi data?></root>`,
			Want:  `<root><!--note--><?pi data?></root>`,
		},
	}
	for _, c := range tests {
		doc, err := xml.ParseString(c.Input)
		if err != nil {
			t.Errorf("%s: fail to parse: %s", c.Input, err)
			continue
		}
		got := xml.WriteNode(doc)
		if got != c.Want {
			t.Errorf("serialization mismatched: want %s, got %s", c.Want, got)
		}
	}
}

func TestWriteIndent(t *testing.T) {
	doc, err := xml.ParseString(`<root><a>text</a><b/></root>`)
	if err != nil {
		t.Fatalf("fail to parse: %s", err)
	}
	var (
		str strings.Builder
		ws  = xml.NewWriter(&str)
	)
	ws.WriterOptions |= xml.OptionNoProlog
	if err := ws.Write(doc); err != nil {
		t.Fatalf("fail to write: %s", err)
	}
	want := "<root>\n  <a>text</a>\n  <b/>\n</root>"
	if got := str.String(); got != want {
		t.Errorf("indented output mismatched: want %q, got %q", want, got)
	}
}

func TestClone(t *testing.T) {
	doc, err := xml.ParseString(`<root a="1"><child>x</child></root>`)
	if err != nil {
		t.Fatalf("fail to parse: %s", err)
	}
	dup := xml.Clone(doc.Root()).(*xml.Element)
	if dup.Parent() != nil {
		t.Errorf("clone should not have a parent")
	}
	if xml.WriteNode(dup) != xml.WriteNode(doc.Root()) {
		t.Errorf("clone differs from original")
	}
	dup.Attrs[0].Datum = "2"
	if v, _ := doc.Root().GetAttribute("a"); v != "1" {
		t.Errorf("clone shares attributes with original")
	}
}
