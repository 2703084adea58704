package xslt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/angle/xml"
)

type event func(Handler) error

func start(name xml.QName) event {
	return func(h Handler) error {
		return h.StartElement(name)
	}
}

func end(name xml.QName) event {
	return func(h Handler) error {
		return h.EndElement(name)
	}
}

func attr(name xml.QName, value string) event {
	return func(h Handler) error {
		return h.Attribute(name, value)
	}
}

func text(str string) event {
	return func(h Handler) error {
		return h.Characters(str)
	}
}

func namespace(prefix, uri string) event {
	return func(h Handler) error {
		return h.Namespace(prefix, uri)
	}
}

func replay(h Handler, events []event) error {
	for _, e := range events {
		if err := e(h); err != nil {
			return err
		}
	}
	return h.Flush()
}

func TestWriter(t *testing.T) {
	var (
		pa   = xml.ExpandedName("a", "p", "urn:p")
		pb   = xml.ExpandedName("b", "p", "urn:p")
		root = xml.LocalName("root")
		html = xml.LocalName("html")
		br   = xml.LocalName("br")
		code = xml.LocalName("code")
	)
	tests := []struct {
		Name   string
		Output Output
		Events []event
		Want   string
	}{
		{
			Name:   "xml/namespaces",
			Output: *defaultOutput(),
			Events: []event{
				start(pa),
				namespace("p", "urn:p"),
				attr(xml.LocalName("id"), `"1"`),
				start(pb),
				end(pb),
				attr(xml.LocalName("late"), "x"),
				end(pa),
			},
			Want: `<?xml version="1.0" encoding="UTF-8"?><p:a xmlns:p="urn:p" id="&quot;1&quot;"><p:b/></p:a>`,
		},
		{
			Name: "xml/standalone",
			Output: Output{
				Method:     MethodXML,
				Version:    "1.0",
				Encoding:   "UTF-8",
				Standalone: "yes",
			},
			Events: []event{start(root), text("a < b"), end(root)},
			Want:   `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><root>a &lt; b</root>`,
		},
		{
			Name: "xml/doctype",
			Output: Output{
				Method:        MethodXML,
				OmitProlog:    true,
				DoctypeSystem: "root.dtd",
			},
			Events: []event{start(root), end(root)},
			Want:   "<!DOCTYPE root SYSTEM \"root.dtd\">\n<root/>",
		},
		{
			Name: "xml/indent",
			Output: Output{
				Method:     MethodXML,
				OmitProlog: true,
				Indent:     true,
			},
			Events: []event{start(root), start(pa), text("x"), end(pa), start(br), end(br), end(root)},
			Want:   "<root>\n  <p:a xmlns:p=\"urn:p\">x</p:a>\n  <br/>\n</root>",
		},
		{
			Name: "xml/cdata",
			Output: Output{
				Method:        MethodXML,
				OmitProlog:    true,
				CDataElements: []xml.QName{code},
			},
			Events: []event{start(code), text("a]]>b"), end(code)},
			Want:   "<code><![CDATA[a]]]]><![CDATA[>b]]></code>",
		},
		{
			Name:   "html",
			Output: *defaultOutput(),
			Events: []event{
				start(html),
				attr(xml.LocalName("class"), "a<b"),
				start(br),
				end(br),
				start(xml.LocalName("script")),
				text("a<b"),
				end(xml.LocalName("script")),
				end(html),
			},
			Want: `<html class="a<b"><br><script>a<b</script></html>`,
		},
		{
			Name:   "text",
			Output: Output{Method: MethodText},
			Events: []event{start(root), attr(xml.LocalName("id"), "1"), text("a < b"), start(br), end(br), text("!"), end(root)},
			Want:   "a < b!",
		},
	}
	for _, c := range tests {
		var (
			str strings.Builder
			w   = NewWriter(&str, &c.Output)
		)
		if err := replay(w, c.Events); err != nil {
			t.Errorf("%s: unexpected error: %s", c.Name, err)
			continue
		}
		if diff := cmp.Diff(c.Want, str.String()); diff != "" {
			t.Errorf("%s: output mismatched! %s", c.Name, diff)
		}
	}
}

func TestWriterUnbalanced(t *testing.T) {
	var str strings.Builder
	w := NewWriter(&str, nil)
	if err := w.EndElement(xml.LocalName("root")); err == nil {
		t.Errorf("closing an element never opened should fail")
	}
}

func TestBuilder(t *testing.T) {
	var (
		root = xml.LocalName("root")
		item = xml.ExpandedName("item", "x", "urn:x")
	)
	events := []event{
		start(root),
		attr(xml.LocalName("a"), "1"),
		attr(xml.LocalName("a"), "2"),
		start(item),
		text("one"),
		end(item),
		attr(xml.LocalName("late"), "x"),
		end(root),
	}
	b := NewBuilder()
	if err := replay(b, events); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := `<root a="2"><x:item xmlns:x="urn:x">one</x:item></root>`
	if diff := cmp.Diff(want, xml.WriteNode(b.Document())); diff != "" {
		t.Errorf("document mismatched! %s", diff)
	}
}
