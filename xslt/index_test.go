package xslt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type rule struct {
	Name       string
	Match      string
	Mode       string
	Priority   float64
	Explicit   bool
	Precedence int
}

func buildIndex(t *testing.T, rules []rule) *Index {
	t.Helper()
	x := NewIndex()
	for i, r := range rules {
		match, err := xpath.CompilePattern(r.Match, nil)
		if err != nil {
			t.Fatalf("%s: fail to compile pattern: %s", r.Match, err)
		}
		tpl := Template{
			Name:        xml.LocalName(r.Name),
			Match:       match,
			Priority:    r.Priority,
			HasPriority: r.Explicit,
			Precedence:  r.Precedence,
			Order:       i,
		}
		if r.Mode != "" {
			tpl.Mode = xml.LocalName(r.Mode)
		}
		x.Register(&tpl)
	}
	x.finalize()
	return x
}

func TestIndexBestMatch(t *testing.T) {
	doc, err := xml.ParseString(`<root><item id="a">one</item><other/></root>`)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	var (
		root  = doc.Root()
		item  = root.Nodes[0]
		other = root.Nodes[1]
		text  = xml.Children(item)[0]
	)
	tests := []struct {
		Name  string
		Rules []rule
		Node  xml.Node
		Mode  string
		Want  string
	}{
		{
			Name: "qname-over-wildcard",
			Rules: []rule{
				{Name: "item", Match: "item"},
				{Name: "any", Match: "*"},
			},
			Node: item,
			Want: "item",
		},
		{
			Name: "wildcard-fallback",
			Rules: []rule{
				{Name: "item", Match: "item"},
				{Name: "any", Match: "*"},
			},
			Node: other,
			Want: "any",
		},
		{
			Name: "path-over-qname",
			Rules: []rule{
				{Name: "path", Match: "root/item"},
				{Name: "item", Match: "item"},
			},
			Node: item,
			Want: "path",
		},
		{
			Name: "explicit-priority",
			Rules: []rule{
				{Name: "low", Match: "root/item"},
				{Name: "high", Match: "*", Priority: 2, Explicit: true},
			},
			Node: item,
			Want: "high",
		},
		{
			Name: "precedence-over-order",
			Rules: []rule{
				{Name: "main", Match: "item", Precedence: 2},
				{Name: "imported", Match: "item", Precedence: 1},
			},
			Node: item,
			Want: "main",
		},
		{
			Name: "last-declared",
			Rules: []rule{
				{Name: "first", Match: "item"},
				{Name: "second", Match: "item"},
			},
			Node: item,
			Want: "second",
		},
		{
			Name: "union-alternatives",
			Rules: []rule{
				{Name: "union", Match: "other|text()"},
				{Name: "node", Match: "node()"},
			},
			Node: text,
			Want: "node",
		},
		{
			Name: "mode",
			Rules: []rule{
				{Name: "default", Match: "item"},
				{Name: "moded", Match: "item", Mode: "m"},
			},
			Node: item,
			Mode: "m",
			Want: "moded",
		},
		{
			Name: "unknown-mode",
			Rules: []rule{
				{Name: "default", Match: "item"},
			},
			Node: item,
			Mode: "m",
		},
		{
			Name: "no-match",
			Rules: []rule{
				{Name: "other", Match: "other"},
			},
			Node: item,
		},
	}
	for _, c := range tests {
		x := buildIndex(t, c.Rules)
		var mode xml.QName
		if c.Mode != "" {
			mode = xml.LocalName(c.Mode)
		}
		ctx := xpath.Context{
			Node:     c.Node,
			Position: 1,
			Size:     1,
		}
		tpl, err := x.BestMatch(ctx, mode)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", c.Name, err)
			continue
		}
		var got string
		if tpl != nil {
			got = tpl.Name.Name
		}
		if got != c.Want {
			t.Errorf("%s: template mismatched! want %q, got %q", c.Name, c.Want, got)
		}
	}
}

func TestIndexBestMatchBelow(t *testing.T) {
	doc, err := xml.ParseString(`<root><item/></root>`)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	x := buildIndex(t, []rule{
		{Name: "main", Match: "item", Precedence: 3},
		{Name: "lib", Match: "item", Precedence: 2},
		{Name: "base", Match: "root/item", Precedence: 1},
	})
	ctx := xpath.Context{
		Node:     doc.Root().Nodes[0],
		Position: 1,
		Size:     1,
	}
	tests := []struct {
		Lo   int
		Hi   int
		Want string
	}{
		{Lo: 1, Hi: 4, Want: "base"},
		{Lo: 1, Hi: 3, Want: "base"},
		{Lo: 2, Hi: 3, Want: "lib"},
		{Lo: 2, Hi: 2},
	}
	for _, c := range tests {
		tpl, err := x.BestMatchBelow(ctx, xml.QName{}, c.Lo, c.Hi)
		if err != nil {
			t.Errorf("[%d, %d): unexpected error: %s", c.Lo, c.Hi, err)
			continue
		}
		var got string
		if tpl != nil {
			got = tpl.Name.Name
		}
		if got != c.Want {
			t.Errorf("[%d, %d): want %q, got %q", c.Lo, c.Hi, c.Want, got)
		}
	}
}

func TestIndexModes(t *testing.T) {
	x := buildIndex(t, []rule{
		{Name: "a", Match: "item", Mode: "z"},
		{Name: "b", Match: "item"},
		{Name: "c", Match: "item", Mode: "m"},
	})
	var got []string
	for _, m := range x.Modes() {
		got = append(got, m.ExpandedName())
	}
	want := []string{"", "m", "z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("modes mismatched! %s", diff)
	}
}
