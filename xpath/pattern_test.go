package xpath_test

import (
	"testing"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xpath"
)

func TestPatternPriority(t *testing.T) {
	ns := environ.Empty[string]()
	ns.Define("b", "urn:book")
	tests := []struct {
		Pattern  string
		Priority float64
		Target   string
	}{
		{Pattern: "book", Priority: xpath.PriorityQName, Target: "book"},
		{Pattern: "b:isbn", Priority: xpath.PriorityQName, Target: "isbn"},
		{Pattern: "@price", Priority: xpath.PriorityQName, Target: "price"},
		{Pattern: "*", Priority: xpath.PriorityNodeTest, Target: xpath.Wildcard},
		{Pattern: "@*", Priority: xpath.PriorityNodeTest, Target: xpath.Wildcard},
		{Pattern: "b:*", Priority: xpath.PriorityNsWild, Target: xpath.Wildcard},
		{Pattern: "text()", Priority: xpath.PriorityNodeTest, Target: "#text"},
		{Pattern: "comment()", Priority: xpath.PriorityNodeTest, Target: "#comment"},
		{Pattern: "node()", Priority: xpath.PriorityNodeTest, Target: xpath.Wildcard},
		{Pattern: "processing-instruction('php')", Priority: xpath.PriorityQName, Target: "#pi"},
		{Pattern: "/", Priority: xpath.PriorityNodeTest, Target: "#document"},
		{Pattern: "shelf/book", Priority: xpath.PriorityOther, Target: "book"},
		{Pattern: "book[@id]", Priority: xpath.PriorityOther, Target: "book"},
		{Pattern: "/library", Priority: xpath.PriorityOther, Target: "library"},
		{Pattern: "//title", Priority: xpath.PriorityOther, Target: "title"},
		{Pattern: "id('1')", Priority: xpath.PriorityIdKey, Target: xpath.Wildcard},
		{Pattern: "key('k', 'v')/title", Priority: xpath.PriorityOther, Target: "title"},
	}
	for _, c := range tests {
		list, err := xpath.CompilePattern(c.Pattern, ns)
		if err != nil {
			t.Errorf("%s: fail to compile pattern: %s", c.Pattern, err)
			continue
		}
		if len(list) != 1 {
			t.Errorf("%s: want 1 alternative, got %d", c.Pattern, len(list))
			continue
		}
		p := list[0]
		if got := p.Priority(); got != c.Priority {
			t.Errorf("%s: priority mismatched! want %f, got %f", c.Pattern, c.Priority, got)
		}
		if got := p.Target(); got != c.Target {
			t.Errorf("%s: target mismatched! want %s, got %s", c.Pattern, c.Target, got)
		}
	}
}

func TestPatternUnion(t *testing.T) {
	list, err := xpath.CompilePattern("book | shelf/book | text()", nil)
	if err != nil {
		t.Fatalf("fail to compile pattern: %s", err)
	}
	want := []string{"book", "shelf/book", "text()"}
	if len(list) != len(want) {
		t.Fatalf("alternatives: want %d, got %d", len(want), len(list))
	}
	for i := range want {
		if got := list[i].String(); got != want[i] {
			t.Errorf("alternative %d: want %s, got %s", i, want[i], got)
		}
	}
}

func TestPatternMatch(t *testing.T) {
	doc := parseSample(t)
	ns := environ.Empty[string]()
	ns.Define("b", "urn:book")

	tests := []struct {
		Pattern string
		Select  string
		Want    bool
	}{
		{Pattern: "book", Select: "//book[1]", Want: true},
		{Pattern: "shelf/book", Select: "//book[1]", Want: true},
		{Pattern: "library//book", Select: "//book[1]", Want: true},
		{Pattern: "/library/shelf", Select: "//shelf[2]", Want: true},
		{Pattern: "/shelf", Select: "//shelf[1]", Want: false},
		{Pattern: "//title", Select: "//title[1]", Want: true},
		{Pattern: "book[2]", Select: "//shelf[1]/book[2]", Want: true},
		{Pattern: "book[2]", Select: "//shelf[2]/book[1]", Want: false},
		{Pattern: "book[@price > 20]", Select: "//book[2]", Want: true},
		{Pattern: "book[@price > 20]", Select: "//shelf[1]/book[1]", Want: false},
		{Pattern: "shelf[@name='poetry']/book", Select: "//shelf[2]/book", Want: true},
		{Pattern: "@price", Select: "//book[1]/@price", Want: true},
		{Pattern: "book/@*", Select: "//book[1]/@id", Want: true},
		{Pattern: "@*", Select: "//book[1]", Want: false},
		{Pattern: "*", Select: "//book[1]/@id", Want: false},
		{Pattern: "b:isbn", Select: "//b:isbn", Want: true},
		{Pattern: "b:*", Select: "//b:isbn", Want: true},
		{Pattern: "b:*", Select: "//title[1]", Want: false},
		{Pattern: "text()", Select: "//title[1]/text()", Want: true},
		{Pattern: "node()", Select: "//title[1]/text()", Want: true},
		{Pattern: "node()", Select: "/", Want: false},
		{Pattern: "comment()", Select: "//comment()", Want: true},
		{Pattern: "/", Select: "/", Want: true},
		{Pattern: "id('2')", Select: "//shelf[1]/book[2]", Want: true},
		{Pattern: "id('2')", Select: "//shelf[1]/book[1]", Want: false},
		{Pattern: "id('3')/title", Select: "//title[.='Alcools']", Want: true},
		{Pattern: "id('1')//text()", Select: "//title[.='Dune']/text()", Want: true},
	}
	for _, c := range tests {
		list, err := xpath.CompilePattern(c.Pattern, ns)
		if err != nil {
			t.Errorf("%s: fail to compile pattern: %s", c.Pattern, err)
			continue
		}
		sel, err := xpath.Compile(c.Select, ns)
		if err != nil {
			t.Errorf("%s: fail to compile select: %s", c.Select, err)
			continue
		}
		v, err := xpath.Eval(sel, doc, nil)
		if err != nil {
			t.Errorf("%s: fail to evaluate: %s", c.Select, err)
			continue
		}
		nodes, err := xpath.ToNodeSet(v)
		if err != nil || len(nodes) == 0 {
			t.Errorf("%s: no node selected", c.Select)
			continue
		}
		ok, err := list[0].Match(xpath.NewContext(nodes[0], nil))
		if err != nil {
			t.Errorf("%s: fail to match: %s", c.Pattern, err)
			continue
		}
		if ok != c.Want {
			t.Errorf("%s against %s: want %t, got %t", c.Pattern, c.Select, c.Want, ok)
		}
	}
}

func TestPatternErrors(t *testing.T) {
	tests := []string{
		"",
		"ancestor::book",
		"book |",
		"id(//book)",
		"book[",
		"1 + 2",
	}
	for _, str := range tests {
		if _, err := xpath.CompilePattern(str, nil); err == nil {
			t.Errorf("%q: expected error", str)
		}
	}
}
