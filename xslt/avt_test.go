package xslt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/midbel/angle/environ"
)

func TestIterAVT(t *testing.T) {
	type part struct {
		Str  string
		Expr bool
	}
	tests := []struct {
		Input string
		Want  []part
	}{
		{
			Input: "plain",
			Want:  []part{{Str: "plain"}},
		},
		{
			Input: "a{b}c",
			Want:  []part{{Str: "a"}, {Str: "b", Expr: true}, {Str: "c"}},
		},
		{
			Input: "{{x}}",
			Want:  []part{{Str: "{x}"}},
		},
		{
			Input: "{concat('}', @id)}-{@n}",
			Want:  []part{{Str: "concat('}', @id)", Expr: true}, {Str: "-"}, {Str: "@n", Expr: true}},
		},
		{
			Input: "a{b",
			Want:  []part{{Str: "a{b"}},
		},
	}
	for _, c := range tests {
		var got []part
		for str, expr := range iterAVT(c.Input) {
			got = append(got, part{Str: str, Expr: expr})
		}
		if diff := cmp.Diff(c.Want, got); diff != "" {
			t.Errorf("%s: parts mismatched! %s", c.Input, diff)
		}
	}
}

func TestCompileAVT(t *testing.T) {
	env := environ.Empty[string]()
	tests := []struct {
		Input  string
		Static bool
		Value  string
		Failed bool
	}{
		{Input: "text", Static: true, Value: "text"},
		{Input: "{{text}}", Static: true, Value: "{text}"},
		{Input: "{@id}", Static: false},
		{Input: "a{ }b", Failed: true},
		{Input: "{1 +}", Failed: true},
	}
	for _, c := range tests {
		a, err := compileAVT(c.Input, env)
		if c.Failed {
			if err == nil {
				t.Errorf("%s: expected error", c.Input)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", c.Input, err)
			continue
		}
		str, ok := a.Static()
		if ok != c.Static {
			t.Errorf("%s: static mismatched! want %t, got %t", c.Input, c.Static, ok)
		}
		if ok && str != c.Value {
			t.Errorf("%s: value mismatched! want %s, got %s", c.Input, c.Value, str)
		}
		if a.String() != c.Input {
			t.Errorf("%s: source not kept, got %s", c.Input, a.String())
		}
	}
}
