package xslt

import (
	"fmt"
	"iter"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xpath"
)

type avtPart struct {
	text string
	expr xpath.Expr
}

// avt is a compiled attribute value template.
type avt struct {
	source string
	parts  []avtPart
}

func compileAVT(str string, namespaces environ.Environ[string]) (*avt, error) {
	a := avt{
		source: str,
	}
	for q, isExpr := range iterAVT(str) {
		if !isExpr {
			a.parts = append(a.parts, avtPart{text: q})
			continue
		}
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("%s: empty expression in attribute value template", str)
		}
		expr, err := xpath.Compile(q, namespaces)
		if err != nil {
			return nil, err
		}
		a.parts = append(a.parts, avtPart{expr: expr})
	}
	return &a, nil
}

// staticAVT wraps a constant string.
func staticAVT(str string) *avt {
	return &avt{
		source: str,
		parts:  []avtPart{{text: str}},
	}
}

func (a *avt) Static() (string, bool) {
	if a == nil {
		return "", true
	}
	var str strings.Builder
	for _, p := range a.parts {
		if p.expr != nil {
			return "", false
		}
		str.WriteString(p.text)
	}
	return str.String(), true
}

func (a *avt) Exprs() []xpath.Expr {
	if a == nil {
		return nil
	}
	var list []xpath.Expr
	for _, p := range a.parts {
		if p.expr != nil {
			list = append(list, p.expr)
		}
	}
	return list
}

func (a *avt) Eval(ctx *Context) (string, error) {
	if a == nil {
		return "", nil
	}
	var str strings.Builder
	for _, p := range a.parts {
		if p.expr == nil {
			str.WriteString(p.text)
			continue
		}
		v, err := ctx.eval(p.expr)
		if err != nil {
			return "", err
		}
		str.WriteString(xpath.ToString(v))
	}
	return str.String(), nil
}

func (a *avt) String() string {
	if a == nil {
		return ""
	}
	return a.source
}

// iterAVT splits str into literal and expression parts. Doubled braces are
// unescaped in literal parts and braces inside string literals do not close
// an expression. An unbalanced brace ends the iteration with the remaining
// text given as a literal.
func iterAVT(str string) iter.Seq2[string, bool] {
	fn := func(yield func(string, bool) bool) {
		var (
			buf    strings.Builder
			runes  = []rune(str)
			offset int
		)
		for offset < len(runes) {
			c := runes[offset]
			switch {
			case c == '{' && offset+1 < len(runes) && runes[offset+1] == '{':
				buf.WriteRune('{')
				offset += 2
			case c == '}' && offset+1 < len(runes) && runes[offset+1] == '}':
				buf.WriteRune('}')
				offset += 2
			case c == '{':
				end := closingBrace(runes, offset+1)
				if end < 0 {
					buf.WriteString(string(runes[offset:]))
					offset = len(runes)
					break
				}
				if buf.Len() > 0 {
					if !yield(buf.String(), false) {
						return
					}
					buf.Reset()
				}
				if !yield(string(runes[offset+1:end]), true) {
					return
				}
				offset = end + 1
			default:
				buf.WriteRune(c)
				offset++
			}
		}
		if buf.Len() > 0 {
			yield(buf.String(), false)
		}
	}
	return fn
}

func closingBrace(runes []rune, offset int) int {
	var quote rune
	for i := offset; i < len(runes); i++ {
		switch c := runes[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '}':
			return i
		}
	}
	return -1
}
