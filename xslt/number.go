package xslt

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/midbel/angle/alpha"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	levelSingle   = "single"
	levelMultiple = "multiple"
	levelAny      = "any"
)

func executeNumber(ctx *Context, inst *Instruction) error {
	var nums []int
	if inst.Select != nil {
		v, err := ctx.eval(inst.Select)
		if err != nil {
			return err
		}
		f := xpath.ToNumber(v)
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0.5 {
			return ctx.Handler.Characters(xpath.FormatNumber(f))
		}
		nums = append(nums, int(math.Floor(f+0.5)))
	} else {
		var err error
		if nums, err = ctx.countNodes(inst); err != nil {
			return err
		}
	}
	props := make(map[string]string)
	for name, a := range inst.Props {
		str, err := a.Eval(ctx)
		if err != nil {
			return err
		}
		props[name] = str
	}
	format := props["format"]
	if format == "" {
		format = "1"
	}
	size, _ := strconv.Atoi(props["grouping-size"])
	str := formatNumbers(nums, format, props["grouping-separator"], size)
	if str == "" {
		return nil
	}
	return ctx.Handler.Characters(str)
}

func (c *Context) countNodes(inst *Instruction) ([]int, error) {
	level := inst.Options["level"]
	if level == "" {
		level = levelSingle
	}
	var (
		nums []int
		node = c.Node
	)
	switch level {
	case levelSingle, levelMultiple:
		for n := node; n != nil; n = n.Parent() {
			ok, err := c.matchAny(inst.From, n)
			if err != nil {
				return nil, err
			}
			if ok && n != node {
				break
			}
			if ok, err = c.matchCount(inst, n); err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			pos, err := c.siblingNumber(inst, n)
			if err != nil {
				return nil, err
			}
			nums = append(nums, pos)
			if level == levelSingle {
				break
			}
		}
		slices.Reverse(nums)
	case levelAny:
		var count int
		for n := node; n != nil; n = previous(n) {
			ok, err := c.matchCount(inst, n)
			if err != nil {
				return nil, err
			}
			if ok {
				count++
			}
			if n == node {
				continue
			}
			if ok, err = c.matchAny(inst.From, n); err != nil {
				return nil, err
			}
			if ok {
				break
			}
		}
		if count > 0 {
			nums = append(nums, count)
		}
	default:
		c.warn("%s: unknown level", level)
	}
	return nums, nil
}

func (c *Context) siblingNumber(inst *Instruction, node xml.Node) (int, error) {
	pos := 1
	siblings := xml.Children(node.Parent())
	for _, s := range siblings {
		if s == node {
			break
		}
		ok, err := c.matchCount(inst, s)
		if err != nil {
			return 0, err
		}
		if ok {
			pos++
		}
	}
	return pos, nil
}

// matchCount tests node against the count pattern or, without one, against
// the type and name of the context node.
func (c *Context) matchCount(inst *Instruction, node xml.Node) (bool, error) {
	if len(inst.Count) > 0 {
		return c.matchAny(inst.Count, node)
	}
	if node.Type() != c.Node.Type() {
		return false, nil
	}
	switch node.Type() {
	case xml.TypeElement, xml.TypeAttribute, xml.TypeInstruction:
		return node.LocalName() == c.Node.LocalName() && node.Namespace() == c.Node.Namespace(), nil
	default:
		return true, nil
	}
}

func (c *Context) matchAny(patterns []*xpath.Pattern, node xml.Node) (bool, error) {
	ctx := c.with(node, 1, 1).xpathContext()
	for _, p := range patterns {
		ok, err := p.Match(ctx)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

// previous returns the node before n in document order, ancestors
// included.
func previous(n xml.Node) xml.Node {
	parent := n.Parent()
	if parent == nil || n.Type() == xml.TypeAttribute {
		return parent
	}
	siblings := xml.Children(parent)
	ix := slices.Index(siblings, n)
	if ix <= 0 {
		return parent
	}
	n = siblings[ix-1]
	for {
		children := xml.Children(n)
		if len(children) == 0 {
			return n
		}
		n = children[len(children)-1]
	}
}

type numberFormat struct {
	prefix string
	suffix string
	tokens []string
	seps   []string
}

func parseNumberFormat(str string) numberFormat {
	var (
		nf    numberFormat
		runes = []rune(str)
		parts []string
		alnum []bool
	)
	for i := 0; i < len(runes); {
		j := i
		kind := isAlnum(runes[i])
		for j < len(runes) && isAlnum(runes[j]) == kind {
			j++
		}
		parts = append(parts, string(runes[i:j]))
		alnum = append(alnum, kind)
		i = j
	}
	if len(parts) > 0 && !alnum[0] {
		nf.prefix = parts[0]
		parts, alnum = parts[1:], alnum[1:]
	}
	if n := len(parts); n > 0 && !alnum[n-1] {
		nf.suffix = parts[n-1]
		parts, alnum = parts[:n-1], alnum[:n-1]
	}
	for i, p := range parts {
		if alnum[i] {
			nf.tokens = append(nf.tokens, p)
		} else {
			nf.seps = append(nf.seps, p)
		}
	}
	if len(nf.tokens) == 0 {
		nf.tokens = append(nf.tokens, "1")
	}
	return nf
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func formatNumbers(nums []int, format, sep string, size int) string {
	if len(nums) == 0 {
		return ""
	}
	var (
		nf  = parseNumberFormat(format)
		str strings.Builder
	)
	str.WriteString(nf.prefix)
	for i, n := range nums {
		if i > 0 {
			s := "."
			if len(nf.seps) > 0 {
				s = nf.seps[min(i-1, len(nf.seps)-1)]
			}
			str.WriteString(s)
		}
		token := nf.tokens[min(i, len(nf.tokens)-1)]
		res := alpha.Format(n, token)
		if sep != "" && size > 0 && strings.Trim(token, "0123456789") == "" {
			res = groupDigits(res, sep, size)
		}
		str.WriteString(res)
	}
	str.WriteString(nf.suffix)
	return str.String()
}

func groupDigits(str, sep string, size int) string {
	var out strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%size == 0 {
			out.WriteString(sep)
		}
		out.WriteRune(c)
	}
	return out.String()
}
