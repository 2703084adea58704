package xpath

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/midbel/angle/xml"
)

var builtins map[string]Func

func init() {
	builtins = map[string]Func{
		"last":             callLast,
		"position":         callPosition,
		"count":            callCount,
		"id":               callId,
		"local-name":       callLocalName,
		"namespace-uri":    callNamespaceUri,
		"name":             callName,
		"string":           callString,
		"concat":           callConcat,
		"starts-with":      callStartsWith,
		"contains":         callContains,
		"substring-before": callSubstringBefore,
		"substring-after":  callSubstringAfter,
		"substring":        callSubstring,
		"string-length":    callStringLength,
		"normalize-space":  callNormalizeSpace,
		"translate":        callTranslate,
		"boolean":          callBoolean,
		"not":              callNot,
		"true":             callTrue,
		"false":            callFalse,
		"lang":             callLang,
		"number":           callNumber,
		"sum":              callSum,
		"floor":            callFloor,
		"ceiling":          callCeiling,
		"round":            callRound,
	}
}

// IsBuiltin reports whether name is part of the core function library.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

func checkArgs(name string, args []Value, min, max int) error {
	if len(args) < min || (max >= 0 && len(args) > max) {
		return fmt.Errorf("%s: %w", name, ErrArgument)
	}
	return nil
}

func contextOrArg(ctx Context, args []Value) (xml.Node, error) {
	if len(args) == 0 {
		return ctx.Node, nil
	}
	nodes, err := ToNodeSet(args[0])
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

func stringOrContext(ctx Context, args []Value) string {
	if len(args) == 0 {
		return ctx.Node.Value()
	}
	return ToString(args[0])
}

func callLast(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("last", args, 0, 0); err != nil {
		return nil, err
	}
	return Number(ctx.Size), nil
}

func callPosition(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("position", args, 0, 0); err != nil {
		return nil, err
	}
	return Number(ctx.Position), nil
}

func callCount(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("count", args, 1, 1); err != nil {
		return nil, err
	}
	nodes, err := ToNodeSet(args[0])
	if err != nil {
		return nil, err
	}
	return Number(len(nodes)), nil
}

func callId(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("id", args, 1, 1); err != nil {
		return nil, err
	}
	var ids []string
	if nodes, ok := args[0].(NodeSet); ok {
		for _, n := range nodes {
			ids = append(ids, strings.Fields(n.Value())...)
		}
	} else {
		ids = strings.Fields(ToString(args[0]))
	}
	return NodeSet(FindIds(xml.Root(ctx.Node), ids)), nil
}

// FindIds returns the elements under root carrying one of the given
// identifiers. Without a DTD, attributes named id or xml:id are identifiers.
func FindIds(root xml.Node, ids []string) []xml.Node {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]struct{})
	for _, i := range ids {
		want[i] = struct{}{}
	}
	var (
		list []xml.Node
		walk func(xml.Node)
	)
	walk = func(n xml.Node) {
		if el, ok := n.(*xml.Element); ok {
			for _, a := range el.Attrs {
				if a.Name != "id" || (a.Uri != "" && a.Uri != xml.NamespaceXML) {
					continue
				}
				if _, ok := want[a.Datum]; ok {
					list = append(list, el)
					break
				}
			}
		}
		for _, c := range xml.Children(n) {
			walk(c)
		}
	}
	walk(root)
	return list
}

func callLocalName(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("local-name", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := contextOrArg(ctx, args)
	if err != nil || n == nil {
		return String(""), err
	}
	return String(n.LocalName()), nil
}

func callNamespaceUri(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("namespace-uri", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := contextOrArg(ctx, args)
	if err != nil || n == nil {
		return String(""), err
	}
	return String(n.Namespace()), nil
}

func callName(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("name", args, 0, 1); err != nil {
		return nil, err
	}
	n, err := contextOrArg(ctx, args)
	if err != nil || n == nil {
		return String(""), err
	}
	return String(n.QualifiedName()), nil
}

func callString(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("string", args, 0, 1); err != nil {
		return nil, err
	}
	return String(stringOrContext(ctx, args)), nil
}

func callConcat(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("concat", args, 2, -1); err != nil {
		return nil, err
	}
	var str strings.Builder
	for _, a := range args {
		str.WriteString(ToString(a))
	}
	return String(str.String()), nil
}

func callStartsWith(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("starts-with", args, 2, 2); err != nil {
		return nil, err
	}
	return Boolean(strings.HasPrefix(ToString(args[0]), ToString(args[1]))), nil
}

func callContains(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("contains", args, 2, 2); err != nil {
		return nil, err
	}
	return Boolean(strings.Contains(ToString(args[0]), ToString(args[1]))), nil
}

func callSubstringBefore(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("substring-before", args, 2, 2); err != nil {
		return nil, err
	}
	before, _, ok := strings.Cut(ToString(args[0]), ToString(args[1]))
	if !ok {
		return String(""), nil
	}
	return String(before), nil
}

func callSubstringAfter(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("substring-after", args, 2, 2); err != nil {
		return nil, err
	}
	_, after, ok := strings.Cut(ToString(args[0]), ToString(args[1]))
	if !ok {
		return String(""), nil
	}
	return String(after), nil
}

func callSubstring(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("substring", args, 2, 3); err != nil {
		return nil, err
	}
	var (
		chars = []rune(ToString(args[0]))
		start = roundHalfUp(ToNumber(args[1]))
		end   = math.Inf(1)
	)
	if len(args) == 3 {
		end = start + roundHalfUp(ToNumber(args[2]))
	}
	var str strings.Builder
	for i, c := range chars {
		pos := float64(i + 1)
		if pos >= start && pos < end {
			str.WriteRune(c)
		}
	}
	return String(str.String()), nil
}

func callStringLength(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("string-length", args, 0, 1); err != nil {
		return nil, err
	}
	return Number(utf8.RuneCountInString(stringOrContext(ctx, args))), nil
}

func callNormalizeSpace(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("normalize-space", args, 0, 1); err != nil {
		return nil, err
	}
	return String(strings.Join(strings.Fields(stringOrContext(ctx, args)), " ")), nil
}

func callTranslate(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("translate", args, 3, 3); err != nil {
		return nil, err
	}
	var (
		from    = []rune(ToString(args[1]))
		to      = []rune(ToString(args[2]))
		mapping = make(map[rune]int)
	)
	for i, c := range from {
		if _, ok := mapping[c]; !ok {
			mapping[c] = i
		}
	}
	var str strings.Builder
	for _, c := range ToString(args[0]) {
		ix, ok := mapping[c]
		if !ok {
			str.WriteRune(c)
			continue
		}
		if ix < len(to) {
			str.WriteRune(to[ix])
		}
	}
	return String(str.String()), nil
}

func callBoolean(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("boolean", args, 1, 1); err != nil {
		return nil, err
	}
	return Boolean(ToBool(args[0])), nil
}

func callNot(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("not", args, 1, 1); err != nil {
		return nil, err
	}
	return Boolean(!ToBool(args[0])), nil
}

func callTrue(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("true", args, 0, 0); err != nil {
		return nil, err
	}
	return Boolean(true), nil
}

func callFalse(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("false", args, 0, 0); err != nil {
		return nil, err
	}
	return Boolean(false), nil
}

func callLang(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("lang", args, 1, 1); err != nil {
		return nil, err
	}
	want := strings.ToLower(ToString(args[0]))
	for n := ctx.Node; n != nil; n = n.Parent() {
		el, ok := n.(*xml.Element)
		if !ok {
			continue
		}
		for _, a := range el.Attrs {
			if a.Name != "lang" || a.Uri != xml.NamespaceXML {
				continue
			}
			lang := strings.ToLower(a.Datum)
			return Boolean(lang == want || strings.HasPrefix(lang, want+"-")), nil
		}
	}
	return Boolean(false), nil
}

func callNumber(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("number", args, 0, 1); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return Number(parseNumber(ctx.Node.Value())), nil
	}
	return Number(ToNumber(args[0])), nil
}

func callSum(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("sum", args, 1, 1); err != nil {
		return nil, err
	}
	nodes, err := ToNodeSet(args[0])
	if err != nil {
		return nil, err
	}
	var total float64
	for _, n := range nodes {
		total += parseNumber(n.Value())
	}
	return Number(total), nil
}

func callFloor(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("floor", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(math.Floor(ToNumber(args[0]))), nil
}

func callCeiling(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("ceiling", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(math.Ceil(ToNumber(args[0]))), nil
}

func callRound(ctx Context, args []Value) (Value, error) {
	if err := checkArgs("round", args, 1, 1); err != nil {
		return nil, err
	}
	return Number(roundHalfUp(ToNumber(args[0]))), nil
}

func roundHalfUp(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return math.Floor(f + 0.5)
}
