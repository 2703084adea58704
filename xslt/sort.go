package xslt

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type sortKey struct {
	expr      xpath.Expr
	number    bool
	desc      bool
	upperLast bool
}

type sortItem struct {
	node   xml.Node
	values []xpath.Value
}

// sortNodes orders nodes according to the xsl:sort children of ix. The
// sort is stable and nodes are returned unchanged when there is no sort.
func (c *Context) sortNodes(ix int, nodes xpath.NodeSet) (xpath.NodeSet, error) {
	sorts := c.sheet.nodes.childrenOf(ix, KindSort)
	if len(sorts) == 0 || len(nodes) < 2 {
		return nodes, nil
	}
	keys := make([]sortKey, 0, len(sorts))
	for _, s := range sorts {
		k, err := c.at(s).sortKey(&c.sheet.nodes[s])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	items := make([]sortItem, len(nodes))
	for i, n := range nodes {
		sub := c.with(n, i+1, len(nodes))
		items[i].node = n
		for _, k := range keys {
			var (
				v   xpath.Value
				err error
			)
			if k.expr == nil {
				v = xpath.String(n.Value())
			} else if v, err = sub.eval(k.expr); err != nil {
				return nil, err
			}
			if k.number {
				v = xpath.Number(xpath.ToNumber(v))
			} else {
				v = xpath.String(xpath.ToString(v))
			}
			items[i].values = append(items[i].values, v)
		}
	}
	slices.SortStableFunc(items, func(a, b sortItem) int {
		for i, k := range keys {
			if r := k.compare(a.values[i], b.values[i]); r != 0 {
				return r
			}
		}
		return 0
	})
	list := make(xpath.NodeSet, 0, len(items))
	for _, i := range items {
		list = append(list, i.node)
	}
	return list, nil
}

func (c *Context) sortKey(inst *Instruction) (sortKey, error) {
	k := sortKey{
		expr: inst.Select,
	}
	props := make(map[string]string)
	for name, a := range inst.Props {
		str, err := a.Eval(c)
		if err != nil {
			return k, err
		}
		props[name] = str
	}
	switch props["data-type"] {
	case "", "text":
	case "number":
		k.number = true
	default:
		c.warn("%s: unknown data type, sorting as text", props["data-type"])
	}
	switch props["order"] {
	case "", "ascending":
	case "descending":
		k.desc = true
	default:
		return k, fmt.Errorf("%s: invalid sort order", props["order"])
	}
	switch props["case-order"] {
	case "", "upper-first":
	case "lower-first":
		k.upperLast = true
	default:
		return k, fmt.Errorf("%s: invalid case order", props["case-order"])
	}
	return k, nil
}

// compare orders NaN before every number.
func (k sortKey) compare(a, b xpath.Value) int {
	var r int
	if k.number {
		x, y := float64(a.(xpath.Number)), float64(b.(xpath.Number))
		switch {
		case math.IsNaN(x) && math.IsNaN(y):
		case math.IsNaN(x):
			r = -1
		case math.IsNaN(y):
			r = 1
		default:
			r = cmp.Compare(x, y)
		}
	} else {
		r = k.compareText(string(a.(xpath.String)), string(b.(xpath.String)))
	}
	if k.desc {
		r = -r
	}
	return r
}

func (k sortKey) compareText(a, b string) int {
	if r := strings.Compare(strings.ToLower(a), strings.ToLower(b)); r != 0 {
		return r
	}
	r := strings.Compare(a, b)
	if k.upperLast {
		r = -r
	}
	return r
}
