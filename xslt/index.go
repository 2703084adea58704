package xslt

import (
	"cmp"
	"slices"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// association binds one alternative of a match pattern to its template.
type association struct {
	pattern    *xpath.Pattern
	template   *Template
	target     string
	wildcard   bool
	priority   float64
	precedence int
	order      int
}

func compareAssociations(a, b *association) int {
	if c := cmp.Compare(b.priority, a.priority); c != 0 {
		return c
	}
	if c := cmp.Compare(b.precedence, a.precedence); c != 0 {
		return c
	}
	return cmp.Compare(b.order, a.order)
}

type Mode struct {
	Name xml.QName

	lists     map[string][]*association
	wildcards []*association
}

func newMode(name xml.QName) *Mode {
	return &Mode{
		Name:  name,
		lists: make(map[string][]*association),
	}
}

func (m *Mode) insert(a *association) {
	if a.wildcard {
		m.wildcards = append(m.wildcards, a)
		return
	}
	m.lists[a.target] = append(m.lists[a.target], a)
}

// finalize sorts every list and merges the wildcard associations into the
// named lists so that a single scan finds the best candidate.
func (m *Mode) finalize() {
	slices.SortStableFunc(m.wildcards, compareAssociations)
	for target, list := range m.lists {
		list = slices.DeleteFunc(list, func(a *association) bool {
			return a.wildcard
		})
		list = append(list, m.wildcards...)
		slices.SortStableFunc(list, compareAssociations)
		m.lists[target] = list
	}
}

func (m *Mode) candidates(node xml.Node) []*association {
	if list, ok := m.lists[xpath.NodeTarget(node)]; ok {
		return list
	}
	return m.wildcards
}

// Index gives, per mode, the template rules able to match a node.
type Index struct {
	modes map[string]*Mode
}

func NewIndex() *Index {
	return &Index{
		modes: make(map[string]*Mode),
	}
}

func (x *Index) mode(name xml.QName, create bool) *Mode {
	key := name.ExpandedName()
	m, ok := x.modes[key]
	if !ok && create {
		m = newMode(name)
		x.modes[key] = m
	}
	return m
}

// Register adds every alternative of the template's match pattern.
func (x *Index) Register(t *Template) {
	if len(t.Match) == 0 {
		return
	}
	m := x.mode(t.Mode, true)
	for _, p := range t.Match {
		a := association{
			pattern:    p,
			template:   t,
			target:     p.Target(),
			precedence: t.Precedence,
			order:      t.Order,
			priority:   t.Priority,
		}
		a.wildcard = a.target == xpath.Wildcard
		if !t.HasPriority {
			a.priority = p.Priority()
		}
		m.insert(&a)
	}
}

func (x *Index) finalize() {
	for _, m := range x.modes {
		m.finalize()
	}
}

// Modes returns the names of the known modes.
func (x *Index) Modes() []xml.QName {
	var list []xml.QName
	for _, m := range x.modes {
		list = append(list, m.Name)
	}
	slices.SortFunc(list, func(a, b xml.QName) int {
		return cmp.Compare(a.ExpandedName(), b.ExpandedName())
	})
	return list
}

// BestMatch returns the template of highest priority, precedence and
// document order whose pattern matches node in the given mode.
func (x *Index) BestMatch(ctx xpath.Context, mode xml.QName) (*Template, error) {
	return x.bestMatch(ctx, mode, func(_ *association) bool {
		return true
	})
}

// BestMatchBelow is BestMatch restricted to templates whose import
// precedence lies within [lo, hi).
func (x *Index) BestMatchBelow(ctx xpath.Context, mode xml.QName, lo, hi int) (*Template, error) {
	return x.bestMatch(ctx, mode, func(a *association) bool {
		return a.precedence >= lo && a.precedence < hi
	})
}

func (x *Index) bestMatch(ctx xpath.Context, mode xml.QName, accept func(*association) bool) (*Template, error) {
	m := x.mode(mode, false)
	if m == nil {
		return nil, nil
	}
	for _, a := range m.candidates(ctx.Node) {
		if !accept(a) {
			continue
		}
		ok, err := a.pattern.Match(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return a.template, nil
		}
	}
	return nil, nil
}
