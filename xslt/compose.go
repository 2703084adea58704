package xslt

import (
	"fmt"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xpath"
)

type binding struct {
	global bool
	slot   int
}

// allocator hands out the slots of one stack frame.
type allocator struct {
	next int
	size int
}

func (a *allocator) assign(inst *Instruction) int {
	if inst.Slot == none {
		inst.Slot = a.next
	}
	a.next = inst.Slot + 1
	a.size = max(a.size, a.next)
	return inst.Slot
}

func (s *Stylesheet) globalScope() environ.Environ[binding] {
	scope := environ.Empty[binding]()
	for _, g := range s.globals {
		scope.Define(g.Name.ExpandedName(), binding{global: true, slot: g.Slot})
	}
	return scope
}

func (s *Stylesheet) compose() error {
	globals := s.globalScope()
	for _, mod := range s.modules {
		for c := range s.nodes.children(mod.Root) {
			if err := s.composeDeclaration(c, globals); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Stylesheet) composeDeclaration(ix int, globals environ.Environ[binding]) error {
	inst := &s.nodes[ix]
	switch inst.Kind {
	case KindTemplate:
		if err := s.fixup(ix, globals); err != nil {
			return err
		}
		var body *Body
		if inst.Template != nil {
			body = &inst.Template.Body
		}
		return s.composeBody(ix, body, globals)
	case KindFunction:
		var body *Body
		if inst.Function != nil {
			body = &inst.Function.Body
		}
		return s.composeBody(ix, body, globals)
	case KindVariable, KindParam:
		if err := s.fixup(ix, globals); err != nil {
			return err
		}
		var body *Body
		if inst.Global != nil {
			body = &inst.Global.Body
		}
		return s.composeBody(ix, body, globals)
	case KindAttributeSet:
		var body *Body
		for _, set := range s.attrSets[inst.Name.ExpandedName()] {
			if set.Node == ix {
				body = &set.Body
			}
		}
		return s.composeBody(ix, body, globals)
	case KindKey:
		return s.fixup(ix, globals)
	default:
		return nil
	}
}

// composeBody assigns the slots of the frame owned by the instruction at
// ix. Shadowed declarations have no body but are composed all the same.
func (s *Stylesheet) composeBody(ix int, body *Body, globals environ.Environ[binding]) error {
	var alloc allocator
	if body == nil {
		body = &Body{Node: ix}
	}
	body.resetParams()
	body.ParamCount = 0
	if err := s.composeChildren(ix, body, environ.Enclosed(globals), &alloc); err != nil {
		return err
	}
	body.FrameSize = alloc.size
	return nil
}

func (s *Stylesheet) composeChildren(parent int, body *Body, scope environ.Environ[binding], alloc *allocator) error {
	scope = environ.Enclosed(scope)
	for c := range s.nodes.children(parent) {
		if err := s.fixup(c, scope); err != nil {
			return err
		}
		if err := s.composeChildren(c, body, scope, alloc); err != nil {
			return err
		}
		inst := &s.nodes[c]
		if inst.Kind != KindVariable && inst.Kind != KindParam {
			continue
		}
		slot := alloc.assign(inst)
		scope.Define(inst.Name.ExpandedName(), binding{slot: slot})
		if inst.Kind == KindParam && parent == body.Node {
			body.declare(inst.Name, slot)
			body.ParamCount++
		}
	}
	return nil
}

// fixup binds the variable references of the instruction at ix.
func (s *Stylesheet) fixup(ix int, scope environ.Environ[binding]) error {
	inst := &s.nodes[ix]
	for _, ref := range xpath.Variables(inst.exprs()...) {
		b, err := scope.Resolve(ref.Name.ExpandedName())
		if err != nil {
			err = fmt.Errorf("$%s: variable %w", ref.Name.QualifiedName(), ErrUndefined)
			return s.composeError(ix, err)
		}
		ref.Binding = xpath.Binding{
			Kind:  xpath.Local,
			Index: b.slot,
		}
		if b.global {
			ref.Kind = xpath.Global
		}
	}
	return nil
}

func (s *Stylesheet) endCompose() error {
	for ix := range s.nodes {
		inst := &s.nodes[ix]
		switch inst.Kind {
		case KindCallTemplate:
			if err := s.resolveCall(ix); err != nil {
				return err
			}
		case KindFunctionResult:
			for n := inst.NextSibling; n != none; n = s.nodes[n].NextSibling {
				if s.nodes[n].Kind == KindFunctionResult {
					return s.composeError(n, ErrDuplicateResult)
				}
			}
		default:
		}
		for _, name := range inst.Sets {
			if _, ok := s.attrSets[name.ExpandedName()]; !ok {
				return s.composeError(ix, fmt.Errorf("%s: attribute set %w", name.QualifiedName(), ErrUndefined))
			}
		}
		if err := s.checkFormats(ix); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stylesheet) resolveCall(ix int) error {
	inst := &s.nodes[ix]
	t, ok := s.named[inst.Name.ExpandedName()]
	if !ok {
		var names []string
		for _, t := range s.named {
			names = append(names, t.Name.QualifiedName())
		}
		err := fmt.Errorf("%s: template %w", inst.Name.QualifiedName(), ErrUndefined)
		return s.composeError(ix, suggest(err, inst.Name.QualifiedName(), names))
	}
	inst.Target = t
	for _, c := range s.nodes.childrenOf(ix, KindWithParam) {
		p := &s.nodes[c]
		p.Slot = none
		if slot, ok := t.ParamSlot(p.Name); ok {
			p.Slot = slot
		}
	}
	return nil
}

// checkFormats validates the patterns given as literals to format-number.
func (s *Stylesheet) checkFormats(ix int) error {
	for _, c := range xpath.Calls(s.nodes[ix].exprs()...) {
		if c.Name.Uri != "" || c.Name.Name != "format-number" || len(c.Args) < 2 {
			continue
		}
		pattern, ok := c.Args[1].(xpath.Literal)
		if !ok {
			continue
		}
		df := s.formats[""]
		if len(c.Args) == 3 {
			name, ok := c.Args[2].(xpath.Literal)
			if !ok {
				continue
			}
			qn, err := qname(name.Value, namespacesOf(s.nodes[ix].Namespaces))
			if err != nil {
				return s.composeError(ix, err)
			}
			if df = s.formats[qn.ExpandedName()]; df == nil {
				continue
			}
		}
		if df == nil {
			df = DefaultDecimalFormat()
		}
		if _, err := df.parse(pattern.Value); err != nil {
			return s.composeError(ix, err)
		}
	}
	return nil
}
