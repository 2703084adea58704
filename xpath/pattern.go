package xpath

import (
	"fmt"
	"slices"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

// Wildcard is the target of patterns that can match nodes of any name.
const Wildcard = "*"

// Default priorities of patterns without an explicit priority.
const (
	PriorityIdKey    = -1
	PriorityNodeTest = -0.5
	PriorityNsWild   = -0.25
	PriorityQName    = 0
	PriorityOther    = 0.5
)

// Pattern is one alternative of an XSLT match pattern. Union patterns are
// split into several Pattern values by CompilePattern.
type Pattern struct {
	Source string

	root   bool
	anchor *Call
	steps  []patternStep
}

type patternStep struct {
	axis  Axis
	test  NodeTest
	preds []Expr
	// separated from the previous step by '//'
	deep bool
}

func CompilePattern(pattern string, namespaces environ.Environ[string]) ([]*Pattern, error) {
	return NewCompiler(pattern, namespaces).CompilePattern()
}

func (c *Compiler) CompilePattern() ([]*Pattern, error) {
	if c.done() {
		return nil, c.createError("empty pattern")
	}
	var list []*Pattern
	for {
		p, err := c.compileAlternative()
		if err != nil {
			return nil, err
		}
		list = append(list, p)
		if !c.is(opUnion) {
			break
		}
		c.next()
	}
	if !c.done() {
		return nil, c.createError(fmt.Sprintf("unexpected token %s in pattern", c.curr))
	}
	if len(list) == 1 {
		list[0].Source = c.expr
	}
	return list, nil
}

func (c *Compiler) compileAlternative() (*Pattern, error) {
	var (
		p    Pattern
		deep bool
		beg  = c.curr.Offset
	)
	switch {
	case c.is(currLevel):
		c.next()
		p.root = true
		if !c.startStep() {
			p.Source = "/"
			return &p, nil
		}
	case c.is(anyLevel):
		c.next()
		p.root = true
		deep = true
	case c.is(Name) && c.peek.Type == begGrp && (c.curr.Literal == "id" || c.curr.Literal == "key"):
		call, err := c.compileAnchor()
		if err != nil {
			return nil, err
		}
		p.anchor = call
		switch {
		case c.is(currLevel):
			c.next()
		case c.is(anyLevel):
			c.next()
			deep = true
		default:
			return &p, nil
		}
	}
	for {
		s, err := c.compilePatternStep()
		if err != nil {
			return nil, err
		}
		s.deep = deep
		p.steps = append(p.steps, s)
		switch {
		case c.is(currLevel):
			c.next()
			deep = false
		case c.is(anyLevel):
			c.next()
			deep = true
		default:
			p.Source = sourceBetween(c.expr, beg, c.curr.Offset)
			return &p, nil
		}
	}
}

func (c *Compiler) compileAnchor() (*Call, error) {
	expr, err := c.compileCall()
	if err != nil {
		return nil, err
	}
	call := expr.(*Call)
	for _, a := range call.Args {
		switch a.(type) {
		case Literal, *VarRef:
		default:
			return nil, c.createError(fmt.Sprintf("%s: only literal arguments allowed in pattern", call.Name.Name))
		}
	}
	return call, nil
}

func (c *Compiler) compilePatternStep() (patternStep, error) {
	var s patternStep
	switch {
	case c.is(attrNode):
		c.next()
		s.axis = AxisAttribute
	case c.is(axisName):
		switch c.curr.Literal {
		case "child":
			s.axis = AxisChild
		case "attribute":
			s.axis = AxisAttribute
		default:
			return s, c.createError(fmt.Sprintf("%s: axis not allowed in pattern", c.curr.Literal))
		}
		c.next()
	default:
		s.axis = AxisChild
	}
	test, err := c.compileNodeTest()
	if err != nil {
		return s, err
	}
	s.test = test
	s.preds, err = c.compilePredicates()
	return s, err
}

// Match reports whether the context node matches the pattern.
func (p *Pattern) Match(ctx Context) (bool, error) {
	node := ctx.Node
	if len(p.steps) == 0 {
		if p.anchor != nil {
			return p.inAnchor(ctx, node)
		}
		return node.Type() == xml.TypeDocument, nil
	}
	return p.matchStep(ctx, len(p.steps)-1, node)
}

func (p *Pattern) matchStep(ctx Context, i int, node xml.Node) (bool, error) {
	s := p.steps[i]
	if ok, err := s.match(ctx, node); !ok || err != nil {
		return ok, err
	}
	parent := node.Parent()
	if parent == nil {
		return false, nil
	}
	if i == 0 {
		switch {
		case p.root && s.deep:
			return xml.Root(node).Type() == xml.TypeDocument, nil
		case p.root:
			return parent.Type() == xml.TypeDocument, nil
		case p.anchor != nil && s.deep:
			for a := parent; a != nil; a = a.Parent() {
				if ok, err := p.inAnchor(ctx, a); ok || err != nil {
					return ok, err
				}
			}
			return false, nil
		case p.anchor != nil:
			return p.inAnchor(ctx, parent)
		default:
			return true, nil
		}
	}
	if !s.deep {
		return p.matchStep(ctx, i-1, parent)
	}
	for a := parent; a != nil; a = a.Parent() {
		if ok, err := p.matchStep(ctx, i-1, a); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func (p *Pattern) inAnchor(ctx Context, node xml.Node) (bool, error) {
	v, err := p.anchor.Eval(ctx.Sub(node, 1, 1))
	if err != nil {
		return false, err
	}
	nodes, err := ToNodeSet(v)
	if err != nil {
		return false, err
	}
	return slices.Contains(nodes, node), nil
}

func (s patternStep) match(ctx Context, node xml.Node) (bool, error) {
	switch node.Type() {
	case xml.TypeAttribute:
		if s.axis != AxisAttribute {
			return false, nil
		}
	case xml.TypeDocument, xml.TypeNamespace:
		return false, nil
	default:
		if s.axis != AxisChild {
			return false, nil
		}
	}
	if !s.test.Test(node, s.axis.principal()) {
		return false, nil
	}
	if len(s.preds) == 0 {
		return true, nil
	}
	parent := node.Parent()
	if parent == nil {
		return false, nil
	}
	var candidates []xml.Node
	for _, n := range s.axis.walk(parent) {
		if s.test.Test(n, s.axis.principal()) {
			candidates = append(candidates, n)
		}
	}
	res, err := applyPredicates(ctx, candidates, s.preds)
	if err != nil {
		return false, err
	}
	return slices.Contains(res, node), nil
}

// Priority returns the default priority of the pattern.
func (p *Pattern) Priority() float64 {
	if len(p.steps) == 0 {
		if p.anchor != nil {
			return PriorityIdKey
		}
		return PriorityNodeTest
	}
	if len(p.steps) > 1 || p.root || p.anchor != nil {
		return PriorityOther
	}
	s := p.steps[0]
	if len(s.preds) > 0 {
		return PriorityOther
	}
	switch t := s.test.(type) {
	case nameTest:
		if t.any {
			return PriorityNsWild
		}
		return PriorityQName
	case kindTest:
		if t.kind == xml.TypeInstruction && t.target != "" {
			return PriorityQName
		}
		return PriorityNodeTest
	default:
		return PriorityNodeTest
	}
}

// Target returns the key under which the pattern is indexed: the local
// name or node kind tested by its last step, or Wildcard.
func (p *Pattern) Target() string {
	if len(p.steps) == 0 {
		if p.anchor != nil {
			return Wildcard
		}
		return "#document"
	}
	s := p.steps[len(p.steps)-1]
	switch t := s.test.(type) {
	case nameTest:
		if t.any {
			return Wildcard
		}
		return t.Name
	case kindTest:
		switch t.kind {
		case xml.TypeText:
			return "#text"
		case xml.TypeComment:
			return "#comment"
		case xml.TypeInstruction:
			return "#pi"
		default:
			return Wildcard
		}
	default:
		return Wildcard
	}
}

func (p *Pattern) String() string {
	return p.Source
}

// Exprs returns the expressions embedded in the pattern.
func (p *Pattern) Exprs() []Expr {
	var list []Expr
	if p.anchor != nil {
		list = append(list, p.anchor)
	}
	for _, s := range p.steps {
		list = append(list, s.preds...)
	}
	return list
}

// NodeTarget returns the index key of a node, matching Pattern.Target.
func NodeTarget(node xml.Node) string {
	switch node.Type() {
	case xml.TypeElement, xml.TypeAttribute:
		return node.LocalName()
	case xml.TypeText:
		return "#text"
	case xml.TypeComment:
		return "#comment"
	case xml.TypeInstruction:
		return "#pi"
	case xml.TypeDocument:
		return "#document"
	default:
		return Wildcard
	}
}

func sourceBetween(expr string, beg, end int) string {
	runes := []rune(expr)
	if beg < 0 || end > len(runes) || beg > end {
		return expr
	}
	return strings.TrimSpace(string(runes[beg:end]))
}
