package xpath

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/midbel/angle/xml"
)

var (
	ErrUndefined = errors.New("undefined")
	ErrArgument  = errors.New("invalid number of arguments")
)

// Func is a function callable from an expression.
type Func func(Context, []Value) (Value, error)

// Environment gives expressions access to variables and to functions that
// are not part of the core library.
type Environment interface {
	Resolve(*VarRef) (Value, error)
	Function(xml.QName) (Func, bool)
}

type Context struct {
	Node     xml.Node
	Position int
	Size     int

	Env Environment
}

func NewContext(node xml.Node, env Environment) Context {
	return Context{
		Node:     node,
		Position: 1,
		Size:     1,
		Env:      env,
	}
}

func (c Context) Sub(node xml.Node, pos, size int) Context {
	c.Node = node
	c.Position = pos
	c.Size = size
	return c
}

type Expr interface {
	Eval(Context) (Value, error)
}

// Eval evaluates expr with node as the context node.
func Eval(expr Expr, node xml.Node, env Environment) (Value, error) {
	return expr.Eval(NewContext(node, env))
}

type BindingKind int8

const (
	Unbound BindingKind = iota
	Local
	Global
)

type Binding struct {
	Kind  BindingKind
	Index int
}

// VarRef is a variable reference. Its binding is filled at compose time so
// evaluation can index the variable stack directly.
type VarRef struct {
	Name xml.QName
	Binding
}

func (v *VarRef) Eval(ctx Context) (Value, error) {
	if ctx.Env == nil {
		return nil, fmt.Errorf("$%s: variable %w", v.Name.QualifiedName(), ErrUndefined)
	}
	return ctx.Env.Resolve(v)
}

type Literal struct {
	Value string
}

func (i Literal) Eval(_ Context) (Value, error) {
	return String(i.Value), nil
}

type number struct {
	value float64
}

func (n number) Eval(_ Context) (Value, error) {
	return Number(n.value), nil
}

type Call struct {
	Name xml.QName
	Args []Expr
}

func (c *Call) Eval(ctx Context) (Value, error) {
	fn, err := c.resolve(ctx)
	if err != nil {
		return nil, err
	}
	args := make([]Value, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := a.Eval(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn(ctx, args)
}

func (c *Call) resolve(ctx Context) (Func, error) {
	if ctx.Env != nil {
		if fn, ok := ctx.Env.Function(c.Name); ok {
			return fn, nil
		}
	}
	if c.Name.Uri == "" {
		if fn, ok := builtins[c.Name.Name]; ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%s: function %w", c.Name.QualifiedName(), ErrUndefined)
}

type negate struct {
	expr Expr
}

func (n negate) Eval(ctx Context) (Value, error) {
	v, err := n.expr.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return Number(-ToNumber(v)), nil
}

type binary struct {
	op    rune
	left  Expr
	right Expr
}

func (b binary) Eval(ctx Context) (Value, error) {
	left, err := b.left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opAnd:
		if !ToBool(left) {
			return Boolean(false), nil
		}
		right, err := b.right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return Boolean(ToBool(right)), nil
	case opOr:
		if ToBool(left) {
			return Boolean(true), nil
		}
		right, err := b.right.Eval(ctx)
		if err != nil {
			return nil, err
		}
		return Boolean(ToBool(right)), nil
	}
	right, err := b.right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opEq, opNe, opLt, opLe, opGt, opGe:
		return Boolean(compare(b.op, left, right)), nil
	}
	var (
		x = ToNumber(left)
		y = ToNumber(right)
	)
	switch b.op {
	case opAdd:
		return Number(x + y), nil
	case opSub:
		return Number(x - y), nil
	case opMul:
		return Number(x * y), nil
	case opDiv:
		return Number(x / y), nil
	case opMod:
		return Number(math.Mod(x, y)), nil
	default:
		return nil, fmt.Errorf("unsupported operator")
	}
}

type union struct {
	left  Expr
	right Expr
}

func (u union) Eval(ctx Context) (Value, error) {
	left, err := evalNodeSet(u.left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := evalNodeSet(u.right, ctx)
	if err != nil {
		return nil, err
	}
	all := append(slices.Clone(left), right...)
	return NodeSet(xml.SortDocumentOrder(all)), nil
}

type filter struct {
	expr  Expr
	preds []Expr
}

func (f filter) Eval(ctx Context) (Value, error) {
	v, err := f.expr.Eval(ctx)
	if err != nil || len(f.preds) == 0 {
		return v, err
	}
	nodes, err := ToNodeSet(v)
	if err != nil {
		return nil, err
	}
	return applyPredicates(ctx, nodes, f.preds)
}

// path is a location path. When base is nil the path starts from the context
// node, or from the root when root is set.
type path struct {
	root  bool
	base  Expr
	steps []step
}

func (p path) Eval(ctx Context) (Value, error) {
	var nodes NodeSet
	switch {
	case p.base != nil:
		v, err := evalNodeSet(p.base, ctx)
		if err != nil {
			return nil, err
		}
		nodes = v
	case p.root:
		nodes = NodeSet{xml.Root(ctx.Node)}
	default:
		nodes = NodeSet{ctx.Node}
	}
	for _, s := range p.steps {
		var next []xml.Node
		for _, n := range nodes {
			res, err := s.apply(ctx, n)
			if err != nil {
				return nil, err
			}
			next = append(next, res...)
		}
		nodes = NodeSet(xml.SortDocumentOrder(next))
	}
	return nodes, nil
}

type step struct {
	axis  Axis
	test  NodeTest
	preds []Expr
}

func (s step) apply(ctx Context, node xml.Node) ([]xml.Node, error) {
	var (
		principal = s.axis.principal()
		list      []xml.Node
	)
	for _, n := range s.axis.walk(node) {
		if s.test.Test(n, principal) {
			list = append(list, n)
		}
	}
	if len(s.preds) == 0 {
		return list, nil
	}
	return applyPredicates(ctx, list, s.preds)
}

func applyPredicates(ctx Context, nodes NodeSet, preds []Expr) (NodeSet, error) {
	for _, p := range preds {
		var (
			keep []xml.Node
			size = len(nodes)
		)
		for i, n := range nodes {
			v, err := p.Eval(ctx.Sub(n, i+1, size))
			if err != nil {
				return nil, err
			}
			var ok bool
			if num, isnum := v.(Number); isnum {
				ok = float64(num) == float64(i+1)
			} else {
				ok = ToBool(v)
			}
			if ok {
				keep = append(keep, n)
			}
		}
		nodes = keep
	}
	return nodes, nil
}

func evalNodeSet(expr Expr, ctx Context) (NodeSet, error) {
	v, err := expr.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return ToNodeSet(v)
}

type Axis int8

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisDescendantOrSelf
	AxisParent
	AxisAncestor
	AxisAncestorOrSelf
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisFollowing
	AxisPreceding
	AxisAttribute
	AxisNamespace
	AxisSelf
)

var axisNames = map[string]Axis{
	"child":              AxisChild,
	"descendant":         AxisDescendant,
	"descendant-or-self": AxisDescendantOrSelf,
	"parent":             AxisParent,
	"ancestor":           AxisAncestor,
	"ancestor-or-self":   AxisAncestorOrSelf,
	"following-sibling":  AxisFollowingSibling,
	"preceding-sibling":  AxisPrecedingSibling,
	"following":          AxisFollowing,
	"preceding":          AxisPreceding,
	"attribute":          AxisAttribute,
	"namespace":          AxisNamespace,
	"self":               AxisSelf,
}

func (a Axis) principal() xml.NodeType {
	switch a {
	case AxisAttribute:
		return xml.TypeAttribute
	case AxisNamespace:
		return xml.TypeNamespace
	default:
		return xml.TypeElement
	}
}

func (a Axis) reverse() bool {
	switch a {
	case AxisParent, AxisAncestor, AxisAncestorOrSelf, AxisPrecedingSibling, AxisPreceding:
		return true
	default:
		return false
	}
}

// walk returns the nodes of the axis in axis order: reverse axes yield
// the closest node first so that predicate positions are counted properly.
func (a Axis) walk(node xml.Node) []xml.Node {
	switch a {
	case AxisSelf:
		return []xml.Node{node}
	case AxisChild:
		return xml.Children(node)
	case AxisAttribute:
		el, ok := node.(*xml.Element)
		if !ok {
			return nil
		}
		list := make([]xml.Node, 0, len(el.Attrs))
		for _, a := range el.Attrs {
			list = append(list, a)
		}
		return list
	case AxisNamespace:
		el, ok := node.(*xml.Element)
		if !ok {
			return nil
		}
		return el.NamespaceNodes()
	case AxisParent:
		if p := node.Parent(); p != nil {
			return []xml.Node{p}
		}
		return nil
	case AxisAncestor, AxisAncestorOrSelf:
		var list []xml.Node
		if a == AxisAncestorOrSelf {
			list = append(list, node)
		}
		for p := node.Parent(); p != nil; p = p.Parent() {
			list = append(list, p)
		}
		return list
	case AxisDescendant, AxisDescendantOrSelf:
		var list []xml.Node
		if a == AxisDescendantOrSelf {
			list = append(list, node)
		}
		return descendants(node, list)
	case AxisFollowingSibling, AxisPrecedingSibling:
		if isAttribute(node) {
			return nil
		}
		p := node.Parent()
		if p == nil {
			return nil
		}
		siblings := xml.Children(p)
		pos := node.Position()
		if a == AxisFollowingSibling {
			return slices.Clone(siblings[pos+1:])
		}
		list := slices.Clone(siblings[:pos])
		slices.Reverse(list)
		return list
	case AxisFollowing:
		var list []xml.Node
		curr := node
		if isAttribute(curr) {
			curr = curr.Parent()
			list = descendants(curr, list)
		}
		for ; curr != nil && curr.Parent() != nil; curr = curr.Parent() {
			siblings := xml.Children(curr.Parent())
			for _, s := range siblings[curr.Position()+1:] {
				list = append(list, s)
				list = descendants(s, list)
			}
		}
		return list
	case AxisPreceding:
		var (
			list []xml.Node
			curr = node
		)
		if isAttribute(curr) {
			curr = curr.Parent()
		}
		for ; curr != nil && curr.Parent() != nil; curr = curr.Parent() {
			siblings := xml.Children(curr.Parent())
			for i := curr.Position() - 1; i >= 0; i-- {
				sub := descendants(siblings[i], nil)
				slices.Reverse(sub)
				list = append(list, sub...)
				list = append(list, siblings[i])
			}
		}
		return list
	default:
		return nil
	}
}

func descendants(node xml.Node, list []xml.Node) []xml.Node {
	for _, c := range xml.Children(node) {
		list = append(list, c)
		list = descendants(c, list)
	}
	return list
}

func isAttribute(n xml.Node) bool {
	t := n.Type()
	return t == xml.TypeAttribute || t == xml.TypeNamespace
}

type NodeTest interface {
	Test(xml.Node, xml.NodeType) bool
}

type nameTest struct {
	xml.QName
	// local name is "*" for ns:* tests
	any bool
}

func (n nameTest) Test(node xml.Node, principal xml.NodeType) bool {
	if node.Type() != principal {
		return false
	}
	if node.Namespace() != n.Uri {
		return false
	}
	return n.any || node.LocalName() == n.Name
}

type wildcardTest struct{}

func (wildcardTest) Test(node xml.Node, principal xml.NodeType) bool {
	return node.Type() == principal
}

type kindTest struct {
	kind   xml.NodeType
	target string
}

func (k kindTest) Test(node xml.Node, _ xml.NodeType) bool {
	if k.kind == xml.TypeNode {
		return true
	}
	if node.Type() != k.kind {
		return false
	}
	return k.target == "" || node.LocalName() == k.target
}
