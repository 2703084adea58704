package xslt

import (
	"context"
	"errors"
	"fmt"

	"github.com/midbel/angle/alpha"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type funcResult struct {
	value xpath.Value
	set   bool
}

// transform is the state shared by every context of a single transform.
// It is never shared between transforms.
type transform struct {
	sheet    *Stylesheet
	stack    *Stack
	listener Listener
	tracer   Tracer
	root     xml.Node
	ctx      context.Context

	keys  *keyIndex
	ids   map[xml.Node]string
	namer alpha.Namer
	docs  map[string]*xml.Document
}

func newTransform(s *Stylesheet, root xml.Node, cfg *config) *transform {
	return &transform{
		sheet:    s,
		stack:    NewStack(len(s.globals)),
		listener: cfg.listener,
		tracer:   cfg.tracer,
		root:     root,
		ctx:      cfg.ctx,
		keys:     newKeyIndex(),
		ids:      make(map[xml.Node]string),
		namer:    alpha.Sequence("id", "A"),
		docs:     make(map[string]*xml.Document),
	}
}

// Context is the dynamic context of the instruction being executed.
type Context struct {
	*transform

	Node     xml.Node
	Position int
	Size     int
	Handler  Handler
	// current template rule, nil inside for-each and when evaluating
	// globals
	Template *Template
	Mode     xml.QName
	Inst     int
	Depth    int

	result *funcResult
}

// Instruction returns the instruction being executed.
func (c *Context) Instruction() *Instruction {
	if c.Inst < 0 {
		return nil
	}
	return &c.sheet.nodes[c.Inst]
}

func (c *Context) clone() *Context {
	x := *c
	return &x
}

func (c *Context) with(node xml.Node, pos, size int) *Context {
	x := c.clone()
	x.Node = node
	x.Position = pos
	x.Size = size
	return x
}

func (c *Context) at(ix int) *Context {
	x := c.clone()
	x.Inst = ix
	return x
}

func (c *Context) nest() *Context {
	x := c.clone()
	x.Depth++
	return x
}

func (c *Context) withHandler(h Handler) *Context {
	x := c.clone()
	x.Handler = h
	return x
}

// global returns the context used to evaluate top level declarations.
func (c *Context) global(ix int) *Context {
	return &Context{
		transform: c.transform,
		Node:      c.root,
		Position:  1,
		Size:      1,
		Handler:   discardHandler{},
		Inst:      ix,
		Depth:     c.Depth + 1,
	}
}

func (c *Context) xpathContext() xpath.Context {
	return xpath.Context{
		Node:     c.Node,
		Position: c.Position,
		Size:     c.Size,
		Env:      c,
	}
}

// Eval evaluates expr against the context node.
func (c *Context) Eval(expr xpath.Expr) (xpath.Value, error) {
	return c.eval(expr)
}

func (c *Context) eval(expr xpath.Expr) (xpath.Value, error) {
	return expr.Eval(c.xpathContext())
}

func (c *Context) evalBool(expr xpath.Expr) (bool, error) {
	v, err := c.eval(expr)
	if err != nil {
		return false, err
	}
	return xpath.ToBool(v), nil
}

func (c *Context) evalString(expr xpath.Expr) (string, error) {
	v, err := c.eval(expr)
	if err != nil {
		return "", err
	}
	return xpath.ToString(v), nil
}

func (c *Context) evalNodeSet(expr xpath.Expr) (xpath.NodeSet, error) {
	v, err := c.eval(expr)
	if err != nil {
		return nil, err
	}
	return xpath.ToNodeSet(v)
}

// evalBinding computes the value of a variable, param, with-param or
// func:result instruction.
func (c *Context) evalBinding(ix int) (xpath.Value, error) {
	inst := &c.sheet.nodes[ix]
	if inst.Select != nil {
		return c.eval(inst.Select)
	}
	if inst.FirstChild == none {
		return xpath.String(""), nil
	}
	doc, err := c.instantiate(ix)
	if err != nil {
		return nil, err
	}
	return xpath.NewFragment(doc), nil
}

// instantiate executes the children of ix into a new result tree
// fragment.
func (c *Context) instantiate(ix int) (*xml.Document, error) {
	b := NewBuilder()
	if err := c.withHandler(b).executeChildren(ix); err != nil {
		return nil, err
	}
	return b.Document(), nil
}

func (c *Context) instantiateString(ix int) (string, error) {
	doc, err := c.instantiate(ix)
	if err != nil {
		return "", err
	}
	return doc.Value(), nil
}

// Resolve gives access to the variables bound by compose.
func (c *Context) Resolve(ref *xpath.VarRef) (xpath.Value, error) {
	switch ref.Kind {
	case xpath.Local:
		return c.stack.Local(ref.Index)
	case xpath.Global:
		if ref.Index < 0 || ref.Index >= len(c.sheet.globals) {
			break
		}
		g := c.sheet.globals[ref.Index]
		v, err := c.stack.Global(g.Slot, func() (xpath.Value, error) {
			return c.evalGlobal(g)
		})
		if errors.Is(err, ErrSelfReference) && c.stack.globalState(g.Slot) == Evaluating {
			err = fmt.Errorf("$%s: %w", g.Name.QualifiedName(), ErrSelfReference)
		}
		return v, err
	default:
	}
	return nil, fmt.Errorf("$%s: variable %w", ref.Name.QualifiedName(), ErrUndefined)
}

func (c *Context) evalGlobal(g *Global) (xpath.Value, error) {
	saved := c.stack.Frame()
	c.stack.Link(g.FrameSize)
	defer c.stack.Unlink(saved)

	return c.global(g.Node).evalBinding(g.Node)
}

// Function resolves the functions of the XSLT library, the stylesheet
// functions and the registered extension functions.
func (c *Context) Function(qn xml.QName) (xpath.Func, bool) {
	if qn.Uri == "" {
		fn, ok := xsltFunctions[qn.Name]
		return fn, ok
	}
	key := qn.ExpandedName()
	if fn, ok := c.sheet.functions[key]; ok {
		return c.callable(fn), true
	}
	if fn, ok := c.sheet.funcs[key]; ok {
		return fn, true
	}
	fn, ok := extensionFunctions[key]
	return fn, ok
}

func (c *Context) callable(fn *Function) xpath.Func {
	return func(xc xpath.Context, args []xpath.Value) (xpath.Value, error) {
		return c.with(xc.Node, xc.Position, xc.Size).callFunction(fn, args)
	}
}

func (c *Context) callFunction(fn *Function, args []xpath.Value) (xpath.Value, error) {
	slots := fn.ParamSlots()
	if len(args) > len(slots) {
		return nil, fmt.Errorf("%s: %w", fn.Name.QualifiedName(), xpath.ErrArgument)
	}
	saved := c.stack.Frame()
	next := c.stack.Link(fn.FrameSize)
	defer c.stack.Unlink(saved)

	for i, a := range args {
		c.stack.SetLocalAt(next, slots[i], a)
	}
	sub := c.nest()
	sub.Handler = discardHandler{}
	sub.Inst = fn.Node
	sub.result = &funcResult{}
	if err := sub.executeChildren(fn.Node); err != nil {
		return nil, err
	}
	if !sub.result.set {
		return xpath.String(""), nil
	}
	return sub.result.value, nil
}

func (c *Context) warn(format string, args ...any) {
	c.report(Warning, nil, format, args...)
}

func (c *Context) report(kind ErrorKind, err error, format string, args ...any) {
	d := Diagnostic{
		Kind:    kind,
		Node:    c.Node,
		Message: format,
		Args:    args,
		Err:     err,
	}
	if inst := c.Instruction(); inst != nil {
		d.Instruction = inst.QualifiedName()
		d.Module = c.sheet.modules[inst.Module].URI
	}
	c.listener.Report(d)
}

// fail wraps err with the instruction being executed unless it already
// carries one.
func (c *Context) fail(kind ErrorKind, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return c.sheet.newError(kind, c.Inst, err)
}
