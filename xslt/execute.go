package xslt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type executeFunc func(*Context, *Instruction) error

var executers map[Kind]executeFunc

func init() {
	trace := func(exec executeFunc) executeFunc {
		fn := func(ctx *Context, inst *Instruction) error {
			ctx.tracer.Enter(ctx)
			defer ctx.tracer.Leave(ctx)

			err := exec(ctx, inst)
			if err != nil {
				ctx.tracer.Error(ctx, err)
			}
			return err
		}
		return fn
	}
	nest := func(exec executeFunc) executeFunc {
		fn := func(ctx *Context, inst *Instruction) error {
			return exec(ctx.nest(), inst)
		}
		return trace(fn)
	}
	executers = map[Kind]executeFunc{
		KindLiteralText:           executeLiteralText,
		KindLiteralElement:        nest(executeLiteralElement),
		KindIf:                    nest(executeIf),
		KindChoose:                nest(executeChoose),
		KindForEach:               nest(executeForEach),
		KindCallTemplate:          nest(executeCallTemplate),
		KindApplyTemplates:        nest(executeApplyTemplates),
		KindApplyImports:          nest(executeApplyImports),
		KindCopy:                  nest(executeCopy),
		KindCopyOf:                trace(executeCopyOf),
		KindValueOf:               trace(executeValueOf),
		KindVariable:              trace(executeVariable),
		KindParam:                 trace(executeParam),
		KindMessage:               trace(executeMessage),
		KindProcessingInstruction: trace(executePI),
		KindComment:               trace(executeComment),
		KindElement:               nest(executeElement),
		KindAttribute:             trace(executeAttribute),
		KindText:                  executeText,
		KindNumber:                trace(executeNumber),
		KindExtensionCall:         nest(executeExtension),
		KindFunctionResult:        trace(executeFunctionResult),
	}
}

func executeNothing(_ *Context, _ *Instruction) error {
	return nil
}

// execute runs the instruction at ix. Declarations and instructions
// handled by their parent (sort, with-param, when, fallback...) do
// nothing.
func (c *Context) execute(ix int) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	inst := &c.sheet.nodes[ix]
	fn, ok := executers[inst.Kind]
	if !ok {
		fn = executeNothing
	}
	sub := c.at(ix)
	if err := fn(sub, inst); err != nil {
		return sub.fail(RuntimeError, err)
	}
	return nil
}

func (c *Context) executeChildren(ix int) error {
	for child := range c.sheet.nodes.children(ix) {
		if err := c.execute(child); err != nil {
			return err
		}
	}
	return nil
}

func executeLiteralText(ctx *Context, inst *Instruction) error {
	return ctx.Handler.Characters(inst.Text)
}

func executeText(ctx *Context, inst *Instruction) error {
	if inst.Text == "" {
		return nil
	}
	return ctx.Handler.Characters(inst.Text)
}

func executeLiteralElement(ctx *Context, inst *Instruction) error {
	name := ctx.sheet.alias(inst.Name)
	if err := ctx.Handler.StartElement(name); err != nil {
		return err
	}
	for _, ns := range inst.Copied {
		ns = ctx.sheet.aliasNS(ns)
		if err := ctx.Handler.Namespace(ns.Prefix, ns.Uri); err != nil {
			return err
		}
	}
	if err := ctx.useAttributeSets(inst.Sets); err != nil {
		return err
	}
	for _, a := range inst.Attrs {
		value, err := a.Value.Eval(ctx)
		if err != nil {
			return err
		}
		if err := ctx.Handler.Attribute(ctx.sheet.alias(a.Name), value); err != nil {
			return err
		}
	}
	if err := ctx.executeChildren(ctx.Inst); err != nil {
		return err
	}
	return ctx.Handler.EndElement(name)
}

func executeIf(ctx *Context, inst *Instruction) error {
	ok, err := ctx.evalBool(inst.Test)
	if err != nil || !ok {
		return err
	}
	return ctx.executeChildren(ctx.Inst)
}

// executeChoose runs the first when whose test is true, or otherwise. A
// choose without any when is an error even when it has an otherwise.
func executeChoose(ctx *Context, inst *Instruction) error {
	if !ctx.sheet.nodes.hasChild(ctx.Inst, KindWhen) {
		return ErrChooseEmpty
	}
	for c := range ctx.sheet.nodes.children(ctx.Inst) {
		branch := &ctx.sheet.nodes[c]
		switch branch.Kind {
		case KindWhen:
			ok, err := ctx.at(c).evalBool(branch.Test)
			if err != nil {
				return ctx.at(c).fail(RuntimeError, err)
			}
			if ok {
				return ctx.executeChildren(c)
			}
		case KindOtherwise:
			return ctx.executeChildren(c)
		default:
		}
	}
	return nil
}

func executeForEach(ctx *Context, inst *Instruction) error {
	nodes, err := ctx.evalNodeSet(inst.Select)
	if err != nil {
		return err
	}
	if nodes, err = ctx.sortNodes(ctx.Inst, nodes); err != nil {
		return err
	}
	for i, n := range nodes {
		sub := ctx.with(n, i+1, len(nodes))
		sub.Template = nil
		if err := sub.executeChildren(ctx.Inst); err != nil {
			return err
		}
	}
	return nil
}

type withParam struct {
	name  xml.QName
	value xpath.Value
}

// evalParams evaluates the with-param children of ix in the current frame.
func (c *Context) evalParams(ix int) ([]withParam, error) {
	var list []withParam
	for _, p := range c.sheet.nodes.childrenOf(ix, KindWithParam) {
		v, err := c.at(p).evalBinding(p)
		if err != nil {
			return nil, c.at(p).fail(RuntimeError, err)
		}
		list = append(list, withParam{
			name:  c.sheet.nodes[p].Name,
			value: v,
		})
	}
	return list, nil
}

// executeCallTemplate evaluates the with-params in the frame of the caller
// and stores them directly in the frame of the callee. Params without a
// matching declaration are evaluated then dropped.
func executeCallTemplate(ctx *Context, inst *Instruction) error {
	t := inst.Target
	if t == nil {
		return fmt.Errorf("%s: template %w", inst.Name.QualifiedName(), ErrUndefined)
	}
	var (
		stack = ctx.stack
		saved = stack.Frame()
		next  = stack.Link(t.FrameSize)
	)
	defer stack.Unlink(saved)

	stack.ClearLocal(0, t.ParamCount)
	for _, p := range ctx.sheet.nodes.childrenOf(ctx.Inst, KindWithParam) {
		stack.SetFrame(saved)
		v, err := ctx.at(p).evalBinding(p)
		if err != nil {
			return ctx.at(p).fail(RuntimeError, err)
		}
		if slot := ctx.sheet.nodes[p].Slot; slot >= 0 {
			stack.SetLocalAt(next, slot, v)
		}
	}
	stack.SetFrame(next)

	sub := ctx.at(t.Node)
	return sub.executeChildren(t.Node)
}

func executeApplyTemplates(ctx *Context, inst *Instruction) error {
	var (
		nodes xpath.NodeSet
		err   error
	)
	if inst.Select != nil {
		nodes, err = ctx.evalNodeSet(inst.Select)
	} else {
		nodes = xpath.NodeSet(xml.Children(ctx.Node))
	}
	if err != nil {
		return err
	}
	if nodes, err = ctx.sortNodes(ctx.Inst, nodes); err != nil {
		return err
	}
	params, err := ctx.evalParams(ctx.Inst)
	if err != nil {
		return err
	}
	return ctx.applyTemplates(nodes, inst.Mode, params)
}

func (c *Context) applyTemplates(nodes []xml.Node, mode xml.QName, params []withParam) error {
	for i, n := range nodes {
		if err := c.ctx.Err(); err != nil {
			return err
		}
		sub := c.with(n, i+1, len(nodes))
		sub.Mode = mode
		t, err := c.sheet.index.BestMatch(sub.xpathContext(), mode)
		if err != nil {
			return err
		}
		if t == nil {
			err = sub.applyBuiltin()
		} else {
			err = sub.invoke(t, params)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// invoke runs the template t for the context node in a new frame.
func (c *Context) invoke(t *Template, params []withParam) error {
	return c.call(t, params, t)
}

// call runs the body of t in a new frame with rule as the current template
// rule. A named template started by the caller has no current rule.
func (c *Context) call(t *Template, params []withParam, rule *Template) error {
	var (
		saved = c.stack.Frame()
		next  = c.stack.Link(t.FrameSize)
	)
	defer c.stack.Unlink(saved)

	for _, p := range params {
		if slot, ok := t.ParamSlot(p.name); ok {
			c.stack.SetLocalAt(next, slot, p.value)
		}
	}
	sub := c.at(t.Node)
	sub.Template = rule
	return sub.executeChildren(t.Node)
}

// applyBuiltin runs the built-in template rule for the context node.
func (c *Context) applyBuiltin() error {
	switch c.Node.Type() {
	case xml.TypeDocument, xml.TypeElement:
		return c.applyTemplates(xml.Children(c.Node), c.Mode, nil)
	case xml.TypeText, xml.TypeAttribute:
		return c.Handler.Characters(c.Node.Value())
	default:
		return nil
	}
}

func executeApplyImports(ctx *Context, inst *Instruction) error {
	t := ctx.Template
	if t == nil {
		return ErrNoTemplateRule
	}
	other, err := ctx.sheet.index.BestMatchBelow(ctx.xpathContext(), ctx.Mode, t.ImportLo, t.Precedence)
	if err != nil {
		return err
	}
	if other == nil {
		return ctx.applyBuiltin()
	}
	return ctx.invoke(other, nil)
}

// executeCopy copies the context node without its attributes nor its
// children. Namespace nodes of elements are copied.
func executeCopy(ctx *Context, inst *Instruction) error {
	switch n := ctx.Node.(type) {
	case *xml.Document:
		return ctx.executeChildren(ctx.Inst)
	case *xml.Element:
		if err := ctx.Handler.StartElement(n.QName); err != nil {
			return err
		}
		for _, ns := range n.InScope() {
			if err := ctx.Handler.Namespace(ns.Prefix, ns.Uri); err != nil {
				return err
			}
		}
		if err := ctx.useAttributeSets(inst.Sets); err != nil {
			return err
		}
		if err := ctx.executeChildren(ctx.Inst); err != nil {
			return err
		}
		return ctx.Handler.EndElement(n.QName)
	default:
		return copyNode(ctx.Handler, n)
	}
}

func executeCopyOf(ctx *Context, inst *Instruction) error {
	v, err := ctx.eval(inst.Select)
	if err != nil {
		return err
	}
	switch v := v.(type) {
	case xpath.NodeSet:
		for _, n := range v {
			if err := copyNode(ctx.Handler, n); err != nil {
				return err
			}
		}
		return nil
	case *xpath.Fragment:
		return copyNode(ctx.Handler, v.Root)
	default:
		str := xpath.ToString(v)
		if str == "" {
			return nil
		}
		return ctx.Handler.Characters(str)
	}
}

func executeValueOf(ctx *Context, inst *Instruction) error {
	str, err := ctx.evalString(inst.Select)
	if err != nil || str == "" {
		return err
	}
	return ctx.Handler.Characters(str)
}

func executeVariable(ctx *Context, inst *Instruction) error {
	v, err := ctx.evalBinding(ctx.Inst)
	if err != nil {
		return err
	}
	ctx.stack.SetLocal(inst.Slot, v)
	return nil
}

// executeParam evaluates the default value of the param only when the
// caller did not give one.
func executeParam(ctx *Context, inst *Instruction) error {
	if ctx.stack.IsLocalSet(inst.Slot) {
		return nil
	}
	return executeVariable(ctx, inst)
}

func executeMessage(ctx *Context, inst *Instruction) error {
	str, err := ctx.instantiateString(ctx.Inst)
	if err != nil {
		return err
	}
	ctx.report(Message, nil, str)
	if inst.Terminate {
		return fmt.Errorf("%s: %w", str, ErrTerminate)
	}
	return nil
}

func executePI(ctx *Context, inst *Instruction) error {
	name, err := inst.NameAVT.Eval(ctx)
	if err != nil {
		return err
	}
	if !xml.IsName(name) || strings.Contains(name, ":") || strings.EqualFold(name, "xml") {
		ctx.warn("%s: invalid processing instruction name", name)
		return nil
	}
	str, err := ctx.instantiateString(ctx.Inst)
	if err != nil {
		return err
	}
	str = strings.ReplaceAll(str, "?>", "? >")
	return ctx.Handler.ProcessingInstruction(name, str)
}

func executeComment(ctx *Context, inst *Instruction) error {
	str, err := ctx.instantiateString(ctx.Inst)
	if err != nil {
		return err
	}
	for strings.Contains(str, "--") {
		str = strings.ReplaceAll(str, "--", "- -")
	}
	if strings.HasSuffix(str, "-") {
		str += " "
	}
	return ctx.Handler.Comment(str)
}

// resultName computes the name of an element or attribute created by
// xsl:element or xsl:attribute.
func (c *Context) resultName(inst *Instruction, element bool) (xml.QName, error) {
	str, err := inst.NameAVT.Eval(c)
	if err != nil {
		return xml.QName{}, err
	}
	qn, err := xml.ParseName(strings.TrimSpace(str))
	if err != nil || !xml.IsName(qn.QualifiedName()) {
		return qn, fmt.Errorf("%s: invalid name", str)
	}
	if inst.SpaceAVT != nil {
		qn.Uri, err = inst.SpaceAVT.Eval(c)
		if err != nil {
			return qn, err
		}
		if qn.Uri == "" {
			qn.Space = ""
		}
		return qn, nil
	}
	if qn.Space == "" && !element {
		return qn, nil
	}
	for _, ns := range inst.Namespaces {
		if ns.Prefix == qn.Space {
			qn.Uri = ns.Uri
			return qn, nil
		}
	}
	if qn.Space == "xml" {
		qn.Uri = xml.NamespaceXML
		return qn, nil
	}
	if qn.Space != "" {
		return qn, fmt.Errorf("%s: namespace prefix not defined", qn.Space)
	}
	return qn, nil
}

// executeElement creates an element. When its name is not valid, only
// the content is instantiated.
func executeElement(ctx *Context, inst *Instruction) error {
	qn, err := ctx.resultName(inst, true)
	if err != nil {
		ctx.warn("%s", err.Error())
		return ctx.executeChildren(ctx.Inst)
	}
	if err := ctx.Handler.StartElement(qn); err != nil {
		return err
	}
	if qn.Uri != "" {
		if err := ctx.Handler.Namespace(qn.Space, qn.Uri); err != nil {
			return err
		}
	}
	if err := ctx.useAttributeSets(inst.Sets); err != nil {
		return err
	}
	if err := ctx.executeChildren(ctx.Inst); err != nil {
		return err
	}
	return ctx.Handler.EndElement(qn)
}

func executeAttribute(ctx *Context, inst *Instruction) error {
	qn, err := ctx.resultName(inst, false)
	if err == nil && qn.QualifiedName() == "xmlns" {
		err = fmt.Errorf("xmlns can not be used as attribute name")
	}
	if err != nil {
		ctx.warn("%s", err.Error())
		return nil
	}
	if qn.Uri != "" && qn.Space == "" {
		qn.Space = "ns0"
	}
	str, err := ctx.instantiateString(ctx.Inst)
	if err != nil {
		return err
	}
	return ctx.Handler.Attribute(qn, str)
}

// executeExtension delegates to the handler registered for the namespace
// of the instruction. Failures are fatal unless the instruction has
// fallbacks, in which case they are reported as warnings and the fallbacks
// run.
func executeExtension(ctx *Context, inst *Instruction) error {
	fallbacks := ctx.sheet.nodes.childrenOf(ctx.Inst, KindFallback)
	h, ok := ctx.sheet.elements[inst.Name.Uri]
	if !ok {
		err := fmt.Errorf("%s: no handler: %w", inst.Name.QualifiedName(), ErrExtension)
		if len(fallbacks) == 0 {
			return ctx.fail(ExtensionError, err)
		}
	} else if err := h.Execute(ctx, inst); err != nil {
		if errors.Is(err, ErrTerminate) {
			return err
		}
		if len(fallbacks) == 0 {
			return ctx.fail(ExtensionError, fmt.Errorf("%s: %w: %w", inst.Name.QualifiedName(), ErrExtension, err))
		}
		ctx.report(Warning, err, "%s: %s", inst.Name.QualifiedName(), err.Error())
	} else {
		return nil
	}
	for _, fb := range fallbacks {
		if err := ctx.executeChildren(fb); err != nil {
			return err
		}
	}
	return nil
}

func executeFunctionResult(ctx *Context, inst *Instruction) error {
	if ctx.result == nil {
		return fmt.Errorf("result outside of function: %w", ErrInvalid)
	}
	if ctx.result.set {
		return ErrDuplicateResult
	}
	v, err := ctx.evalBinding(ctx.Inst)
	if err != nil {
		return err
	}
	ctx.result.value = v
	ctx.result.set = true
	return nil
}

// useAttributeSets adds the attributes of the named sets to the current
// element. Declarations of lower precedence are applied first so the ones
// of higher precedence win.
func (c *Context) useAttributeSets(names []xml.QName) error {
	if len(names) == 0 {
		return nil
	}
	if err := c.sheet.checkAttributeSets(names, nil); err != nil {
		return err
	}
	return c.applyAttributeSets(names)
}

func (c *Context) applyAttributeSets(names []xml.QName) error {
	for _, name := range names {
		sets := c.sheet.attrSets[name.ExpandedName()]
		for i := len(sets) - 1; i >= 0; i-- {
			set := sets[i]
			if err := c.applyAttributeSets(set.Sets); err != nil {
				return err
			}
			if err := c.applyAttributeSet(set); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) applyAttributeSet(set *attributeSet) error {
	saved := c.stack.Frame()
	c.stack.Link(set.FrameSize)
	defer c.stack.Unlink(saved)

	sub := c.at(set.Node)
	sub.Template = nil
	return sub.executeChildren(set.Node)
}

// checkAttributeSets reports an attribute set using itself, directly or
// not.
func (s *Stylesheet) checkAttributeSets(names []xml.QName, path []string) error {
	for _, name := range names {
		key := name.ExpandedName()
		for _, p := range path {
			if p == key {
				return fmt.Errorf("%s: %w", name.QualifiedName(), ErrAttributeSetRecursion)
			}
		}
		sets, ok := s.attrSets[key]
		if !ok {
			return fmt.Errorf("%s: attribute set %w", name.QualifiedName(), ErrUndefined)
		}
		for _, set := range sets {
			if err := s.checkAttributeSets(set.Sets, append(path, key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// alias rewrites the namespace of a literal name according to the
// namespace aliases of the stylesheet.
func (s *Stylesheet) alias(name xml.QName) xml.QName {
	if name.Uri == "" {
		return name
	}
	if ns, ok := s.aliases[name.Uri]; ok {
		name.Uri = ns.Uri
		name.Space = ns.Prefix
	}
	return name
}

func (s *Stylesheet) aliasNS(ns xml.NS) xml.NS {
	if alias, ok := s.aliases[ns.Uri]; ok {
		ns.Uri = alias.Uri
		if ns.Prefix != "" {
			ns.Prefix = alias.Prefix
		}
	}
	return ns
}
