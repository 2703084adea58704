package xpath

import (
	"fmt"
	"strconv"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
)

type SyntaxError struct {
	Expr  string
	Cause string
	Position
}

func syntaxError(expr, cause string, pos Position) error {
	return SyntaxError{
		Expr:     expr,
		Cause:    cause,
		Position: pos,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s (%d:%d): %s", e.Expr, e.Line, e.Column, e.Cause)
}

type Compiler struct {
	scan *Scanner
	curr Token
	peek Token
	expr string

	namespaces environ.Environ[string]

	infix  map[rune]func(Expr) (Expr, error)
	prefix map[rune]func() (Expr, error)
}

// NewCompiler prepares the compilation of expr. Prefixed names found in the
// expression are resolved against namespaces, which can be nil when the
// expression uses no prefix.
func NewCompiler(expr string, namespaces environ.Environ[string]) *Compiler {
	if namespaces == nil {
		namespaces = environ.Empty[string]()
	}
	cp := Compiler{
		scan:       Scan(expr),
		expr:       expr,
		namespaces: namespaces,
	}
	cp.infix = map[rune]func(Expr) (Expr, error){
		opOr:    cp.compileBinary,
		opAnd:   cp.compileBinary,
		opEq:    cp.compileBinary,
		opNe:    cp.compileBinary,
		opLt:    cp.compileBinary,
		opLe:    cp.compileBinary,
		opGt:    cp.compileBinary,
		opGe:    cp.compileBinary,
		opAdd:   cp.compileBinary,
		opSub:   cp.compileBinary,
		opMul:   cp.compileBinary,
		opDiv:   cp.compileBinary,
		opMod:   cp.compileBinary,
		opUnion: cp.compileUnion,
	}
	cp.prefix = map[rune]func() (Expr, error){
		opSub:      cp.compileNegate,
		currLevel:  cp.compileRoot,
		anyLevel:   cp.compileRoot,
		Name:       cp.compileName,
		wildcard:   cp.compileRelative,
		nsWildcard: cp.compileRelative,
		axisName:   cp.compileRelative,
		attrNode:   cp.compileRelative,
		currNode:   cp.compileRelative,
		parentNode: cp.compileRelative,
		variable:   cp.compileFilter,
		Quote:      cp.compileFilter,
		Digit:      cp.compileFilter,
		begGrp:     cp.compileFilter,
	}
	cp.next()
	cp.next()
	return &cp
}

func CompileString(expr string) (Expr, error) {
	return Compile(expr, nil)
}

func Compile(expr string, namespaces environ.Environ[string]) (Expr, error) {
	return NewCompiler(expr, namespaces).Compile()
}

func (c *Compiler) Compile() (Expr, error) {
	if c.done() {
		return nil, c.createError("empty expression")
	}
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, c.createError(fmt.Sprintf("unexpected token %s", c.curr))
	}
	return expr, nil
}

func (c *Compiler) compileExpr(pow int) (Expr, error) {
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.createError(fmt.Sprintf("unexpected token %s", c.curr))
	}
	left, err := fn()
	if err != nil {
		return nil, err
	}
	for !(c.done() || c.endExpr()) && pow < c.power() {
		fn, ok := c.infix[c.curr.Type]
		if !ok {
			return nil, c.createError(fmt.Sprintf("unexpected operator %s", c.curr))
		}
		left, err = fn(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *Compiler) compileBinary(left Expr) (Expr, error) {
	var (
		op  = c.curr.Type
		pow = bindings[op]
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	b := binary{
		op:    op,
		left:  left,
		right: right,
	}
	return b, nil
}

func (c *Compiler) compileUnion(left Expr) (Expr, error) {
	c.next()
	right, err := c.compileExpr(powUnion)
	if err != nil {
		return nil, err
	}
	u := union{
		left:  left,
		right: right,
	}
	return u, nil
}

func (c *Compiler) compileNegate() (Expr, error) {
	c.next()
	expr, err := c.compileExpr(powPrefix)
	if err != nil {
		return nil, err
	}
	return negate{expr: expr}, nil
}

func (c *Compiler) compileName() (Expr, error) {
	if c.peek.Type == begGrp && !isKindTest(c.curr.Literal) {
		return c.compileFilter()
	}
	return c.compileRelative()
}

func (c *Compiler) compileRoot() (Expr, error) {
	p := path{
		root: true,
	}
	if c.is(anyLevel) {
		c.next()
		p.steps = append(p.steps, descendantStep())
		steps, err := c.compileSteps()
		if err != nil {
			return nil, err
		}
		p.steps = append(p.steps, steps...)
		return p, nil
	}
	c.next()
	if c.startStep() {
		steps, err := c.compileSteps()
		if err != nil {
			return nil, err
		}
		p.steps = steps
	}
	return p, nil
}

func (c *Compiler) compileRelative() (Expr, error) {
	steps, err := c.compileSteps()
	if err != nil {
		return nil, err
	}
	return path{steps: steps}, nil
}

func (c *Compiler) compileSteps() ([]step, error) {
	var steps []step
	for {
		s, err := c.compileStep()
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
		switch {
		case c.is(currLevel):
			c.next()
		case c.is(anyLevel):
			c.next()
			steps = append(steps, descendantStep())
		default:
			return steps, nil
		}
	}
}

func (c *Compiler) compileStep() (step, error) {
	var s step
	switch {
	case c.is(currNode):
		c.next()
		s.axis = AxisSelf
		s.test = kindTest{kind: xml.TypeNode}
		return s, nil
	case c.is(parentNode):
		c.next()
		s.axis = AxisParent
		s.test = kindTest{kind: xml.TypeNode}
		return s, nil
	case c.is(attrNode):
		c.next()
		s.axis = AxisAttribute
	case c.is(axisName):
		axis, ok := axisNames[c.curr.Literal]
		if !ok {
			return s, c.createError(fmt.Sprintf("%s: unknown axis", c.curr.Literal))
		}
		c.next()
		s.axis = axis
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

func (c *Compiler) compileNodeTest() (NodeTest, error) {
	switch c.curr.Type {
	case wildcard:
		c.next()
		return wildcardTest{}, nil
	case nsWildcard:
		uri, err := c.namespaces.Resolve(c.curr.Literal)
		if err != nil {
			return nil, c.createError(fmt.Sprintf("%s: namespace prefix not defined", c.curr.Literal))
		}
		c.next()
		return nameTest{QName: xml.ExpandedName("*", "", uri), any: true}, nil
	case Name:
		if c.peek.Type == begGrp && isKindTest(c.curr.Literal) {
			return c.compileKindTest()
		}
		qn, err := c.resolveName(c.curr.Literal)
		if err != nil {
			return nil, err
		}
		c.next()
		return nameTest{QName: qn}, nil
	default:
		return nil, c.createError(fmt.Sprintf("node test expected, got %s", c.curr))
	}
}

func (c *Compiler) compileKindTest() (NodeTest, error) {
	var test kindTest
	switch c.curr.Literal {
	case "node":
		test.kind = xml.TypeNode
	case "text":
		test.kind = xml.TypeText
	case "comment":
		test.kind = xml.TypeComment
	case "processing-instruction":
		test.kind = xml.TypeInstruction
	}
	c.next()
	c.next()
	if test.kind == xml.TypeInstruction && c.is(Quote) {
		test.target = c.curr.Literal
		c.next()
	}
	if !c.is(endGrp) {
		return nil, c.createError("')' expected after node type test")
	}
	c.next()
	return test, nil
}

func (c *Compiler) compilePredicates() ([]Expr, error) {
	var list []Expr
	for c.is(begPred) {
		c.next()
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		if !c.is(endPred) {
			return nil, c.createError("']' expected at end of predicate")
		}
		c.next()
		list = append(list, expr)
	}
	return list, nil
}

func (c *Compiler) compileFilter() (Expr, error) {
	expr, err := c.compilePrimary()
	if err != nil {
		return nil, err
	}
	preds, err := c.compilePredicates()
	if err != nil {
		return nil, err
	}
	if len(preds) > 0 {
		expr = filter{
			expr:  expr,
			preds: preds,
		}
	}
	if !c.is(currLevel) && !c.is(anyLevel) {
		return expr, nil
	}
	p := path{
		base: expr,
	}
	if c.is(anyLevel) {
		p.steps = append(p.steps, descendantStep())
	}
	c.next()
	steps, err := c.compileSteps()
	if err != nil {
		return nil, err
	}
	p.steps = append(p.steps, steps...)
	return p, nil
}

func (c *Compiler) compilePrimary() (Expr, error) {
	switch c.curr.Type {
	case variable:
		qn, err := c.resolveName(c.curr.Literal)
		if err != nil {
			return nil, err
		}
		c.next()
		return &VarRef{Name: qn}, nil
	case Quote:
		defer c.next()
		return Literal{Value: c.curr.Literal}, nil
	case Digit:
		f, err := strconv.ParseFloat(c.curr.Literal, 64)
		if err != nil {
			return nil, c.createError("invalid number")
		}
		c.next()
		return number{value: f}, nil
	case begGrp:
		c.next()
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		if !c.is(endGrp) {
			return nil, c.createError("')' expected")
		}
		c.next()
		return expr, nil
	case Name:
		return c.compileCall()
	default:
		return nil, c.createError(fmt.Sprintf("unexpected token %s", c.curr))
	}
}

func (c *Compiler) compileCall() (Expr, error) {
	qn, err := c.resolveName(c.curr.Literal)
	if err != nil {
		return nil, err
	}
	call := Call{
		Name: qn,
	}
	c.next()
	c.next()
	for !c.done() && !c.is(endGrp) {
		arg, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.createError("argument expected after ','")
			}
		case c.is(endGrp):
		default:
			return nil, c.createError("',' or ')' expected in argument list")
		}
	}
	if !c.is(endGrp) {
		return nil, c.createError("')' expected at end of argument list")
	}
	c.next()
	return &call, nil
}

func (c *Compiler) resolveName(name string) (xml.QName, error) {
	qn, err := xml.ParseName(name)
	if err != nil {
		return qn, c.createError(err.Error())
	}
	if qn.Space == "" {
		return qn, nil
	}
	uri, err := c.namespaces.Resolve(qn.Space)
	if err != nil {
		return qn, c.createError(fmt.Sprintf("%s: namespace prefix not defined", qn.Space))
	}
	qn.Uri = uri
	return qn, nil
}

func (c *Compiler) startStep() bool {
	switch c.curr.Type {
	case Name, wildcard, nsWildcard, axisName, attrNode, currNode, parentNode:
		return true
	default:
		return false
	}
}

func (c *Compiler) endExpr() bool {
	switch c.curr.Type {
	case endGrp, endPred, opSeq:
		return true
	default:
		return false
	}
}

func (c *Compiler) power() int {
	pow, ok := bindings[c.curr.Type]
	if !ok {
		pow = powLowest
	}
	return pow
}

func (c *Compiler) createError(cause string) error {
	return syntaxError(c.expr, cause, c.curr.Position)
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}

func descendantStep() step {
	return step{
		axis: AxisDescendantOrSelf,
		test: kindTest{kind: xml.TypeNode},
	}
}

func isKindTest(name string) bool {
	switch name {
	case "node", "text", "comment", "processing-instruction":
		return true
	default:
		return false
	}
}

const (
	powLowest = iota
	powOr
	powAnd
	powEq
	powCmp
	powAdd
	powMul
	powPrefix
	powUnion
)

var bindings = map[rune]int{
	opOr:    powOr,
	opAnd:   powAnd,
	opEq:    powEq,
	opNe:    powEq,
	opLt:    powCmp,
	opLe:    powCmp,
	opGt:    powCmp,
	opGe:    powCmp,
	opAdd:   powAdd,
	opSub:   powAdd,
	opMul:   powMul,
	opDiv:   powMul,
	opMod:   powMul,
	opUnion: powUnion,
}
