package xslt

import (
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Body is an instruction owning a stack frame: a template, a function, a
// global variable or an attribute set.
type Body struct {
	Node       int
	FrameSize  int
	ParamCount int

	params []param
}

type param struct {
	name xml.QName
	slot int
}

// ParamSlot returns the slot of the parameter declared with name.
func (b *Body) ParamSlot(name xml.QName) (int, bool) {
	for _, p := range b.params {
		if p.name.Equal(name) {
			return p.slot, true
		}
	}
	return 0, false
}

// ParamSlots returns the slots of the declared parameters in declaration
// order.
func (b *Body) ParamSlots() []int {
	list := make([]int, 0, len(b.params))
	for _, p := range b.params {
		list = append(list, p.slot)
	}
	return list
}

func (b *Body) resetParams() {
	b.params = b.params[:0]
}

func (b *Body) declare(name xml.QName, slot int) {
	b.params = append(b.params, param{name: name, slot: slot})
}

// Template is a template rule. Its frame size and parameter count do not
// change once the stylesheet is composed.
type Template struct {
	Body

	Name        xml.QName
	Match       []*xpath.Pattern
	Mode        xml.QName
	Priority    float64
	HasPriority bool

	Module     int
	Precedence int
	// lowest precedence of the stylesheets imported by the owner of the
	// template
	ImportLo int
	Order    int
}

func (t *Template) String() string {
	switch {
	case !t.Name.Zero():
		return t.Name.QualifiedName()
	case len(t.Match) > 0:
		var str string
		for i, m := range t.Match {
			if i > 0 {
				str += " | "
			}
			str += m.String()
		}
		return str
	default:
		return "template"
	}
}

// Function is an EXSLT func:function.
type Function struct {
	Body

	Name       xml.QName
	Precedence int
}

// Global is a top level variable or param.
type Global struct {
	Body

	Name       xml.QName
	Slot       int
	Param      bool
	Precedence int
}

type attributeSet struct {
	Body

	Name       xml.QName
	Sets       []xml.QName
	Precedence int
}

type keyDecl struct {
	Name  xml.QName
	Match []*xpath.Pattern
	Use   xpath.Expr
	Node  int
}

// Module is one physical stylesheet.
type Module struct {
	URI  string
	Root int

	// module index of the including stylesheet, none for imported or main
	// stylesheets
	Parent   int
	Imports  []int
	Includes []int

	Precedence int
	ImportLo   int

	Excluded  []string
	Extension []string
}
