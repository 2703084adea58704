package xslt

import (
	"iter"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type Kind int8

const (
	KindEmpty Kind = iota
	KindStylesheet
	KindLiteralText
	KindLiteralElement
	KindIf
	KindChoose
	KindWhen
	KindOtherwise
	KindForEach
	KindSort
	KindCallTemplate
	KindApplyTemplates
	KindApplyImports
	KindCopy
	KindCopyOf
	KindValueOf
	KindVariable
	KindParam
	KindWithParam
	KindMessage
	KindProcessingInstruction
	KindComment
	KindElement
	KindAttribute
	KindText
	KindNumber
	KindExtensionCall
	KindFunction
	KindFunctionResult
	KindAttributeSet
	KindFallback
	KindTemplate
	KindKey
	KindDecimalFormat
	KindOutput
	KindNamespaceAlias
	KindStripSpace
	KindPreserveSpace
	KindImport
	KindInclude
)

var kindNames = map[Kind]string{
	KindEmpty:                 "empty",
	KindStylesheet:            "stylesheet",
	KindLiteralText:           "#text",
	KindLiteralElement:        "#element",
	KindIf:                    "if",
	KindChoose:                "choose",
	KindWhen:                  "when",
	KindOtherwise:             "otherwise",
	KindForEach:               "for-each",
	KindSort:                  "sort",
	KindCallTemplate:          "call-template",
	KindApplyTemplates:        "apply-templates",
	KindApplyImports:          "apply-imports",
	KindCopy:                  "copy",
	KindCopyOf:                "copy-of",
	KindValueOf:               "value-of",
	KindVariable:              "variable",
	KindParam:                 "param",
	KindWithParam:             "with-param",
	KindMessage:               "message",
	KindProcessingInstruction: "processing-instruction",
	KindComment:               "comment",
	KindElement:               "element",
	KindAttribute:             "attribute",
	KindText:                  "text",
	KindNumber:                "number",
	KindExtensionCall:         "#extension",
	KindFunction:              "function",
	KindFunctionResult:        "result",
	KindAttributeSet:          "attribute-set",
	KindFallback:              "fallback",
	KindTemplate:              "template",
	KindKey:                   "key",
	KindDecimalFormat:         "decimal-format",
	KindOutput:                "output",
	KindNamespaceAlias:        "namespace-alias",
	KindStripSpace:            "strip-space",
	KindPreserveSpace:         "preserve-space",
	KindImport:                "import",
	KindInclude:               "include",
}

func (k Kind) String() string {
	if str, ok := kindNames[k]; ok {
		return str
	}
	return "unknown"
}

// xslKinds maps the local names of the XSLT namespace to instruction kinds.
var xslKinds = map[string]Kind{
	"stylesheet":             KindStylesheet,
	"transform":              KindStylesheet,
	"if":                     KindIf,
	"choose":                 KindChoose,
	"when":                   KindWhen,
	"otherwise":              KindOtherwise,
	"for-each":               KindForEach,
	"sort":                   KindSort,
	"call-template":          KindCallTemplate,
	"apply-templates":        KindApplyTemplates,
	"apply-imports":          KindApplyImports,
	"copy":                   KindCopy,
	"copy-of":                KindCopyOf,
	"value-of":               KindValueOf,
	"variable":               KindVariable,
	"param":                  KindParam,
	"with-param":             KindWithParam,
	"message":                KindMessage,
	"processing-instruction": KindProcessingInstruction,
	"comment":                KindComment,
	"element":                KindElement,
	"attribute":              KindAttribute,
	"text":                   KindText,
	"number":                 KindNumber,
	"attribute-set":          KindAttributeSet,
	"fallback":               KindFallback,
	"template":               KindTemplate,
	"key":                    KindKey,
	"decimal-format":         KindDecimalFormat,
	"output":                 KindOutput,
	"namespace-alias":        KindNamespaceAlias,
	"strip-space":            KindStripSpace,
	"preserve-space":         KindPreserveSpace,
	"import":                 KindImport,
	"include":                KindInclude,
}

const none = -1

type attributeTemplate struct {
	Name  xml.QName
	Value *avt
}

// Instruction is one node of the compiled stylesheet. Instructions are
// stored in an arena owned by the Stylesheet and refer to each other by
// index.
type Instruction struct {
	Kind Kind
	// element name for literal and extension elements, value of the name
	// attribute for declarations, variables and templates
	Name xml.QName

	Parent      int
	FirstChild  int
	NextSibling int
	Order       int
	Module      int

	Select xpath.Expr
	Test   xpath.Expr
	Use    xpath.Expr
	Match  []*xpath.Pattern
	Count  []*xpath.Pattern
	From   []*xpath.Pattern

	Mode        xml.QName
	Priority    float64
	HasPriority bool
	Terminate   bool

	Text       string
	Attrs      []attributeTemplate
	NameAVT    *avt
	SpaceAVT   *avt
	Sets       []xml.QName
	Options    map[string]string
	Props      map[string]*avt
	Namespaces []xml.NS
	// namespaces of literal elements that are copied to the result
	Copied []xml.NS

	// set by compose
	Slot     int
	Target   *Template
	Template *Template
	Function *Function
	Global   *Global
}

func (i *Instruction) QualifiedName() string {
	switch i.Kind {
	case KindLiteralElement, KindExtensionCall:
		return i.Name.QualifiedName()
	default:
		return xsltNamespacePrefix + ":" + i.Kind.String()
	}
}

func (i *Instruction) option(name string) (string, bool) {
	v, ok := i.Options[name]
	return v, ok
}

// exprs returns every expression owned by the instruction itself, excluding
// its children.
func (i *Instruction) exprs() []xpath.Expr {
	var list []xpath.Expr
	for _, e := range []xpath.Expr{i.Select, i.Test, i.Use} {
		if e != nil {
			list = append(list, e)
		}
	}
	for _, set := range [][]*xpath.Pattern{i.Match, i.Count, i.From} {
		for _, p := range set {
			list = append(list, p.Exprs()...)
		}
	}
	for _, a := range i.Attrs {
		list = append(list, a.Value.Exprs()...)
	}
	for _, a := range []*avt{i.NameAVT, i.SpaceAVT} {
		list = append(list, a.Exprs()...)
	}
	for _, a := range i.Props {
		list = append(list, a.Exprs()...)
	}
	return list
}

func newInstruction(kind Kind) Instruction {
	return Instruction{
		Kind:        kind,
		Parent:      none,
		FirstChild:  none,
		NextSibling: none,
		Slot:        none,
	}
}

// arena holds the instructions of every module of a stylesheet.
type arena []Instruction

func (a *arena) add(inst Instruction) int {
	ix := len(*a)
	inst.Order = ix
	*a = append(*a, inst)
	return ix
}

// appendChild links child as the last child of parent.
func (a arena) appendChild(parent, child int) {
	a[child].Parent = parent
	a[child].NextSibling = none
	if a[parent].FirstChild == none {
		a[parent].FirstChild = child
		return
	}
	last := a[parent].FirstChild
	for a[last].NextSibling != none {
		last = a[last].NextSibling
	}
	a[last].NextSibling = child
}

func (a arena) children(ix int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for c := a[ix].FirstChild; c != none; c = a[c].NextSibling {
			if !yield(c) {
				return
			}
		}
	}
}

func (a arena) childrenOf(ix int, kind Kind) []int {
	var list []int
	for c := range a.children(ix) {
		if a[c].Kind == kind {
			list = append(list, c)
		}
	}
	return list
}

func (a arena) hasChild(ix int, kind Kind) bool {
	for c := range a.children(ix) {
		if a[c].Kind == kind {
			return true
		}
	}
	return false
}
