package xslt

import (
	"fmt"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	ExsltFunctions = "http://exslt.org/functions"
	ExsltCommon    = "http://exslt.org/common"
)

// ElementHandler executes the extension elements of one namespace.
type ElementHandler interface {
	Execute(*Context, *Instruction) error
}

type ElementFunc func(*Context, *Instruction) error

func (f ElementFunc) Execute(ctx *Context, inst *Instruction) error {
	return f(ctx, inst)
}

var extensionFunctions = map[string]xpath.Func{
	xml.ExpandedName("node-set", "", ExsltCommon).ExpandedName():    callNodeSet,
	xml.ExpandedName("object-type", "", ExsltCommon).ExpandedName(): callObjectType,
}

// RegisterElement makes h the handler of every extension element in the
// namespace uri.
func (s *Stylesheet) RegisterElement(uri string, h ElementHandler) {
	s.elements[uri] = h
}

// RegisterFunction makes fn callable from expressions as {uri}name.
func (s *Stylesheet) RegisterFunction(uri, name string, fn xpath.Func) {
	qn := xml.ExpandedName(name, "", uri)
	s.funcs[qn.ExpandedName()] = fn
}

func (s *Stylesheet) elementAvailable(qn xml.QName) bool {
	switch qn.Uri {
	case xsltNamespaceUri:
		_, ok := xslKinds[qn.Name]
		return ok
	case ExsltFunctions:
		return qn.Name == "result" || qn.Name == "function"
	default:
		_, ok := s.elements[qn.Uri]
		return ok
	}
}

func (s *Stylesheet) functionAvailable(qn xml.QName) bool {
	if qn.Uri == "" {
		_, ok := xsltFunctions[qn.Name]
		return ok || xpath.IsBuiltin(qn.Name)
	}
	key := qn.ExpandedName()
	if _, ok := s.functions[key]; ok {
		return true
	}
	if _, ok := s.funcs[key]; ok {
		return true
	}
	_, ok := extensionFunctions[key]
	return ok
}

// callNodeSet converts a result tree fragment to a node-set holding its
// root.
func callNodeSet(_ xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("node-set: %w", xpath.ErrArgument)
	}
	switch v := args[0].(type) {
	case *xpath.Fragment:
		return xpath.NodeSet{v.Root}, nil
	case xpath.NodeSet:
		return v, nil
	default:
		doc := xml.NewDocument()
		doc.Append(xml.NewText(xpath.ToString(v)))
		return xpath.NodeSet{doc.Nodes[0]}, nil
	}
}

func callObjectType(_ xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("object-type: %w", xpath.ErrArgument)
	}
	return xpath.String(args[0].Type().String()), nil
}
