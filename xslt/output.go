package xslt

import (
	"github.com/midbel/angle/xml"
)

// Handler receives the events of a result tree.
type Handler interface {
	StartElement(xml.QName) error
	Attribute(xml.QName, string) error
	Namespace(prefix, uri string) error
	EndElement(xml.QName) error
	Characters(string) error
	Comment(string) error
	ProcessingInstruction(target, data string) error
	Flush() error
}

// Builder is a Handler building a document in memory. It is used for the
// result tree and for result tree fragments.
type Builder struct {
	doc   *xml.Document
	stack []*xml.Element
	// an attribute is only accepted while the current element has no child
	closed bool
}

func NewBuilder() *Builder {
	return &Builder{
		doc: xml.NewDocument(),
	}
}

func (b *Builder) Document() *xml.Document {
	return b.doc
}

func (b *Builder) current() xml.Container {
	if n := len(b.stack); n > 0 {
		return b.stack[n-1]
	}
	return b.doc
}

func (b *Builder) StartElement(name xml.QName) error {
	el := xml.NewElement(name)
	b.current().Append(el)
	b.stack = append(b.stack, el)
	b.closed = false
	return nil
}

func (b *Builder) Attribute(name xml.QName, value string) error {
	n := len(b.stack)
	if n == 0 || b.closed {
		return nil
	}
	el := b.stack[n-1]
	if name.Uri != "" {
		el.Declare(name.Space, name.Uri)
	}
	el.SetAttribute(xml.NewAttribute(name, value))
	return nil
}

func (b *Builder) Namespace(prefix, uri string) error {
	n := len(b.stack)
	if n == 0 || b.closed {
		return nil
	}
	el := b.stack[n-1]
	if got, ok := el.Lookup(prefix); ok && got == uri {
		return nil
	}
	el.Declare(prefix, uri)
	return nil
}

func (b *Builder) EndElement(_ xml.QName) error {
	if n := len(b.stack); n > 0 {
		el := b.stack[n-1]
		if el.Uri != "" {
			if got, ok := el.Lookup(el.Space); !ok || got != el.Uri {
				el.Declare(el.Space, el.Uri)
			}
		}
		b.stack = b.stack[:n-1]
	}
	b.closed = true
	return nil
}

func (b *Builder) Characters(str string) error {
	if str == "" {
		return nil
	}
	b.current().Append(xml.NewText(str))
	b.closed = true
	return nil
}

func (b *Builder) Comment(str string) error {
	b.current().Append(xml.NewComment(str))
	b.closed = true
	return nil
}

func (b *Builder) ProcessingInstruction(target, data string) error {
	b.current().Append(xml.NewInstruction(target, data))
	b.closed = true
	return nil
}

func (b *Builder) Flush() error {
	return nil
}

type discardHandler struct{}

func (discardHandler) StartElement(_ xml.QName) error          { return nil }
func (discardHandler) Attribute(_ xml.QName, _ string) error   { return nil }
func (discardHandler) Namespace(_, _ string) error             { return nil }
func (discardHandler) EndElement(_ xml.QName) error            { return nil }
func (discardHandler) Characters(_ string) error               { return nil }
func (discardHandler) Comment(_ string) error                  { return nil }
func (discardHandler) ProcessingInstruction(_, _ string) error { return nil }
func (discardHandler) Flush() error                            { return nil }

// copyNode sends a deep copy of node to h.
func copyNode(h Handler, node xml.Node) error {
	switch n := node.(type) {
	case *xml.Document:
		for _, c := range n.Nodes {
			if err := copyNode(h, c); err != nil {
				return err
			}
		}
		return nil
	case *xml.Element:
		if err := h.StartElement(n.QName); err != nil {
			return err
		}
		for _, ns := range n.InScope() {
			if err := h.Namespace(ns.Prefix, ns.Uri); err != nil {
				return err
			}
		}
		for _, a := range n.Attrs {
			if err := h.Attribute(a.QName, a.Datum); err != nil {
				return err
			}
		}
		for _, c := range n.Nodes {
			if err := copyNode(h, c); err != nil {
				return err
			}
		}
		return h.EndElement(n.QName)
	case *xml.Attribute:
		return h.Attribute(n.QName, n.Datum)
	case *xml.Namespace:
		return h.Namespace(n.Prefix, n.Uri)
	case *xml.Text:
		return h.Characters(n.Content)
	case *xml.Comment:
		return h.Comment(n.Content)
	case *xml.Instruction:
		return h.ProcessingInstruction(n.Target, n.Content)
	default:
		return nil
	}
}
