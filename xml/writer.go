package xml

import (
	"bufio"
	"io"
	"strings"
)

type WriterOptions uint64

const (
	OptionCompact WriterOptions = 1 << iota
	OptionNoComment
	OptionNoProlog
)

func (w WriterOptions) Compact() bool {
	return w&OptionCompact > 0
}

func (w WriterOptions) NoComment() bool {
	return w&OptionNoComment > 0
}

func (w WriterOptions) NoProlog() bool {
	return w&OptionNoProlog > 0
}

type Writer struct {
	writer *bufio.Writer

	Indent string
	WriterOptions
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriter(w),
		Indent: "  ",
	}
}

// WriteNode serializes node without prolog and without indentation.
func WriteNode(node Node) string {
	var (
		str strings.Builder
		ws  = NewWriter(&str)
	)
	ws.WriterOptions = OptionCompact | OptionNoProlog
	ws.Write(node)
	return str.String()
}

func (w *Writer) Write(node Node) error {
	if _, ok := node.(*Document); ok && !w.NoProlog() {
		w.writer.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		if !w.Compact() {
			w.writer.WriteString("\n")
		}
	}
	if err := w.writeNode(node, 0); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *Writer) writeNode(node Node, depth int) error {
	switch n := node.(type) {
	case *Document:
		for i, c := range n.Nodes {
			if i > 0 && !w.Compact() {
				w.writer.WriteString("\n")
			}
			if err := w.writeNode(c, depth); err != nil {
				return err
			}
		}
	case *Element:
		return w.writeElement(n, depth)
	case *Text:
		if n.CData {
			w.writer.WriteString("<![CDATA[")
			w.writer.WriteString(n.Content)
			w.writer.WriteString("]]>")
			break
		}
		w.writer.WriteString(EscapeText(n.Content))
	case *Comment:
		if w.NoComment() {
			break
		}
		w.writer.WriteString("<!--")
		w.writer.WriteString(n.Content)
		w.writer.WriteString("-->")
	case *Instruction:
		w.writer.WriteString("<?")
		w.writer.WriteString(n.Target)
		if n.Content != "" {
			w.writer.WriteString(" ")
			w.writer.WriteString(n.Content)
		}
		w.writer.WriteString("?>")
	case *Attribute:
		w.writer.WriteString(EscapeText(n.Datum))
	case *Namespace:
		w.writer.WriteString(n.Uri)
	}
	return nil
}

func (w *Writer) writeElement(el *Element, depth int) error {
	w.writer.WriteString("<")
	w.writer.WriteString(el.QualifiedName())
	for _, d := range el.Declarations {
		w.writer.WriteString(" ")
		if d.Prefix == "" {
			w.writer.WriteString(AttrXmlNS)
		} else {
			w.writer.WriteString(AttrXmlNS + ":" + d.Prefix)
		}
		w.writer.WriteString(`="`)
		w.writer.WriteString(EscapeAttr(d.Uri))
		w.writer.WriteString(`"`)
	}
	for _, a := range el.Attrs {
		w.writer.WriteString(" ")
		w.writer.WriteString(a.QualifiedName())
		w.writer.WriteString(`="`)
		w.writer.WriteString(EscapeAttr(a.Datum))
		w.writer.WriteString(`"`)
	}
	if len(el.Nodes) == 0 {
		w.writer.WriteString("/>")
		return nil
	}
	w.writer.WriteString(">")
	indent := !w.Compact() && !hasText(el.Nodes)
	for _, c := range el.Nodes {
		if indent {
			w.writer.WriteString("\n")
			w.writer.WriteString(strings.Repeat(w.Indent, depth+1))
		}
		if err := w.writeNode(c, depth+1); err != nil {
			return err
		}
	}
	if indent {
		w.writer.WriteString("\n")
		w.writer.WriteString(strings.Repeat(w.Indent, depth))
	}
	w.writer.WriteString("</")
	w.writer.WriteString(el.QualifiedName())
	w.writer.WriteString(">")
	return nil
}

func hasText(nodes []Node) bool {
	for _, n := range nodes {
		if n.Type() == TypeText {
			return true
		}
	}
	return false
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "\n", "&#10;", "\t", "&#9;", "\r", "&#13;")
)

func EscapeText(str string) string {
	return textEscaper.Replace(str)
}

func EscapeAttr(str string) string {
	return attrEscaper.Replace(str)
}
