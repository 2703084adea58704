package xslt

import (
	"bufio"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
)

const (
	MethodXML  = "xml"
	MethodHTML = "html"
	MethodText = "text"
)

type Output struct {
	Method        string
	Version       string
	Encoding      string
	Indent        bool
	OmitProlog    bool
	Standalone    string
	DoctypePublic string
	DoctypeSystem string
	MediaType     string
	CDataElements []xml.QName
}

func defaultOutput() *Output {
	return &Output{
		Version:  "1.0",
		Encoding: "UTF-8",
	}
}

var htmlVoids = []string{
	"area", "base", "br", "col", "embed", "hr", "img", "input", "link",
	"meta", "param", "source", "track", "wbr",
}

// Writer is a Handler serializing events as they come. The start tag of an
// element stays pending until its first child so attributes can still be
// added.
type Writer struct {
	out *bufio.Writer
	*Output

	method  string
	pending bool
	started bool
	stack   []openElement
	scopes  []xml.NS
	spaces  []string
	err     error
}

type openElement struct {
	name     xml.QName
	children bool
	text     bool
	scope    int
}

func NewWriter(w io.Writer, out *Output) *Writer {
	if out == nil {
		out = defaultOutput()
	}
	return &Writer{
		out:    bufio.NewWriter(w),
		Output: out,
		method: out.Method,
	}
}

func (w *Writer) write(str string) {
	if w.err != nil {
		return
	}
	_, w.err = w.out.WriteString(str)
}

func (w *Writer) begin(root *xml.QName) {
	if w.started {
		return
	}
	w.started = true
	if w.method == "" {
		w.method = MethodXML
		if root != nil && root.Uri == "" && strings.EqualFold(root.Name, "html") {
			w.method = MethodHTML
		}
	}
	if w.method == MethodXML && !w.OmitProlog {
		w.write(fmt.Sprintf(`<?xml version="%s" encoding="%s"`, w.Version, w.Encoding))
		if w.Standalone != "" {
			w.write(fmt.Sprintf(` standalone="%s"`, w.Standalone))
		}
		w.write("?>")
		if w.Indent {
			w.write("\n")
		}
	}
	if root != nil && w.method != MethodText && (w.DoctypeSystem != "" || w.DoctypePublic != "") {
		w.write("<!DOCTYPE " + root.QualifiedName())
		if w.DoctypePublic != "" {
			w.write(fmt.Sprintf(` PUBLIC "%s"`, w.DoctypePublic))
			if w.DoctypeSystem != "" {
				w.write(fmt.Sprintf(` "%s"`, w.DoctypeSystem))
			}
		} else {
			w.write(fmt.Sprintf(` SYSTEM "%s"`, w.DoctypeSystem))
		}
		w.write(">\n")
	}
	for _, s := range w.spaces {
		w.text(s)
	}
	w.spaces = nil
}

func (w *Writer) flushPending() {
	if !w.pending {
		return
	}
	w.pending = false
	w.write(">")
}

func (w *Writer) indent(closing bool) {
	if !w.Indent || w.method == MethodText {
		return
	}
	depth := len(w.stack)
	if closing {
		depth--
	}
	w.write("\n" + strings.Repeat("  ", depth))
}

func (w *Writer) StartElement(name xml.QName) error {
	w.begin(&name)
	w.flushPending()
	if n := len(w.stack); n > 0 {
		parent := &w.stack[n-1]
		if !parent.text {
			w.indent(false)
		}
		parent.children = true
	}
	if w.method == MethodText {
		w.stack = append(w.stack, openElement{name: name})
		return w.err
	}
	w.write("<" + name.QualifiedName())
	w.stack = append(w.stack, openElement{name: name})
	w.pending = true
	if name.Uri != "" {
		w.declare(name.Space, name.Uri)
	}
	return w.err
}

// declare writes a namespace declaration when the prefix is not already
// bound to uri by an open element.
func (w *Writer) declare(prefix, uri string) {
	if !w.pending {
		return
	}
	if w.lookup(prefix) == uri {
		return
	}
	w.stack[len(w.stack)-1].scope++
	w.scopes = append(w.scopes, xml.NS{Prefix: prefix, Uri: uri})
	if prefix == "" {
		w.write(fmt.Sprintf(` xmlns="%s"`, xml.EscapeAttr(uri)))
	} else {
		w.write(fmt.Sprintf(` xmlns:%s="%s"`, prefix, xml.EscapeAttr(uri)))
	}
}

func (w *Writer) lookup(prefix string) string {
	for i := len(w.scopes) - 1; i >= 0; i-- {
		if w.scopes[i].Prefix == prefix {
			return w.scopes[i].Uri
		}
	}
	if prefix == "xml" {
		return xml.NamespaceXML
	}
	return ""
}

func (w *Writer) Attribute(name xml.QName, value string) error {
	if !w.pending || w.method == MethodText {
		return nil
	}
	if name.Uri != "" {
		w.declare(name.Space, name.Uri)
	}
	if w.method == MethodHTML {
		w.write(fmt.Sprintf(` %s="%s"`, name.QualifiedName(), strings.ReplaceAll(xml.EscapeAttr(value), "&lt;", "<")))
		return w.err
	}
	w.write(fmt.Sprintf(` %s="%s"`, name.QualifiedName(), xml.EscapeAttr(value)))
	return w.err
}

func (w *Writer) Namespace(prefix, uri string) error {
	if w.method == MethodText || w.method == MethodHTML {
		return nil
	}
	w.declare(prefix, uri)
	return w.err
}

func (w *Writer) EndElement(name xml.QName) error {
	n := len(w.stack)
	if n == 0 {
		return fmt.Errorf("%s: no element to close", name.QualifiedName())
	}
	el := w.stack[n-1]
	defer func() {
		w.stack = w.stack[:n-1]
		w.scopes = w.scopes[:len(w.scopes)-el.scope]
	}()
	if w.method == MethodText {
		return w.err
	}
	if w.pending {
		w.pending = false
		if w.method == MethodHTML {
			w.write(">")
			if !slices.Contains(htmlVoids, strings.ToLower(name.Name)) {
				w.write("</" + name.QualifiedName() + ">")
			}
			return w.err
		}
		w.write("/>")
		return w.err
	}
	if el.children && !el.text {
		w.indent(true)
	}
	w.write("</" + name.QualifiedName() + ">")
	return w.err
}

func (w *Writer) Characters(str string) error {
	if str == "" {
		return nil
	}
	if !w.started {
		if strings.TrimSpace(str) == "" && w.method == "" {
			w.spaces = append(w.spaces, str)
			return nil
		}
		w.begin(nil)
	}
	w.flushPending()
	w.text(str)
	return w.err
}

func (w *Writer) text(str string) {
	var parent *openElement
	if n := len(w.stack); n > 0 {
		parent = &w.stack[n-1]
		parent.text = true
	}
	switch {
	case w.method == MethodText:
		w.write(str)
	case parent != nil && w.method == MethodHTML && isRawElement(parent.name):
		w.write(str)
	case parent != nil && w.method == MethodXML && slices.ContainsFunc(w.CDataElements, parent.name.Equal):
		str = strings.ReplaceAll(str, "]]>", "]]]]><![CDATA[>")
		w.write("<![CDATA[" + str + "]]>")
	default:
		w.write(xml.EscapeText(str))
	}
}

func isRawElement(name xml.QName) bool {
	return name.Uri == "" && (strings.EqualFold(name.Name, "script") || strings.EqualFold(name.Name, "style"))
}

func (w *Writer) Comment(str string) error {
	if w.method == MethodText {
		return nil
	}
	w.begin(nil)
	w.flushPending()
	w.markChild()
	w.write("<!--" + str + "-->")
	return w.err
}

func (w *Writer) ProcessingInstruction(target, data string) error {
	if w.method == MethodText {
		return nil
	}
	w.begin(nil)
	w.flushPending()
	w.markChild()
	w.write("<?" + target)
	if data != "" {
		w.write(" " + data)
	}
	if w.method == MethodHTML {
		w.write(">")
	} else {
		w.write("?>")
	}
	return w.err
}

func (w *Writer) markChild() {
	if n := len(w.stack); n > 0 {
		if !w.stack[n-1].text {
			w.indent(false)
		}
		w.stack[n-1].children = true
	}
}

func (w *Writer) Flush() error {
	if !w.started {
		w.begin(nil)
	}
	w.flushPending()
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}
