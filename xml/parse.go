package xml

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/midbel/angle/environ"
)

const MaxDepth = 512

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

const AttrXmlNS = "xmlns"

type Position struct {
	Line   int
	Column int
}

type ParseError struct {
	Position
	Element string
	Message string
}

func createParseError(elem, msg string, pos Position) error {
	return ParseError{
		Position: pos,
		Element:  elem,
		Message:  msg,
	}
}

func (p ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, p.Element, p.Message)
}

type Parser struct {
	input *bufio.Reader
	char  rune
	Position

	depth int

	TrimSpace bool
	KeepEmpty bool
	StrictNS  bool
	MaxDepth  int

	namespaces environ.Environ[string]
}

func NewParser(r io.Reader) *Parser {
	p := Parser{
		input:      bufio.NewReader(r),
		KeepEmpty:  true,
		StrictNS:   true,
		MaxDepth:   MaxDepth,
		namespaces: environ.Empty[string](),
	}
	p.namespaces.Define("xml", NamespaceXML)
	p.Line = 1
	if pk, _ := p.input.Peek(3); bytes.Equal(pk, []byte{0xEF, 0xBB, 0xBF}) {
		p.input.Discard(3)
	}
	p.read()
	return &p
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	doc, err := ParseReader(r)
	if err == nil {
		doc.URI = file
	}
	return doc, err
}

func ParseString(str string) (*Document, error) {
	return ParseReader(strings.NewReader(str))
}

func ParseReader(r io.Reader) (*Document, error) {
	return NewParser(r).Parse()
}

func (p *Parser) Parse() (*Document, error) {
	doc := NewDocument()
	if p.startsWith("<?xml") {
		if err := p.parseProlog(); err != nil {
			return nil, err
		}
	}
	for {
		p.skipBlank()
		if p.done() {
			break
		}
		if p.char != langle {
			return nil, p.createError("document", "content not allowed outside root element")
		}
		switch {
		case p.startsWith("<!DOCTYPE"):
			if err := p.skipDoctype(); err != nil {
				return nil, err
			}
		case p.startsWith("<!--"):
			node, err := p.parseComment()
			if err != nil {
				return nil, err
			}
			doc.Append(node)
		case p.startsWith("<?"):
			node, err := p.parsePI()
			if err != nil {
				return nil, err
			}
			doc.Append(node)
		default:
			if doc.Root() != nil {
				return nil, p.createError("document", "only one root element allowed")
			}
			node, err := p.parseElement()
			if err != nil {
				return nil, err
			}
			doc.Append(node)
		}
	}
	if doc.Root() == nil {
		return nil, p.createError("document", "missing root element")
	}
	return doc, nil
}

func (p *Parser) parseProlog() error {
	p.skip(len("<?xml"))
	attrs, err := p.parsePseudoAttributes()
	if err != nil {
		return err
	}
	if v, ok := attrs["version"]; !ok || v != SupportedVersion {
		return p.createError("document", "xml version not supported")
	}
	if e, ok := attrs["encoding"]; ok && !strings.EqualFold(e, SupportedEncoding) && !strings.EqualFold(e, "utf8") {
		return p.createError("document", "xml encoding not supported")
	}
	return nil
}

func (p *Parser) parsePseudoAttributes() (map[string]string, error) {
	attrs := make(map[string]string)
	for {
		p.skipBlank()
		if p.startsWith("?>") {
			p.skip(2)
			return attrs, nil
		}
		if p.done() {
			return nil, p.createError("prolog", "unexpected end of input")
		}
		name := p.scanName()
		if name == "" {
			return nil, p.createError("prolog", "name expected")
		}
		value, err := p.parseAttrValue()
		if err != nil {
			return nil, err
		}
		attrs[name] = value
	}
}

func (p *Parser) parseElement() (Node, error) {
	p.enter()
	defer p.leave()
	if p.depth >= p.MaxDepth {
		return nil, p.createError("element", "maximum depth reached")
	}
	p.namespaces = environ.Enclosed(p.namespaces)
	defer func() {
		p.namespaces = environ.Unwrap(p.namespaces)
	}()

	pos := p.Position
	p.read()
	name := p.scanName()
	qn, err := ParseName(name)
	if err != nil {
		return nil, p.createError("element", err.Error())
	}
	elem := NewElement(qn)

	type rawAttr struct {
		QName
		Value string
	}
	var attrs []rawAttr
	for {
		blank := p.skipBlank()
		if p.char == slash || p.char == rangle || p.done() {
			break
		}
		if !blank {
			return nil, p.createError("element", "whitespace required between attributes")
		}
		name := p.scanName()
		qn, err := ParseName(name)
		if err != nil {
			return nil, p.createError("attribute", err.Error())
		}
		value, err := p.parseAttrValue()
		if err != nil {
			return nil, err
		}
		switch {
		case qn.Space == "" && qn.Name == AttrXmlNS:
			elem.Declare("", value)
			p.namespaces.Define("", value)
		case qn.Space == AttrXmlNS:
			elem.Declare(qn.Name, value)
			p.namespaces.Define(qn.Name, value)
		default:
			attrs = append(attrs, rawAttr{QName: qn, Value: value})
		}
	}
	if elem.Uri, err = p.resolve(elem.QName, true); err != nil {
		return nil, createParseError(elem.QualifiedName(), err.Error(), pos)
	}
	for _, a := range attrs {
		if a.Uri, err = p.resolve(a.QName, false); err != nil {
			return nil, createParseError(a.QualifiedName(), err.Error(), pos)
		}
		if _, ok := findAttr(elem, a.QName); ok {
			return nil, createParseError(a.QualifiedName(), "attribute is already defined", pos)
		}
		elem.SetAttribute(NewAttribute(a.QName, a.Value))
	}

	if p.char == slash {
		p.read()
		if p.char != rangle {
			return nil, p.createError("element", "end of element expected")
		}
		p.read()
		return elem, nil
	}
	if p.char != rangle {
		return nil, p.createError("element", "end of element expected")
	}
	p.read()
	if err := p.parseContent(elem); err != nil {
		return nil, err
	}
	return elem, p.parseCloseElement(elem)
}

func (p *Parser) parseContent(elem *Element) error {
	for !p.done() {
		if p.char != langle {
			text, err := p.parseText()
			if err != nil {
				return err
			}
			if text != nil {
				elem.Append(text)
			}
			continue
		}
		var (
			node Node
			err  error
		)
		switch {
		case p.startsWith("</"):
			return nil
		case p.startsWith("<!--"):
			node, err = p.parseComment()
		case p.startsWith("<![CDATA["):
			node, err = p.parseCharData()
		case p.startsWith("<?"):
			node, err = p.parsePI()
		default:
			node, err = p.parseElement()
		}
		if err != nil {
			return err
		}
		elem.Append(node)
	}
	return p.createError(elem.QualifiedName(), "closing element is missing")
}

func (p *Parser) parseCloseElement(elem *Element) error {
	p.skip(2)
	name := p.scanName()
	if name != elem.QualifiedName() {
		return p.createError(elem.QualifiedName(), "name mismatched with opening element")
	}
	p.skipBlank()
	if p.char != rangle {
		return p.createError(elem.QualifiedName(), "end of element expected")
	}
	p.read()
	return nil
}

func (p *Parser) parsePI() (Node, error) {
	p.skip(2)
	target := p.scanName()
	if target == "" {
		return nil, p.createError("processing instruction", "name is missing")
	}
	if strings.EqualFold(target, "xml") {
		return nil, p.createError("processing instruction", "reserved target name")
	}
	p.skipBlank()
	var str bytes.Buffer
	for !p.done() && !p.startsWith("?>") {
		str.WriteRune(p.char)
		p.read()
	}
	if p.done() {
		return nil, p.createError("processing instruction", "end of element expected")
	}
	p.skip(2)
	return NewInstruction(target, str.String()), nil
}

func (p *Parser) parseComment() (Node, error) {
	p.skip(4)
	var str bytes.Buffer
	for !p.done() && !p.startsWith("-->") {
		str.WriteRune(p.char)
		p.read()
	}
	if p.done() {
		return nil, p.createError("comment", "end of comment expected")
	}
	p.skip(3)
	return NewComment(str.String()), nil
}

func (p *Parser) parseCharData() (Node, error) {
	p.skip(len("<![CDATA["))
	var str bytes.Buffer
	for !p.done() && !p.startsWith("]]>") {
		str.WriteRune(p.char)
		p.read()
	}
	if p.done() {
		return nil, p.createError("cdata", "end of cdata section expected")
	}
	p.skip(3)
	text := NewText(str.String())
	text.CData = true
	return text, nil
}

func (p *Parser) parseText() (Node, error) {
	var str bytes.Buffer
	for !p.done() && p.char != langle {
		if p.char == ampersand {
			ref, err := p.scanEntity()
			if err != nil {
				return nil, err
			}
			str.WriteString(ref)
			continue
		}
		str.WriteRune(p.char)
		p.read()
	}
	content := str.String()
	if p.TrimSpace {
		content = strings.TrimSpace(content)
	}
	if content == "" || (!p.KeepEmpty && strings.TrimSpace(content) == "") {
		return nil, nil
	}
	return NewText(content), nil
}

func (p *Parser) parseAttrValue() (string, error) {
	p.skipBlank()
	if p.char != equal {
		return "", p.createError("attribute", "value is missing")
	}
	p.read()
	p.skipBlank()
	if p.char != quote && p.char != apos {
		return "", p.createError("attribute", "quoted value expected")
	}
	delim := p.char
	p.read()
	var str bytes.Buffer
	for !p.done() && p.char != delim {
		switch p.char {
		case langle:
			return "", p.createError("attribute", "'<' not allowed in attribute value")
		case ampersand:
			ref, err := p.scanEntity()
			if err != nil {
				return "", err
			}
			str.WriteString(ref)
			continue
		case '\t', '\n', '\r':
			str.WriteRune(' ')
		default:
			str.WriteRune(p.char)
		}
		p.read()
	}
	if p.char != delim {
		return "", p.createError("attribute", "unterminated value")
	}
	p.read()
	return str.String(), nil
}

func (p *Parser) scanEntity() (string, error) {
	p.read()
	var str bytes.Buffer
	for !p.done() && p.char != semicolon && str.Len() < 32 {
		str.WriteRune(p.char)
		p.read()
	}
	if p.char != semicolon {
		return "", p.createError("entity", "unterminated reference")
	}
	p.read()
	ref := str.String()
	switch ref {
	case "lt":
		return "<", nil
	case "gt":
		return ">", nil
	case "amp":
		return "&", nil
	case "quot":
		return "\"", nil
	case "apos":
		return "'", nil
	}
	if !strings.HasPrefix(ref, "#") {
		return "", p.createError("entity", fmt.Sprintf("%s: undefined entity", ref))
	}
	var (
		n   uint64
		err error
	)
	if x, ok := strings.CutPrefix(ref[1:], "x"); ok {
		n, err = strconv.ParseUint(x, 16, 32)
	} else {
		n, err = strconv.ParseUint(ref[1:], 10, 32)
	}
	if err != nil || !utf8.ValidRune(rune(n)) {
		return "", p.createError("entity", fmt.Sprintf("%s: invalid character reference", ref))
	}
	return string(rune(n)), nil
}

func (p *Parser) skipDoctype() error {
	p.skip(len("<!DOCTYPE"))
	depth := 0
	for !p.done() {
		switch p.char {
		case lsquare:
			depth++
		case rsquare:
			depth--
		case rangle:
			if depth == 0 {
				p.read()
				return nil
			}
		}
		p.read()
	}
	return p.createError("doctype", "unterminated declaration")
}

func (p *Parser) resolve(qn QName, elem bool) (string, error) {
	if qn.Space == "" && !elem {
		return "", nil
	}
	uri, err := p.namespaces.Resolve(qn.Space)
	if err != nil {
		if qn.Space == "" {
			return "", nil
		}
		if p.StrictNS {
			return "", fmt.Errorf("%s: namespace is not defined", qn.Space)
		}
	}
	return uri, nil
}

func (p *Parser) createError(elem, msg string) error {
	return createParseError(elem, msg, p.Position)
}

func (p *Parser) enter() {
	p.depth++
}

func (p *Parser) leave() {
	p.depth--
}

func (p *Parser) scanName() string {
	var str bytes.Buffer
	for !p.done() && (isNameChar(p.char) || p.char == colon) {
		str.WriteRune(p.char)
		p.read()
	}
	return str.String()
}

func (p *Parser) startsWith(prefix string) bool {
	if p.done() || p.char != rune(prefix[0]) {
		return false
	}
	if len(prefix) == 1 {
		return true
	}
	buf, _ := p.input.Peek(len(prefix) - 1)
	return string(buf) == prefix[1:]
}

func (p *Parser) skip(n int) {
	for i := 0; i < n; i++ {
		p.read()
	}
}

func (p *Parser) skipBlank() bool {
	var blank bool
	for !p.done() && unicode.IsSpace(p.char) {
		blank = true
		p.read()
	}
	return blank
}

func (p *Parser) read() {
	if p.char == '\n' {
		p.Column = 0
		p.Line++
	}
	p.Column++
	char, _, err := p.input.ReadRune()
	if errors.Is(err, io.EOF) {
		char = utf8.RuneError
	}
	if char == '\r' {
		if next, _, err := p.input.ReadRune(); err == nil && next != '\n' {
			p.input.UnreadRune()
		}
		char = '\n'
	}
	p.char = char
}

func (p *Parser) done() bool {
	return p.char == utf8.RuneError
}

func findAttr(elem *Element, qn QName) (*Attribute, bool) {
	for _, a := range elem.Attrs {
		if a.QName.Equal(qn) {
			return a, true
		}
	}
	return nil, false
}

const (
	langle    = '<'
	rangle    = '>'
	lsquare   = '['
	rsquare   = ']'
	colon     = ':'
	quote     = '"'
	apos      = '\''
	slash     = '/'
	equal     = '='
	ampersand = '&'
	semicolon = ';'
)
