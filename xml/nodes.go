package xml

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
)

type NodeType int8

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
	TypeNamespace
)

const TypeNode = TypeDocument | TypeElement | TypeComment | TypeAttribute | TypeInstruction | TypeText

func (n NodeType) String() string {
	switch n {
	default:
		return "<>"
	case TypeDocument:
		return "document"
	case TypeElement:
		return "element"
	case TypeComment:
		return "comment"
	case TypeAttribute:
		return "attribute"
	case TypeInstruction:
		return "processing-instruction"
	case TypeText:
		return "text"
	case TypeNamespace:
		return "namespace"
	case TypeNode:
		return "node"
	}
}

const (
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
)

type Node interface {
	Type() NodeType
	LocalName() string
	QualifiedName() string
	Namespace() string
	Value() string
	Parent() Node
	Position() int

	setParent(Node)
	setPosition(int)
}

// Container is implemented by nodes that own children.
type Container interface {
	Node
	Children() []Node
	Append(Node)
}

type NS struct {
	Prefix string
	Uri    string
}

func (n NS) Default() bool {
	return n.Prefix == ""
}

type QName struct {
	Uri   string
	Space string
	Name  string
}

func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if ok && (qn.Space == "" || qn.Name == "") {
		return qn, fmt.Errorf("%s: invalid qualified name", name)
	}
	if qn.Name == "" {
		return qn, fmt.Errorf("empty name")
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return ExpandedName(name, "", "")
}

func QualifiedName(name, space string) QName {
	return ExpandedName(name, space, "")
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == "" && q.Uri == ""
}

func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) Namespace() string {
	return q.Uri
}

func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.LocalName()
	}
	return fmt.Sprintf("{%s}%s", q.Uri, q.Name)
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.LocalName()
	}
	return q.Space + ":" + q.Name
}

func (q QName) String() string {
	return q.QualifiedName()
}

// IsName reports whether str is a valid XML NCName or QName.
func IsName(str string) bool {
	if str == "" {
		return false
	}
	for i, c := range str {
		if i == 0 && !isNameStart(c) {
			return false
		}
		if !isNameStart(c) && !isNameChar(c) && c != ':' {
			return false
		}
	}
	return !strings.HasPrefix(str, ":") && !strings.HasSuffix(str, ":") && strings.Count(str, ":") <= 1
}

var documentSeq atomic.Int64

type Document struct {
	Nodes []Node
	URI   string

	order int64
}

func NewDocument() *Document {
	return &Document{
		order: documentSeq.Add(1),
	}
}

// Root returns the document element.
func (d *Document) Root() *Element {
	for _, n := range d.Nodes {
		if e, ok := n.(*Element); ok {
			return e
		}
	}
	return nil
}

func (d *Document) Children() []Node {
	return d.Nodes
}

func (d *Document) Append(node Node) {
	d.Nodes = appendNode(d, d.Nodes, node)
}

func (_ *Document) Type() NodeType {
	return TypeDocument
}

func (_ *Document) LocalName() string {
	return ""
}

func (_ *Document) QualifiedName() string {
	return ""
}

func (_ *Document) Namespace() string {
	return ""
}

func (d *Document) Value() string {
	return textValue(d.Nodes)
}

func (_ *Document) Parent() Node {
	return nil
}

func (_ *Document) Position() int {
	return 0
}

func (d *Document) setParent(_ Node) {}

func (d *Document) setPosition(_ int) {}

type Element struct {
	QName
	Attrs []*Attribute
	Nodes []Node
	// namespace declarations made on this element
	Declarations []NS

	parent   Node
	position int
}

func NewElement(name QName) *Element {
	return &Element{
		QName: name,
	}
}

func (e *Element) Children() []Node {
	return e.Nodes
}

func (e *Element) Append(node Node) {
	e.Nodes = appendNode(e, e.Nodes, node)
}

// SetAttribute adds attr or replaces the attribute with the same expanded
// name.
func (e *Element) SetAttribute(attr *Attribute) {
	attr.setParent(e)
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName.Equal(attr.QName)
	})
	if ix >= 0 {
		attr.setPosition(ix)
		e.Attrs[ix] = attr
		return
	}
	attr.setPosition(len(e.Attrs))
	e.Attrs = append(e.Attrs, attr)
}

func (e *Element) GetAttribute(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Uri == "" && a.Name == name {
			return a.Datum, true
		}
	}
	return "", false
}

func (e *Element) Declare(prefix, uri string) {
	ix := slices.IndexFunc(e.Declarations, func(n NS) bool {
		return n.Prefix == prefix
	})
	if ix >= 0 {
		e.Declarations[ix].Uri = uri
		return
	}
	e.Declarations = append(e.Declarations, NS{Prefix: prefix, Uri: uri})
}

// InScope returns the namespaces in scope for e, innermost declarations
// first. Undeclarations (empty default namespace) are dropped.
func (e *Element) InScope() []NS {
	var (
		list []NS
		seen = make(map[string]struct{})
	)
	for n := Node(e); n != nil; n = n.Parent() {
		el, ok := n.(*Element)
		if !ok {
			break
		}
		for _, d := range el.Declarations {
			if _, ok := seen[d.Prefix]; ok {
				continue
			}
			seen[d.Prefix] = struct{}{}
			if d.Uri == "" {
				continue
			}
			list = append(list, d)
		}
	}
	return list
}

// Lookup resolves prefix against the namespaces in scope of e.
func (e *Element) Lookup(prefix string) (string, bool) {
	if prefix == "xml" {
		return NamespaceXML, true
	}
	for n := Node(e); n != nil; n = n.Parent() {
		el, ok := n.(*Element)
		if !ok {
			break
		}
		for _, d := range el.Declarations {
			if d.Prefix == prefix {
				return d.Uri, d.Uri != "" || prefix == ""
			}
		}
	}
	return "", prefix == ""
}

// NamespaceNodes returns the namespace axis of e.
func (e *Element) NamespaceNodes() []Node {
	var list []Node
	for i, n := range e.InScope() {
		ns := Namespace{
			NS:       n,
			parent:   e,
			position: i,
		}
		list = append(list, &ns)
	}
	return list
}

func (_ *Element) Type() NodeType {
	return TypeElement
}

func (e *Element) Value() string {
	return textValue(e.Nodes)
}

func (e *Element) Parent() Node {
	return e.parent
}

func (e *Element) Position() int {
	return e.position
}

func (e *Element) setParent(node Node) {
	e.parent = node
}

func (e *Element) setPosition(pos int) {
	e.position = pos
}

type Attribute struct {
	QName
	Datum string

	parent   Node
	position int
}

func NewAttribute(name QName, value string) *Attribute {
	return &Attribute{
		QName: name,
		Datum: value,
	}
}

func (_ *Attribute) Type() NodeType {
	return TypeAttribute
}

func (a *Attribute) Value() string {
	return a.Datum
}

func (a *Attribute) Parent() Node {
	return a.parent
}

func (a *Attribute) Position() int {
	return a.position
}

func (a *Attribute) setParent(node Node) {
	a.parent = node
}

func (a *Attribute) setPosition(pos int) {
	a.position = pos
}

type Namespace struct {
	NS

	parent   Node
	position int
}

func (_ *Namespace) Type() NodeType {
	return TypeNamespace
}

func (n *Namespace) LocalName() string {
	return n.Prefix
}

func (n *Namespace) QualifiedName() string {
	return n.Prefix
}

func (_ *Namespace) Namespace() string {
	return ""
}

func (n *Namespace) Value() string {
	return n.Uri
}

func (n *Namespace) Parent() Node {
	return n.parent
}

func (n *Namespace) Position() int {
	return n.position
}

func (n *Namespace) setParent(node Node) {
	n.parent = node
}

func (n *Namespace) setPosition(pos int) {
	n.position = pos
}

type Text struct {
	Content string
	CData   bool

	parent   Node
	position int
}

func NewText(str string) *Text {
	return &Text{
		Content: str,
	}
}

func (_ *Text) Type() NodeType {
	return TypeText
}

func (_ *Text) LocalName() string {
	return ""
}

func (_ *Text) QualifiedName() string {
	return ""
}

func (_ *Text) Namespace() string {
	return ""
}

func (t *Text) Value() string {
	return t.Content
}

func (t *Text) Parent() Node {
	return t.parent
}

func (t *Text) Position() int {
	return t.position
}

func (t *Text) setParent(node Node) {
	t.parent = node
}

func (t *Text) setPosition(pos int) {
	t.position = pos
}

type Comment struct {
	Content string

	parent   Node
	position int
}

func NewComment(str string) *Comment {
	return &Comment{
		Content: str,
	}
}

func (_ *Comment) Type() NodeType {
	return TypeComment
}

func (_ *Comment) LocalName() string {
	return ""
}

func (_ *Comment) QualifiedName() string {
	return ""
}

func (_ *Comment) Namespace() string {
	return ""
}

func (c *Comment) Value() string {
	return c.Content
}

func (c *Comment) Parent() Node {
	return c.parent
}

func (c *Comment) Position() int {
	return c.position
}

func (c *Comment) setParent(node Node) {
	c.parent = node
}

func (c *Comment) setPosition(pos int) {
	c.position = pos
}

type Instruction struct {
	Target  string
	Content string

	parent   Node
	position int
}

func NewInstruction(target, content string) *Instruction {
	return &Instruction{
		Target:  target,
		Content: content,
	}
}

func (_ *Instruction) Type() NodeType {
	return TypeInstruction
}

func (i *Instruction) LocalName() string {
	return i.Target
}

func (i *Instruction) QualifiedName() string {
	return i.Target
}

func (_ *Instruction) Namespace() string {
	return ""
}

func (i *Instruction) Value() string {
	return i.Content
}

func (i *Instruction) Parent() Node {
	return i.parent
}

func (i *Instruction) Position() int {
	return i.position
}

func (i *Instruction) setParent(node Node) {
	i.parent = node
}

func (i *Instruction) setPosition(pos int) {
	i.position = pos
}

// Children returns the child nodes of n, or nil when n can not have any.
func Children(n Node) []Node {
	if c, ok := n.(Container); ok {
		return c.Children()
	}
	return nil
}

// Root returns the topmost ancestor of n.
func Root(n Node) Node {
	for {
		p := n.Parent()
		if p == nil {
			return n
		}
		n = p
	}
}

// Clone deep copies n. The copy has no parent.
func Clone(n Node) Node {
	switch n := n.(type) {
	case *Document:
		doc := NewDocument()
		doc.URI = n.URI
		for _, c := range n.Nodes {
			doc.Append(Clone(c))
		}
		return doc
	case *Element:
		el := NewElement(n.QName)
		el.Declarations = slices.Clone(n.Declarations)
		for _, a := range n.Attrs {
			el.SetAttribute(NewAttribute(a.QName, a.Datum))
		}
		for _, c := range n.Nodes {
			el.Append(Clone(c))
		}
		return el
	case *Attribute:
		return NewAttribute(n.QName, n.Datum)
	case *Text:
		t := NewText(n.Content)
		t.CData = n.CData
		return t
	case *Comment:
		return NewComment(n.Content)
	case *Instruction:
		return NewInstruction(n.Target, n.Content)
	case *Namespace:
		return &Namespace{NS: n.NS}
	default:
		return nil
	}
}

// Before reports whether left comes before right in document order. Nodes
// from different documents are ordered by document creation.
func Before(left, right Node) bool {
	return Compare(left, right) < 0
}

func Compare(left, right Node) int {
	if left == right {
		return 0
	}
	var (
		p1 = pathOf(left)
		p2 = pathOf(right)
	)
	if r1, r2 := Root(left), Root(right); r1 != r2 {
		return compareRoots(r1, r2)
	}
	for i := 0; i < len(p1) && i < len(p2); i++ {
		if p1[i] < p2[i] {
			return -1
		} else if p1[i] > p2[i] {
			return 1
		}
	}
	return len(p1) - len(p2)
}

// SortDocumentOrder sorts nodes in document order and drops duplicates.
func SortDocumentOrder(nodes []Node) []Node {
	slices.SortStableFunc(nodes, Compare)
	return slices.CompactFunc(nodes, func(a, b Node) bool {
		return a == b
	})
}

const (
	namespaceOffset = -(1 << 30)
	attributeOffset = -(1 << 20)
)

func pathOf(n Node) []int {
	var list []int
	for n != nil {
		p := n.Parent()
		if p == nil {
			break
		}
		pos := n.Position()
		switch n.Type() {
		case TypeAttribute:
			pos += attributeOffset
		case TypeNamespace:
			pos += namespaceOffset
		}
		list = append(list, pos)
		n = p
	}
	slices.Reverse(list)
	return list
}

func compareRoots(r1, r2 Node) int {
	d1, ok1 := r1.(*Document)
	d2, ok2 := r2.(*Document)
	switch {
	case ok1 && ok2:
		return int(d1.order - d2.order)
	case ok1:
		return -1
	case ok2:
		return 1
	default:
		return strings.Compare(fmt.Sprintf("%p", r1), fmt.Sprintf("%p", r2))
	}
}

func appendNode(parent Node, list []Node, node Node) []Node {
	if t, ok := node.(*Text); ok && len(list) > 0 {
		if prev, ok := list[len(list)-1].(*Text); ok && !t.CData && !prev.CData {
			prev.Content += t.Content
			return list
		}
	}
	node.setParent(parent)
	node.setPosition(len(list))
	return append(list, node)
}

func textValue(nodes []Node) string {
	var str strings.Builder
	for _, n := range nodes {
		switch n.Type() {
		case TypeText:
			str.WriteString(n.Value())
		case TypeElement:
			str.WriteString(n.Value())
		default:
		}
	}
	return str.String()
}

func isNameStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c > 0x7F
}

func isNameChar(c rune) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}
