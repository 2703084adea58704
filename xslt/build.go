package xslt

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Load compiles the stylesheet stored in file. Imported and included
// stylesheets are resolved relative to its directory.
func Load(file string) (*Stylesheet, error) {
	dir, name := filepath.Split(file)
	if dir == "" {
		dir = "."
	}
	return LoadFS(os.DirFS(dir), name)
}

// LoadFS compiles the stylesheet name found in fsys.
func LoadFS(fsys fs.FS, name string) (*Stylesheet, error) {
	s := newStylesheet(fsys)
	if _, err := s.loadModule(name, "", none, false); err != nil {
		return nil, err
	}
	if err := s.Recompose(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse compiles a stylesheet read from r. It can not import nor include
// other stylesheets.
func Parse(r io.Reader) (*Stylesheet, error) {
	doc, err := xml.NewParser(r).Parse()
	if err != nil {
		return nil, err
	}
	s := newStylesheet(nil)
	if _, err := s.buildModule(doc, "", none); err != nil {
		return nil, err
	}
	if err := s.Recompose(); err != nil {
		return nil, err
	}
	return s, nil
}

func ParseString(str string) (*Stylesheet, error) {
	return Parse(strings.NewReader(str))
}

func (s *Stylesheet) resolvePath(href, base string) string {
	if path.IsAbs(href) {
		return strings.TrimPrefix(href, "/")
	}
	return path.Join(path.Dir(base), href)
}

func (s *Stylesheet) loadDocument(href, base string) (*xml.Document, error) {
	if s.fsys == nil {
		return nil, fmt.Errorf("%s: no file system to load document from", href)
	}
	file := s.resolvePath(href, base)
	r, err := s.fsys.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := xml.NewParser(r).Parse()
	if err != nil {
		return nil, err
	}
	doc.URI = file
	return doc, nil
}

func (s *Stylesheet) loadModule(href, base string, parent int, include bool) (int, error) {
	file := s.resolvePath(href, base)
	if slices.Contains(s.loading, file) {
		return none, fmt.Errorf("%s: %w", file, ErrCycle)
	}
	s.loading = append(s.loading, file)
	defer func() {
		s.loading = s.loading[:len(s.loading)-1]
	}()

	doc, err := s.loadDocument(href, base)
	if err != nil {
		return none, err
	}
	if !include {
		parent = none
	}
	return s.buildModule(doc, file, parent)
}

func (s *Stylesheet) buildModule(doc *xml.Document, uri string, parent int) (int, error) {
	root := doc.Root()
	if root == nil {
		return none, fmt.Errorf("%s: empty stylesheet: %w", uri, ErrInvalid)
	}
	m := len(s.modules)
	mod := Module{
		URI:    uri,
		Parent: parent,
	}
	s.modules = append(s.modules, &mod)

	b := builder{
		Stylesheet: s,
		module:     m,
	}
	var err error
	if root.Uri == xsltNamespaceUri {
		if kind := xslKinds[root.Name]; kind != KindStylesheet {
			return none, fmt.Errorf("%s: %s is not a stylesheet: %w", uri, root.QualifiedName(), ErrInvalid)
		}
		mod.Root, err = b.buildStylesheet(root)
	} else {
		mod.Root, err = b.buildSimplified(root)
	}
	if err != nil {
		return none, err
	}
	return m, nil
}

type builder struct {
	*Stylesheet
	module int
}

func (b *builder) add(kind Kind, el *xml.Element) int {
	inst := newInstruction(kind)
	inst.Module = b.module
	if el != nil {
		inst.Namespaces = el.InScope()
		inst.Options = make(map[string]string)
		for _, a := range el.Attrs {
			if a.Uri == "" {
				inst.Options[a.Name] = a.Datum
			}
		}
	}
	return b.nodes.add(inst)
}

func (b *builder) error(el *xml.Element, err error) error {
	e := Error{
		Kind:   ComposeError,
		Module: b.modules[b.module].URI,
		Err:    err,
	}
	if el != nil {
		e.Instruction = el.QualifiedName()
	}
	return &e
}

func (b *builder) buildStylesheet(root *xml.Element) (int, error) {
	ix := b.add(KindStylesheet, root)
	mod := b.modules[b.module]
	mod.Extension = b.prefixes(root, root.Attrs, "extension-element-prefixes", "")
	mod.Excluded = b.prefixes(root, root.Attrs, "exclude-result-prefixes", "")

	for _, n := range root.Nodes {
		el, ok := n.(*xml.Element)
		if !ok {
			continue
		}
		if el.Uri == xsltNamespaceUri {
			kind, ok := xslKinds[el.Name]
			if !ok {
				// unknown top level elements are ignored
				continue
			}
			switch kind {
			case KindImport, KindInclude:
				if err := b.buildInclude(el, ix, kind == KindInclude); err != nil {
					return none, err
				}
				continue
			case KindTemplate, KindVariable, KindParam, KindAttributeSet, KindKey,
				KindDecimalFormat, KindOutput, KindNamespaceAlias, KindStripSpace,
				KindPreserveSpace:
			default:
				return none, b.error(el, fmt.Errorf("instruction not allowed at top level: %w", ErrInvalid))
			}
			c, err := b.buildElement(el, kind)
			if err != nil {
				return none, err
			}
			b.nodes.appendChild(ix, c)
			continue
		}
		if el.Uri == ExsltFunctions && el.Name == "function" {
			c, err := b.buildElement(el, KindFunction)
			if err != nil {
				return none, err
			}
			b.nodes.appendChild(ix, c)
		}
	}
	return ix, nil
}

// buildSimplified wraps a literal result element used as stylesheet into a
// template matching the root node.
func (b *builder) buildSimplified(root *xml.Element) (int, error) {
	if _, ok := xslAttribute(root, "version"); !ok {
		return none, b.error(root, fmt.Errorf("missing xsl:version on literal result element: %w", ErrInvalid))
	}
	ix := b.add(KindStylesheet, root)
	tpl := b.add(KindTemplate, nil)
	match, err := xpath.CompilePattern("/", nil)
	if err != nil {
		return none, err
	}
	b.nodes[tpl].Match = match
	b.nodes.appendChild(ix, tpl)
	if err := b.buildChild(root, tpl); err != nil {
		return none, err
	}
	return ix, nil
}

func (b *builder) buildInclude(el *xml.Element, parent int, include bool) error {
	href, ok := el.GetAttribute("href")
	if !ok {
		return b.error(el, fmt.Errorf("missing href: %w", ErrInvalid))
	}
	mod := b.modules[b.module]
	m, err := b.loadModule(href, mod.URI, b.module, include)
	if err != nil {
		return b.error(el, err)
	}
	mod = b.modules[b.module]
	if include {
		mod.Includes = append(mod.Includes, m)
	} else {
		mod.Imports = append(mod.Imports, m)
	}
	kind := KindImport
	if include {
		kind = KindInclude
	}
	ix := b.add(kind, el)
	b.nodes.appendChild(parent, ix)
	return nil
}

func (b *builder) buildChildren(el *xml.Element, parent int) error {
	for _, n := range el.Nodes {
		if err := b.buildChild(n, parent); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) buildChild(n xml.Node, parent int) error {
	switch n := n.(type) {
	case *xml.Text:
		if strings.TrimSpace(n.Content) == "" && !preserveSpace(n) {
			return nil
		}
		ix := b.add(KindLiteralText, nil)
		b.nodes[ix].Text = n.Content
		b.nodes.appendChild(parent, ix)
	case *xml.Element:
		kind := b.kindOf(n)
		if kind == KindEmpty {
			return nil
		}
		ix, err := b.buildElement(n, kind)
		if err != nil {
			return err
		}
		b.nodes.appendChild(parent, ix)
	default:
	}
	return nil
}

func preserveSpace(n xml.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		el, ok := p.(*xml.Element)
		if !ok {
			break
		}
		for _, a := range el.Attrs {
			if a.Name == "space" && a.Uri == xml.NamespaceXML {
				return a.Datum == "preserve"
			}
		}
	}
	return false
}

func (b *builder) kindOf(el *xml.Element) Kind {
	switch el.Uri {
	case xsltNamespaceUri:
		if kind, ok := xslKinds[el.Name]; ok {
			return kind
		}
		return KindExtensionCall
	case ExsltFunctions:
		if el.Name == "result" {
			return KindFunctionResult
		}
	}
	if slices.Contains(b.extensionNamespaces(el), el.Uri) {
		return KindExtensionCall
	}
	return KindLiteralElement
}

// extensionNamespaces returns the namespaces designated as extension
// namespaces for el by the stylesheet and its literal result ancestors.
func (b *builder) extensionNamespaces(el *xml.Element) []string {
	list := slices.Clone(b.modules[b.module].Extension)
	for n := xml.Node(el); n != nil; n = n.Parent() {
		e, ok := n.(*xml.Element)
		if !ok || e.Uri == xsltNamespaceUri {
			continue
		}
		list = append(list, b.prefixes(e, e.Attrs, "extension-element-prefixes", xsltNamespaceUri)...)
	}
	return list
}

func (b *builder) excludedNamespaces(el *xml.Element) []string {
	list := slices.Clone(b.modules[b.module].Excluded)
	for n := xml.Node(el); n != nil; n = n.Parent() {
		e, ok := n.(*xml.Element)
		if !ok || e.Uri == xsltNamespaceUri {
			continue
		}
		list = append(list, b.prefixes(e, e.Attrs, "exclude-result-prefixes", xsltNamespaceUri)...)
	}
	return list
}

func (b *builder) prefixes(el *xml.Element, attrs []*xml.Attribute, name, uri string) []string {
	var list []string
	for _, a := range attrs {
		if a.Name != name || a.Uri != uri {
			continue
		}
		for _, p := range strings.Fields(a.Datum) {
			if p == "#default" {
				p = ""
			}
			if u, ok := el.Lookup(p); ok && u != "" {
				list = append(list, u)
			}
		}
	}
	return list
}

func xslAttribute(el *xml.Element, name string) (string, bool) {
	for _, a := range el.Attrs {
		if a.Name == name && a.Uri == xsltNamespaceUri {
			return a.Datum, true
		}
	}
	return "", false
}

func namespaceEnv(el *xml.Element) environ.Environ[string] {
	return namespacesOf(el.InScope())
}

func namespacesOf(list []xml.NS) environ.Environ[string] {
	env := environ.Empty[string]()
	env.Define("xml", xml.NamespaceXML)
	for _, ns := range list {
		if ns.Prefix != "" {
			env.Define(ns.Prefix, ns.Uri)
		}
	}
	return env
}

func (b *builder) buildElement(el *xml.Element, kind Kind) (int, error) {
	ix := b.add(kind, el)
	var (
		env = namespaceEnv(el)
		err error
	)
	switch kind {
	case KindLiteralElement:
		err = b.buildLiteral(ix, el, env)
	case KindExtensionCall:
		b.nodes[ix].Name = el.QName
	case KindText:
		var str strings.Builder
		for _, n := range el.Nodes {
			if t, ok := n.(*xml.Text); ok {
				str.WriteString(t.Content)
			}
		}
		b.nodes[ix].Text = str.String()
		return ix, nil
	default:
		err = b.buildInstruction(ix, el, env)
	}
	if err != nil {
		return none, b.error(el, err)
	}
	if err := b.buildChildren(el, ix); err != nil {
		return none, err
	}
	return ix, nil
}

func (b *builder) buildLiteral(ix int, el *xml.Element, env environ.Environ[string]) error {
	var (
		inst     = &b.nodes[ix]
		excluded = append(b.excludedNamespaces(el), b.extensionNamespaces(el)...)
	)
	inst.Name = el.QName
	for _, ns := range el.InScope() {
		if ns.Uri == xsltNamespaceUri || slices.Contains(excluded, ns.Uri) {
			continue
		}
		inst.Copied = append(inst.Copied, ns)
	}
	for _, a := range el.Attrs {
		if a.Uri == xsltNamespaceUri {
			if a.Name == "use-attribute-sets" {
				sets, err := qnames(a.Datum, env)
				if err != nil {
					return err
				}
				inst.Sets = sets
			}
			continue
		}
		value, err := compileAVT(a.Datum, env)
		if err != nil {
			return err
		}
		inst.Attrs = append(inst.Attrs, attributeTemplate{
			Name:  a.QName,
			Value: value,
		})
	}
	return nil
}

func (b *builder) buildInstruction(ix int, el *xml.Element, env environ.Environ[string]) error {
	var (
		inst = &b.nodes[ix]
		err  error
	)
	if str, ok := el.GetAttribute("name"); ok {
		switch inst.Kind {
		case KindElement, KindAttribute, KindProcessingInstruction:
			inst.NameAVT, err = compileAVT(str, env)
		default:
			inst.Name, err = qname(str, env)
		}
		if err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("namespace"); ok {
		if inst.SpaceAVT, err = compileAVT(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("mode"); ok {
		if inst.Mode, err = qname(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("use-attribute-sets"); ok {
		if inst.Sets, err = qnames(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("select"); ok {
		if inst.Select, err = xpath.Compile(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("test"); ok {
		if inst.Test, err = xpath.Compile(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("use"); ok {
		if inst.Use, err = xpath.Compile(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("value"); ok && inst.Kind == KindNumber {
		if inst.Select, err = xpath.Compile(str, env); err != nil {
			return err
		}
	}
	for attr, set := range map[string]*[]*xpath.Pattern{"match": &inst.Match, "count": &inst.Count, "from": &inst.From} {
		str, ok := el.GetAttribute(attr)
		if !ok {
			continue
		}
		if *set, err = xpath.CompilePattern(str, env); err != nil {
			return err
		}
	}
	if str, ok := el.GetAttribute("priority"); ok {
		if inst.Priority, err = strconv.ParseFloat(strings.TrimSpace(str), 64); err != nil {
			return fmt.Errorf("%s: invalid priority", str)
		}
		inst.HasPriority = true
	}
	inst.Terminate = inst.Options["terminate"] == "yes"

	switch inst.Kind {
	case KindSort, KindNumber:
		inst.Props = make(map[string]*avt)
		for _, name := range []string{"order", "data-type", "case-order", "lang", "format", "letter-value", "grouping-separator", "grouping-size"} {
			str, ok := el.GetAttribute(name)
			if !ok {
				continue
			}
			if inst.Props[name], err = compileAVT(str, env); err != nil {
				return err
			}
		}
	case KindNamespaceAlias:
		for _, name := range []string{"stylesheet", "result"} {
			prefix := inst.Options[name+"-prefix"]
			if prefix == "#default" {
				prefix = ""
				inst.Options[name+"-prefix"] = ""
			}
			uri, _ := el.Lookup(prefix)
			inst.Options[name+"-uri"] = uri
		}
	case KindTemplate:
		if len(inst.Match) == 0 && inst.Name.Zero() {
			return fmt.Errorf("template without match nor name: %w", ErrInvalid)
		}
	case KindCallTemplate, KindVariable, KindParam, KindWithParam, KindKey, KindAttributeSet, KindFunction:
		if inst.Name.Zero() {
			return fmt.Errorf("missing name: %w", ErrInvalid)
		}
	case KindForEach, KindCopyOf, KindValueOf:
		if inst.Select == nil {
			return fmt.Errorf("missing select: %w", ErrInvalid)
		}
	case KindIf, KindWhen:
		if inst.Test == nil {
			return fmt.Errorf("missing test: %w", ErrInvalid)
		}
	case KindElement, KindAttribute, KindProcessingInstruction:
		if inst.NameAVT == nil {
			return fmt.Errorf("missing name: %w", ErrInvalid)
		}
	}
	if inst.Kind == KindKey && (len(inst.Match) == 0 || inst.Use == nil) {
		return fmt.Errorf("key requires match and use: %w", ErrInvalid)
	}
	return nil
}

func qname(str string, env environ.Environ[string]) (xml.QName, error) {
	qn, err := xml.ParseName(strings.TrimSpace(str))
	if err != nil {
		return qn, err
	}
	if qn.Space == "" {
		return qn, nil
	}
	qn.Uri, err = env.Resolve(qn.Space)
	if err != nil {
		return qn, fmt.Errorf("%s: namespace prefix not defined", qn.Space)
	}
	return qn, nil
}

func qnames(str string, env environ.Environ[string]) ([]xml.QName, error) {
	var list []xml.QName
	for _, n := range strings.Fields(str) {
		qn, err := qname(n, env)
		if err != nil {
			return nil, err
		}
		list = append(list, qn)
	}
	return list, nil
}
