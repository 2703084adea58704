package xslt

import (
	"fmt"
	"io/fs"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	XslVersion   = "1.0"
	XslVendor    = "angle"
	XslVendorUrl = "https://github.com/midbel/angle"
)

const (
	xsltNamespaceUri    = "http://www.w3.org/1999/XSL/Transform"
	xsltNamespacePrefix = "xsl"
)

type State int8

const (
	Unparsed State = iota
	Composed
	EndComposed
	Executable
)

func (s State) String() string {
	switch s {
	case Unparsed:
		return "unparsed"
	case Composed:
		return "composed"
	case EndComposed:
		return "end-composed"
	case Executable:
		return "executable"
	default:
		return "unknown"
	}
}

// Stylesheet is a compiled stylesheet with all its imported and included
// modules. Once executable, it is never modified by a transform and can be
// shared by concurrent transforms.
type Stylesheet struct {
	fsys    fs.FS
	nodes   arena
	modules []*Module
	loading []string
	state   State

	Output *Output

	templates []*Template
	named     map[string]*Template
	index     *Index
	globals   []*Global
	byName    map[string]*Global
	attrSets  map[string][]*attributeSet
	formats   map[string]*DecimalFormat
	keys      map[string][]*keyDecl
	aliases   map[string]xml.NS
	spaces    []spaceRule
	functions map[string]*Function

	elements map[string]ElementHandler
	funcs    map[string]xpath.Func
}

func newStylesheet(fsys fs.FS) *Stylesheet {
	s := Stylesheet{
		fsys:     fsys,
		elements: make(map[string]ElementHandler),
		funcs:    make(map[string]xpath.Func),
	}
	s.reset()
	return &s
}

func (s *Stylesheet) reset() {
	s.Output = defaultOutput()
	s.templates = nil
	s.named = make(map[string]*Template)
	s.index = NewIndex()
	s.globals = nil
	s.byName = make(map[string]*Global)
	s.attrSets = make(map[string][]*attributeSet)
	s.formats = make(map[string]*DecimalFormat)
	s.keys = make(map[string][]*keyDecl)
	s.aliases = make(map[string]xml.NS)
	s.spaces = nil
	s.functions = make(map[string]*Function)
}

func (s *Stylesheet) State() State {
	return s.state
}

func (s *Stylesheet) Modules() []string {
	var list []string
	for _, m := range s.modules {
		list = append(list, m.URI)
	}
	return list
}

// Templates returns the template rules of the stylesheet, highest
// precedence first.
func (s *Stylesheet) Templates() []*Template {
	return slices.Clone(s.templates)
}

// Modes returns the names of the modes used by template rules. The default
// mode is the zero QName.
func (s *Stylesheet) Modes() []xml.QName {
	return s.index.Modes()
}

func (s *Stylesheet) Instruction(ix int) *Instruction {
	return &s.nodes[ix]
}

// Include adds the stylesheet at href to the main module as if it was
// included by it. The stylesheet must be recomposed before use.
func (s *Stylesheet) Include(href string) error {
	return s.extend(href, true)
}

// Import adds the stylesheet at href as the last import of the main module.
// The stylesheet must be recomposed before use.
func (s *Stylesheet) Import(href string) error {
	return s.extend(href, false)
}

func (s *Stylesheet) extend(href string, include bool) error {
	if len(s.modules) == 0 {
		return fmt.Errorf("%s: no main stylesheet: %w", href, ErrInvalid)
	}
	main := s.modules[0]
	ix, err := s.loadModule(href, main.URI, 0, include)
	if err != nil {
		return err
	}
	if include {
		main.Includes = append(main.Includes, ix)
	} else {
		main.Imports = append(main.Imports, ix)
	}
	s.state = Unparsed
	return nil
}

// Recompose rebuilds the declaration collections from every module, then
// composes and finalizes the stylesheet.
func (s *Stylesheet) Recompose() error {
	s.state = Unparsed
	if err := s.recompose(); err != nil {
		return err
	}
	if err := s.compose(); err != nil {
		return err
	}
	s.state = Composed
	if err := s.endCompose(); err != nil {
		return err
	}
	s.state = EndComposed
	s.index.finalize()
	s.state = Executable
	return nil
}

// precedence assigns an import precedence to each module. Imports are
// visited before their importer and includes share the precedence of the
// including module. It returns the group heads, highest precedence first.
func (s *Stylesheet) precedence() []int {
	var (
		post  []int
		seen  = make(map[int]bool)
		visit func(int)
	)
	visit = func(m int) {
		if seen[m] {
			return
		}
		seen[m] = true
		start := len(post)
		for _, i := range s.groupImports(m) {
			visit(i)
		}
		post = append(post, m)
		for _, x := range s.groupMembers(m) {
			s.modules[x].Precedence = len(post)
			s.modules[x].ImportLo = start + 1
		}
	}
	if len(s.modules) > 0 {
		visit(0)
	}
	slices.Reverse(post)
	return post
}

// groupMembers returns m and the modules it includes, directly or not.
func (s *Stylesheet) groupMembers(m int) []int {
	list := []int{m}
	for _, i := range s.modules[m].Includes {
		list = append(list, s.groupMembers(i)...)
	}
	return list
}

func (s *Stylesheet) groupImports(m int) []int {
	var list []int
	for _, x := range s.groupMembers(m) {
		list = append(list, s.modules[x].Imports...)
	}
	return list
}

func (s *Stylesheet) recompose() error {
	s.reset()
	var (
		groups = s.precedence()
		output = make(map[string]bool)
	)
	for _, g := range groups {
		for _, m := range s.groupMembers(g) {
			mod := s.modules[m]
			for c := range s.nodes.children(mod.Root) {
				if err := s.declare(c, mod, output); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *Stylesheet) declare(ix int, mod *Module, output map[string]bool) error {
	inst := &s.nodes[ix]
	inst.Template = nil
	inst.Global = nil
	inst.Function = nil
	switch inst.Kind {
	case KindOutput:
		return s.Output.apply(inst.Options, output)
	case KindAttributeSet:
		set := attributeSet{
			Body:       Body{Node: ix},
			Name:       inst.Name,
			Sets:       inst.Sets,
			Precedence: mod.Precedence,
		}
		key := inst.Name.ExpandedName()
		s.attrSets[key] = append(s.attrSets[key], &set)
	case KindDecimalFormat:
		key := inst.Name.ExpandedName()
		if _, ok := s.formats[key]; ok {
			break
		}
		df, err := decimalFormatFromOptions(inst.Options)
		if err != nil {
			return s.composeError(ix, err)
		}
		s.formats[key] = df
	case KindKey:
		key := keyDecl{
			Name:  inst.Name,
			Match: inst.Match,
			Use:   inst.Use,
			Node:  ix,
		}
		name := inst.Name.ExpandedName()
		s.keys[name] = append(s.keys[name], &key)
	case KindNamespaceAlias:
		from, ok1 := inst.option("stylesheet-uri")
		to, ok2 := inst.option("result-uri")
		if !ok1 || !ok2 {
			break
		}
		if _, ok := s.aliases[from]; !ok {
			s.aliases[from] = xml.NS{
				Prefix: inst.Options["result-prefix"],
				Uri:    to,
			}
		}
	case KindTemplate:
		t := Template{
			Body:        Body{Node: ix},
			Name:        inst.Name,
			Match:       inst.Match,
			Mode:        inst.Mode,
			Priority:    inst.Priority,
			HasPriority: inst.HasPriority,
			Module:      inst.Module,
			Precedence:  mod.Precedence,
			ImportLo:    mod.ImportLo,
			Order:       inst.Order,
		}
		inst.Template = &t
		s.templates = append(s.templates, &t)
		if !t.Name.Zero() {
			key := t.Name.ExpandedName()
			if other, ok := s.named[key]; !ok {
				s.named[key] = &t
			} else if other.Precedence == t.Precedence {
				return s.composeError(ix, fmt.Errorf("%s: template defined twice with the same precedence", t.Name.QualifiedName()))
			}
		}
		s.index.Register(&t)
	case KindVariable, KindParam:
		key := inst.Name.ExpandedName()
		if other, ok := s.byName[key]; ok {
			if other.Precedence == mod.Precedence {
				return s.composeError(ix, fmt.Errorf("%s: global variable defined twice", inst.Name.QualifiedName()))
			}
			break
		}
		g := Global{
			Body:       Body{Node: ix},
			Name:       inst.Name,
			Slot:       len(s.globals),
			Param:      inst.Kind == KindParam,
			Precedence: mod.Precedence,
		}
		inst.Global = &g
		s.globals = append(s.globals, &g)
		s.byName[key] = &g
	case KindStripSpace, KindPreserveSpace:
		rules, err := s.spaceRules(inst, mod.Precedence)
		if err != nil {
			return s.composeError(ix, err)
		}
		s.spaces = append(s.spaces, rules...)
	case KindFunction:
		key := inst.Name.ExpandedName()
		if _, ok := s.functions[key]; ok {
			break
		}
		fn := Function{
			Body:       Body{Node: ix},
			Name:       inst.Name,
			Precedence: mod.Precedence,
		}
		inst.Function = &fn
		s.functions[key] = &fn
	default:
	}
	return nil
}

// apply sets the attributes of an output declaration that were not set by
// a declaration of higher precedence.
func (o *Output) apply(options map[string]string, set map[string]bool) error {
	for name, value := range options {
		if set[name] && name != "cdata-section-elements" {
			continue
		}
		set[name] = true
		switch name {
		case "method":
			o.Method = value
		case "version":
			o.Version = value
		case "encoding":
			o.Encoding = value
		case "indent":
			o.Indent = value == "yes"
		case "omit-xml-declaration":
			o.OmitProlog = value == "yes"
		case "standalone":
			o.Standalone = value
		case "doctype-public":
			o.DoctypePublic = value
		case "doctype-system":
			o.DoctypeSystem = value
		case "media-type":
			o.MediaType = value
		case "cdata-section-elements":
			for _, n := range strings.Fields(value) {
				qn, err := xml.ParseName(n)
				if err != nil {
					return err
				}
				o.CDataElements = append(o.CDataElements, qn)
			}
		default:
		}
	}
	return nil
}

func (s *Stylesheet) composeError(ix int, err error) error {
	return s.newError(ComposeError, ix, err)
}

func (s *Stylesheet) newError(kind ErrorKind, ix int, err error) error {
	e := Error{
		Kind: kind,
		Err:  err,
	}
	if ix >= 0 && ix < len(s.nodes) {
		inst := &s.nodes[ix]
		e.Instruction = inst.QualifiedName()
		e.Order = inst.Order
		e.Module = s.modules[inst.Module].URI
	}
	return &e
}
