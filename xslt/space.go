package xslt

import (
	"strings"

	"github.com/midbel/angle/xml"
)

// spaceRule is one name test of xsl:strip-space or xsl:preserve-space.
type spaceRule struct {
	Uri        string
	Name       string
	Strip      bool
	Precedence int
	Priority   float64
}

func (r spaceRule) match(el *xml.Element) bool {
	if r.Name == "*" {
		return r.Uri == "" || r.Uri == el.Uri
	}
	return r.Uri == el.Uri && r.Name == el.Name
}

func (s *Stylesheet) spaceRules(inst *Instruction, prec int) ([]spaceRule, error) {
	var (
		list []spaceRule
		env  = namespacesOf(inst.Namespaces)
	)
	for _, name := range strings.Fields(inst.Options["elements"]) {
		r := spaceRule{
			Strip:      inst.Kind == KindStripSpace,
			Precedence: prec,
			Priority:   0,
		}
		switch prefix, local, ok := strings.Cut(name, ":"); {
		case name == "*":
			r.Name = "*"
			r.Priority = -0.5
		case ok && local == "*":
			uri, err := env.Resolve(prefix)
			if err != nil {
				return nil, err
			}
			r.Name, r.Uri = "*", uri
			r.Priority = -0.25
		default:
			qn, err := qname(name, env)
			if err != nil {
				return nil, err
			}
			r.Name, r.Uri = qn.Name, qn.Uri
		}
		list = append(list, r)
	}
	return list, nil
}

// stripSpace reports whether whitespace only text children of el are
// removed. The matching rule of highest precedence then priority wins.
func (s *Stylesheet) stripSpace(el *xml.Element) bool {
	var best *spaceRule
	for i, r := range s.spaces {
		if !r.match(el) {
			continue
		}
		if best == nil || r.Precedence > best.Precedence || (r.Precedence == best.Precedence && r.Priority > best.Priority) {
			best = &s.spaces[i]
		}
	}
	return best != nil && best.Strip
}

// strip returns doc when the stylesheet has no strip-space rule, else a copy
// of doc without the whitespace only text nodes selected by the rules.
func (s *Stylesheet) strip(doc *xml.Document) *xml.Document {
	if !s.hasStripRules() {
		return doc
	}
	clone := xml.Clone(doc).(*xml.Document)
	for _, n := range clone.Nodes {
		if el, ok := n.(*xml.Element); ok {
			s.stripElement(el, false)
		}
	}
	return clone
}

func (s *Stylesheet) hasStripRules() bool {
	for _, r := range s.spaces {
		if r.Strip {
			return true
		}
	}
	return false
}

func (s *Stylesheet) stripElement(el *xml.Element, preserve bool) {
	if v, ok := spaceAttr(el); ok {
		preserve = v == "preserve"
	}
	strip := !preserve && s.stripSpace(el)
	nodes := el.Nodes[:0]
	for _, n := range el.Nodes {
		switch n := n.(type) {
		case *xml.Text:
			if strip && !n.CData && strings.TrimSpace(n.Content) == "" {
				continue
			}
		case *xml.Element:
			s.stripElement(n, preserve)
		}
		nodes = append(nodes, n)
	}
	el.Nodes = nil
	for _, n := range nodes {
		el.Append(n)
	}
}

func spaceAttr(el *xml.Element) (string, bool) {
	for _, a := range el.Attrs {
		if a.Name == "space" && a.Uri == xml.NamespaceXML {
			return a.Datum, true
		}
	}
	return "", false
}
