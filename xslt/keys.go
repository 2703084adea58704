package xslt

import (
	"fmt"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type keyTable map[string][]xml.Node

// keyIndex holds the tables built for each key and each document. Tables
// are built on the first call to key() for a given document.
type keyIndex struct {
	tables map[string]map[xml.Node]keyTable
}

func newKeyIndex() *keyIndex {
	return &keyIndex{
		tables: make(map[string]map[xml.Node]keyTable),
	}
}

func (c *Context) lookupKey(name xml.QName, root xml.Node, values []string) (xpath.NodeSet, error) {
	key := name.ExpandedName()
	decls, ok := c.sheet.keys[key]
	if !ok {
		return nil, fmt.Errorf("%s: key %w", name.QualifiedName(), ErrUndefined)
	}
	docs, ok := c.keys.tables[key]
	if !ok {
		docs = make(map[xml.Node]keyTable)
		c.keys.tables[key] = docs
	}
	table, ok := docs[root]
	if ok && table == nil {
		return nil, fmt.Errorf("%s: key %w", name.QualifiedName(), ErrSelfReference)
	}
	if !ok {
		// a nil table marks a key being built
		docs[root] = nil
		var err error
		if table, err = c.buildKey(decls, root); err != nil {
			delete(docs, root)
			return nil, err
		}
		docs[root] = table
	}
	var list []xml.Node
	for _, v := range values {
		list = append(list, table[v]...)
	}
	return xpath.NodeSet(xml.SortDocumentOrder(list)), nil
}

func (c *Context) buildKey(decls []*keyDecl, root xml.Node) (keyTable, error) {
	table := make(keyTable)
	var walk func(xml.Node) error
	walk = func(n xml.Node) error {
		for _, d := range decls {
			if err := c.indexNode(table, d, n); err != nil {
				return err
			}
		}
		if el, ok := n.(*xml.Element); ok {
			for _, a := range el.Attrs {
				for _, d := range decls {
					if err := c.indexNode(table, d, a); err != nil {
						return err
					}
				}
			}
		}
		for _, x := range xml.Children(n) {
			if err := walk(x); err != nil {
				return err
			}
		}
		return nil
	}
	return table, walk(root)
}

func (c *Context) indexNode(table keyTable, d *keyDecl, node xml.Node) error {
	sub := c.with(node, 1, 1)
	sub.Inst = d.Node
	sub.Template = nil
	ctx := sub.xpathContext()
	for _, p := range d.Match {
		ok, err := p.Match(ctx)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		v, err := sub.eval(d.Use)
		if err != nil {
			return err
		}
		if nodes, ok := v.(xpath.NodeSet); ok {
			for _, n := range nodes {
				table[n.Value()] = append(table[n.Value()], node)
			}
		} else {
			str := xpath.ToString(v)
			table[str] = append(table[str], node)
		}
		break
	}
	return nil
}
