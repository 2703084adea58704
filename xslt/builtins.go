package xslt

import (
	"fmt"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

var xsltFunctions map[string]xpath.Func

func init() {
	xsltFunctions = map[string]xpath.Func{
		"current":             callCurrent,
		"key":                 callKey,
		"generate-id":         callGenerateId,
		"system-property":     callSystemProperty,
		"element-available":   callElementAvailable,
		"function-available":  callFunctionAvailable,
		"format-number":       callFormatNumber,
		"unparsed-entity-uri": callUnparsedEntityUri,
		"document":            callDocument,
	}
}

func contextOf(ctx xpath.Context) (*Context, error) {
	c, ok := ctx.Env.(*Context)
	if !ok {
		return nil, fmt.Errorf("function only available in a transform: %w", ErrUndefined)
	}
	return c, nil
}

func checkArgs(name string, args []xpath.Value, min, max int) error {
	if len(args) < min || len(args) > max {
		return fmt.Errorf("%s: %w", name, xpath.ErrArgument)
	}
	return nil
}

// expandName resolves a prefixed name given as a string against the
// namespaces in scope of the instruction being executed.
func (c *Context) expandName(str string) (xml.QName, error) {
	var list []xml.NS
	if inst := c.Instruction(); inst != nil {
		list = inst.Namespaces
	}
	return qname(str, namespacesOf(list))
}

func callCurrent(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("current", args, 0, 0); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	return xpath.NodeSet{c.Node}, nil
}

func callKey(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("key", args, 2, 2); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	name, err := c.expandName(xpath.ToString(args[0]))
	if err != nil {
		return nil, err
	}
	var values []string
	if nodes, ok := args[1].(xpath.NodeSet); ok {
		for _, n := range nodes {
			values = append(values, n.Value())
		}
	} else {
		values = append(values, xpath.ToString(args[1]))
	}
	return c.lookupKey(name, xml.Root(ctx.Node), values)
}

func callGenerateId(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("generate-id", args, 0, 1); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	node := ctx.Node
	if len(args) == 1 {
		nodes, err := xpath.ToNodeSet(args[0])
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return xpath.String(""), nil
		}
		node = nodes[0]
	}
	if id, ok := c.ids[node]; ok {
		return xpath.String(id), nil
	}
	id, err := c.namer.Next()
	if err != nil {
		return nil, err
	}
	c.ids[node] = id
	return xpath.String(id), nil
}

func callSystemProperty(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("system-property", args, 1, 1); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	qn, err := c.expandName(xpath.ToString(args[0]))
	if err != nil {
		return nil, err
	}
	if qn.Uri != xsltNamespaceUri {
		return xpath.String(""), nil
	}
	switch qn.Name {
	case "version":
		return xpath.Number(1.0), nil
	case "vendor":
		return xpath.String(XslVendor), nil
	case "vendor-url":
		return xpath.String(XslVendorUrl), nil
	default:
		return xpath.String(""), nil
	}
}

func callElementAvailable(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("element-available", args, 1, 1); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	qn, err := c.expandName(xpath.ToString(args[0]))
	if err != nil {
		return nil, err
	}
	return xpath.Boolean(c.sheet.elementAvailable(qn)), nil
}

func callFunctionAvailable(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("function-available", args, 1, 1); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	qn, err := c.expandName(xpath.ToString(args[0]))
	if err != nil {
		return nil, err
	}
	return xpath.Boolean(c.sheet.functionAvailable(qn)), nil
}

// callFormatNumber formats a number with a decimal format. A missing named
// format is reported and the default format used instead.
func callFormatNumber(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("format-number", args, 2, 3); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	df := c.sheet.formats[""]
	if len(args) == 3 {
		qn, err := c.expandName(xpath.ToString(args[2]))
		if err != nil {
			return nil, err
		}
		if df = c.sheet.formats[qn.ExpandedName()]; df == nil {
			c.warn("%s: decimal format not declared, using default", qn.QualifiedName())
		}
	}
	if df == nil {
		df = DefaultDecimalFormat()
	}
	var (
		num     = xpath.ToNumber(args[0])
		pattern = xpath.ToString(args[1])
	)
	str, err := df.Format(num, pattern)
	if err != nil {
		return nil, err
	}
	return xpath.String(str), nil
}

func callUnparsedEntityUri(_ xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("unparsed-entity-uri", args, 1, 1); err != nil {
		return nil, err
	}
	return xpath.String(""), nil
}

// callDocument loads the documents referenced by its first argument. A
// document that can not be loaded is reported and skipped.
func callDocument(ctx xpath.Context, args []xpath.Value) (xpath.Value, error) {
	if err := checkArgs("document", args, 1, 2); err != nil {
		return nil, err
	}
	c, err := contextOf(ctx)
	if err != nil {
		return nil, err
	}
	var hrefs []string
	if nodes, ok := args[0].(xpath.NodeSet); ok {
		for _, n := range nodes {
			hrefs = append(hrefs, n.Value())
		}
	} else {
		hrefs = append(hrefs, xpath.ToString(args[0]))
	}
	var list xpath.NodeSet
	for _, href := range hrefs {
		doc, err := c.document(href)
		if err != nil {
			c.report(Warning, err, "%s: document can not be loaded", href)
			continue
		}
		list = append(list, doc)
	}
	return xpath.NodeSet(xml.SortDocumentOrder(list)), nil
}

func (c *Context) document(href string) (*xml.Document, error) {
	var base string
	if inst := c.Instruction(); inst != nil {
		base = c.sheet.modules[inst.Module].URI
	}
	file := c.sheet.resolvePath(href, base)
	if doc, ok := c.docs[file]; ok {
		return doc, nil
	}
	doc, err := c.sheet.loadDocument(href, base)
	if err != nil {
		return nil, err
	}
	doc = c.sheet.strip(doc)
	c.docs[file] = doc
	return doc, nil
}
