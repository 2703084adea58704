package xslt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
	"github.com/midbel/distance"
	"golang.org/x/sync/errgroup"
)

type config struct {
	params   map[string]xpath.Value
	mode     xml.QName
	template xml.QName
	listener Listener
	tracer   Tracer
	handler  Handler
	ctx      context.Context
}

func defaultConfig() *config {
	return &config{
		params:   make(map[string]xpath.Value),
		listener: discardListener(),
		tracer:   NoopTracer(),
		handler:  discardHandler{},
		ctx:      context.Background(),
	}
}

type Option func(*config)

// WithParam sets the value of a top level xsl:param. Names in another
// namespace are given as {uri}local.
func WithParam(name string, value xpath.Value) Option {
	return func(c *config) {
		c.params[clarkName(name).ExpandedName()] = value
	}
}

func WithStringParam(name, value string) Option {
	return WithParam(name, xpath.String(value))
}

// WithMode selects the mode used to process the root node.
func WithMode(mode string) Option {
	return func(c *config) {
		c.mode = clarkName(mode)
	}
}

// WithTemplate starts the transform with the named template instead of
// applying templates to the root node.
func WithTemplate(name string) Option {
	return func(c *config) {
		c.template = clarkName(name)
	}
}

func WithListener(l Listener) Option {
	return func(c *config) {
		if l != nil {
			c.listener = l
		}
	}
}

func WithTracer(t Tracer) Option {
	return func(c *config) {
		if t != nil {
			c.tracer = t
		}
	}
}

func WithHandler(h Handler) Option {
	return func(c *config) {
		if h != nil {
			c.handler = h
		}
	}
}

// WithContext makes the transform stop when ctx is done.
func WithContext(ctx context.Context) Option {
	return func(c *config) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

func clarkName(str string) xml.QName {
	str = strings.TrimSpace(str)
	if rest, ok := strings.CutPrefix(str, "{"); ok {
		if uri, local, ok := strings.Cut(rest, "}"); ok {
			return xml.ExpandedName(local, "", uri)
		}
	}
	return xml.LocalName(str)
}

// Transform applies the stylesheet to doc and returns the result tree.
func (s *Stylesheet) Transform(doc *xml.Document, opts ...Option) (*xml.Document, error) {
	b := NewBuilder()
	opts = slices.Concat(opts, []Option{WithHandler(b)})
	if err := s.Execute(doc, opts...); err != nil {
		return nil, err
	}
	return b.Document(), nil
}

// Generate applies the stylesheet to doc and serializes the result to w
// according to the output declarations of the stylesheet.
func (s *Stylesheet) Generate(w io.Writer, doc *xml.Document, opts ...Option) error {
	opts = slices.Concat(opts, []Option{WithHandler(NewWriter(w, s.Output))})
	return s.Execute(doc, opts...)
}

// Serialize writes a result tree built by Transform to w according to the
// output declarations of the stylesheet.
func (s *Stylesheet) Serialize(w io.Writer, doc *xml.Document) error {
	ws := NewWriter(w, s.Output)
	if err := copyNode(ws, doc); err != nil {
		return err
	}
	return ws.Flush()
}

// Execute applies the stylesheet to doc and sends the result to the handler
// given with WithHandler. The document given is never modified.
func (s *Stylesheet) Execute(doc *xml.Document, opts ...Option) error {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	if s.state != Executable {
		return fmt.Errorf("%s: %w", s.state, ErrNotExecutable)
	}
	if err := s.checkStart(cfg); err != nil {
		return err
	}
	if doc == nil {
		doc = xml.NewDocument()
	}
	var (
		root = s.strip(doc)
		tr   = newTransform(s, root, cfg)
	)
	for name, v := range cfg.params {
		g, ok := s.byName[name]
		if !ok || !g.Param {
			continue
		}
		tr.stack.BindGlobal(g.Slot, v)
	}
	ctx := Context{
		transform: tr,
		Node:      root,
		Position:  1,
		Size:      1,
		Handler:   cfg.handler,
		Mode:      cfg.mode,
		Inst:      none,
	}
	var err error
	if !cfg.template.Zero() {
		err = ctx.call(s.named[cfg.template.ExpandedName()], nil, nil)
	} else {
		err = ctx.applyTemplates([]xml.Node{root}, cfg.mode, nil)
	}
	if err != nil {
		s.reportFatal(cfg.listener, err)
		return err
	}
	return cfg.handler.Flush()
}

func (s *Stylesheet) checkStart(cfg *config) error {
	if !cfg.template.Zero() {
		if _, ok := s.named[cfg.template.ExpandedName()]; ok {
			return nil
		}
		var names []string
		for _, t := range s.named {
			names = append(names, t.Name.ExpandedName())
		}
		return suggest(fmt.Errorf("%s: template %w", cfg.template.ExpandedName(), ErrUndefined), cfg.template.ExpandedName(), names)
	}
	if cfg.mode.Zero() {
		return nil
	}
	var names []string
	for _, m := range s.index.Modes() {
		if m.Equal(cfg.mode) {
			return nil
		}
		if !m.Zero() {
			names = append(names, m.ExpandedName())
		}
	}
	return suggest(fmt.Errorf("%s: mode %w", cfg.mode.ExpandedName(), ErrUndefined), cfg.mode.ExpandedName(), names)
}

func suggest(err error, name string, names []string) error {
	slices.Sort(names)
	if others := distance.Levenshtein(name, names); len(others) > 0 {
		err = fmt.Errorf("%w (did you mean %s?)", err, strings.Join(others, ", "))
	}
	return err
}

func (s *Stylesheet) reportFatal(l Listener, err error) {
	d := Diagnostic{
		Kind: RuntimeError,
		Err:  err,
	}
	var e *Error
	if errors.As(err, &e) {
		d.Kind = e.Kind
		d.Instruction = e.Instruction
		d.Module = e.Module
	}
	l.Report(d)
}

// TransformAll applies the stylesheet to every document concurrently. The
// results are in the order of docs. The first failure cancels the other
// transforms.
func TransformAll(ctx context.Context, s *Stylesheet, docs []*xml.Document, opts ...Option) ([]*xml.Document, error) {
	var (
		res       = make([]*xml.Document, len(docs))
		grp, gctx = errgroup.WithContext(ctx)
	)
	grp.SetLimit(runtime.GOMAXPROCS(0))
	for i, doc := range docs {
		grp.Go(func() error {
			list := slices.Concat(opts, []Option{WithContext(gctx)})
			out, err := s.Transform(doc, list...)
			if err != nil {
				return err
			}
			res[i] = out
			return nil
		})
	}
	return res, grp.Wait()
}
