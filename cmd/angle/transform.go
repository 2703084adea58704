package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
	"github.com/midbel/cli"
)

var transformCmd = cli.Command{
	Name:    "transform",
	Alias:   []string{"xslt"},
	Summary: "apply transformation defined in xslt to xml documents",
	Handler: &TransformCmd{},
}

type TransformCmd struct {
	Mode     string
	Template string
	Trace    bool
	Quiet    bool
	File     string
	Dir      string
	Params   ParamSet
	ParserOptions
}

func (c *TransformCmd) Run(args []string) error {
	set := flag.NewFlagSet("transform", flag.ContinueOnError)
	c.flags(set)
	set.StringVar(&c.File, "f", "", "output file")
	set.StringVar(&c.Dir, "d", "", "output directory when transforming multiple documents")
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() < 1 {
		return fmt.Errorf("stylesheet not given")
	}
	sheet, err := xslt.Load(set.Arg(0))
	if err != nil {
		return err
	}
	files := set.Args()[1:]
	if len(files) <= 1 {
		var file string
		if len(files) == 1 {
			file = files[0]
		}
		return c.transformOne(sheet, file)
	}
	return c.transformAll(sheet, files)
}

func (c *TransformCmd) flags(set *flag.FlagSet) {
	set.StringVar(&c.Mode, "m", "", "initial mode")
	set.StringVar(&c.Template, "t", "", "initial named template")
	set.BoolVar(&c.Trace, "trace", false, "trace instructions being executed")
	set.BoolVar(&c.Quiet, "q", false, "only report fatal errors")
	set.BoolVar(&c.TrimSpace, "trim-space", false, "trim spaces around text nodes")
	set.BoolVar(&c.StrictNS, "strict-ns", true, "strict namespace checking")
	set.Var(&c.Params, "p", "stylesheet parameter given as name=value")
	set.Func("params", "yaml file with stylesheet parameters", c.Params.Load)
}

func (c *TransformCmd) options() []xslt.Option {
	options := []xslt.Option{
		xslt.WithListener(stderrPrinter(c.Quiet)),
	}
	if c.Mode != "" {
		options = append(options, xslt.WithMode(c.Mode))
	}
	if c.Template != "" {
		options = append(options, xslt.WithTemplate(c.Template))
	}
	if c.Trace {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		options = append(options, xslt.WithTracer(xslt.LogTracer(logger)))
	}
	return append(options, c.Params.Options()...)
}

func (c *TransformCmd) transformOne(sheet *xslt.Stylesheet, file string) error {
	var (
		doc *xml.Document
		err error
	)
	if file != "" || c.Template == "" {
		doc, err = parseDocument(file, c.ParserOptions)
		if err != nil {
			return err
		}
	}
	w, err := createOutput(c.File)
	if err != nil {
		return err
	}
	defer w.Close()

	err = sheet.Generate(w, doc, c.options()...)
	if errors.Is(err, xslt.ErrTerminate) {
		return errFail
	}
	return err
}

func (c *TransformCmd) transformAll(sheet *xslt.Stylesheet, files []string) error {
	var (
		docs  []*xml.Document
		names []string
	)
	for doc, err := range iterDocuments(files, c.ParserOptions) {
		if err != nil {
			if !errors.Is(err, ErrDocument) {
				return err
			}
			printError(err)
			continue
		}
		docs = append(docs, doc.Document)
		names = append(names, doc.File)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var (
		spin    = NewSpinner()
		results []*xml.Document
	)
	spin.SetMessage(fmt.Sprintf("transforming %d documents", len(docs)))
	err := spin.Run(func() error {
		var err error
		results, err = xslt.TransformAll(ctx, sheet, docs, c.options()...)
		return err
	})
	if err != nil {
		return err
	}
	for i, res := range results {
		if err := writeResult(sheet, res, outputName(names[i], c.Dir, sheet.Output.Method)); err != nil {
			return err
		}
	}
	return nil
}

func outputName(file, dir, method string) string {
	if dir == "" {
		return "-"
	}
	var (
		base = filepath.Base(file)
		ext  string
	)
	switch method {
	case xslt.MethodHTML:
		ext = ".html"
	case xslt.MethodText:
		ext = ".txt"
	default:
		ext = ".xml"
	}
	return filepath.Join(dir, strings.TrimSuffix(base, filepath.Ext(base))+ext)
}

func writeResult(sheet *xslt.Stylesheet, doc *xml.Document, file string) error {
	w, err := createOutput(file)
	if err != nil {
		return err
	}
	defer w.Close()

	return sheet.Serialize(w, doc)
}
