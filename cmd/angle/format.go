package main

import (
	"flag"

	"github.com/midbel/cli"
)

var formatCmd = cli.Command{
	Name:    "format",
	Alias:   []string{"fmt"},
	Summary: "rewrite an xml document",
	Handler: &FormatCmd{},
}

type FormatCmd struct {
	OutFile string
	WriterOptions
	ParserOptions
}

func (f *FormatCmd) Run(args []string) error {
	set := flag.NewFlagSet("format", flag.ContinueOnError)

	set.BoolVar(&f.NoProlog, "no-prolog", false, "don't write the xml prolog into the output document")
	set.BoolVar(&f.NoComment, "no-comment", false, "dont't write the comment present in the input document")
	set.BoolVar(&f.Compact, "compact", false, "write compact output")
	set.BoolVar(&f.StrictNS, "strict-ns", true, "strict namespace checking")
	set.BoolVar(&f.TrimSpace, "trim-space", true, "trim spaces around text nodes")
	set.BoolVar(&f.OmitEmpty, "omit-empty", false, "drop whitespace only text nodes")
	set.StringVar(&f.OutFile, "f", "", "specify the path to the file where the document will be written")

	if err := set.Parse(args); err != nil {
		return err
	}

	doc, err := parseDocument(set.Arg(0), f.ParserOptions)
	if err != nil {
		return err
	}
	return writeDocument(doc, f.OutFile, f.WriterOptions)
}
