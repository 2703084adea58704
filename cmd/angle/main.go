package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/midbel/cli"
)

var errFail = errors.New("fail")

var (
	summary = "angle transforms xml documents with xslt stylesheets"
	help    = `angle compiles xslt 1.0 stylesheets (with exslt common and functions)
and applies them to xml documents.

commands:
  transform  apply a stylesheet to one or more documents
  watch      apply a stylesheet again each time a file changes
  check      compile stylesheets and report their errors
  query      evaluate an xpath expression
  format     rewrite an xml document`
)

func main() {
	var (
		set  = cli.NewFlagSet("angle")
		root = prepare()
	)
	root.SetSummary(summary)
	root.SetHelp(help)
	if err := set.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			root.Help()
			os.Exit(2)
		}
	}
	err := root.Execute(set.Args())
	if err != nil {
		if s, ok := err.(cli.SuggestionError); ok && len(s.Others) > 0 {
			fmt.Fprintln(os.Stderr, "similar command(s)")
			for _, n := range s.Others {
				fmt.Fprintln(os.Stderr, "-", n)
			}
		}
		if !errors.Is(err, errFail) {
			printError(err)
		}
		os.Exit(1)
	}
}

func prepare() *cli.CommandTrie {
	root := cli.New()
	root.Register([]string{"transform"}, &transformCmd)
	root.Register([]string{"watch"}, &watchCmd)
	root.Register([]string{"check"}, &checkCmd)
	root.Register([]string{"query"}, &queryCmd)
	root.Register([]string{"format"}, &formatCmd)

	return root
}
