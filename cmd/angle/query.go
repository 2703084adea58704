package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/midbel/angle/environ"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
	"github.com/midbel/cli"
)

var queryCmd = cli.Command{
	Name:    "query",
	Alias:   []string{"exec"},
	Summary: "evaluate an xpath expression against xml documents",
	Handler: &QueryCmd{},
}

type QueryCmd struct {
	Quiet      bool
	Text       bool
	Namespaces namespaceList
	ParserOptions
}

const queryInfo = "%s: query took %s - %d nodes matching %q"

func (q *QueryCmd) Run(args []string) error {
	set := flag.NewFlagSet("query", flag.ContinueOnError)
	set.BoolVar(&q.Quiet, "quiet", false, "suppress output - default is to print the result nodes")
	set.BoolVar(&q.Text, "text", false, "print only value of node")
	set.BoolVar(&q.StrictNS, "strict-ns", true, "strict namespace checking")
	set.Var(&q.Namespaces, "n", "namespace used by the expression given as prefix=uri")
	if err := set.Parse(args); err != nil {
		return err
	}
	query, err := xpath.Compile(set.Arg(0), q.Namespaces.Environ())
	if err != nil {
		return err
	}
	var (
		files = set.Args()[1:]
		found bool
	)
	if len(files) == 0 {
		files = append(files, "-")
	}
	for doc, err := range iterDocuments(files, q.ParserOptions) {
		if err != nil {
			printError(err)
			continue
		}
		now := time.Now()
		res, err := xpath.Eval(query, doc.Document, nil)
		if err != nil {
			return err
		}
		elapsed := time.Since(now)
		if nodes, ok := res.(xpath.NodeSet); ok {
			found = found || len(nodes) > 0
			if !q.Quiet {
				q.printNodes(nodes)
			}
			fmt.Fprintf(os.Stderr, queryInfo, doc.File, elapsed, len(nodes), set.Arg(0))
			fmt.Fprintln(os.Stderr)
			continue
		}
		found = found || xpath.ToBool(res)
		if !q.Quiet {
			fmt.Fprintln(os.Stdout, xpath.ToString(res))
		}
	}
	if !found {
		return errFail
	}
	return nil
}

func (q *QueryCmd) printNodes(nodes xpath.NodeSet) {
	for _, n := range nodes {
		if q.Text {
			fmt.Fprintln(os.Stdout, n.Value())
		} else {
			fmt.Fprintln(os.Stdout, xml.WriteNode(n))
		}
	}
}

type namespaceList struct {
	prefixes []string
	uris     []string
}

func (n *namespaceList) String() string {
	return fmt.Sprint(n.prefixes)
}

func (n *namespaceList) Set(str string) error {
	prefix, uri, err := splitParam(str)
	if err != nil {
		return err
	}
	n.prefixes = append(n.prefixes, prefix)
	n.uris = append(n.uris, uri)
	return nil
}

func (n *namespaceList) Environ() environ.Environ[string] {
	env := environ.Empty[string]()
	for i := range n.prefixes {
		env.Define(n.prefixes[i], n.uris[i])
	}
	return env
}
