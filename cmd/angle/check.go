package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/midbel/angle/xslt"
	"github.com/midbel/cli"
)

var checkCmd = cli.Command{
	Name:    "check",
	Alias:   []string{"compile"},
	Summary: "compile stylesheets and report their errors",
	Handler: &CheckCmd{},
}

type CheckCmd struct {
	FailFast bool
	Verbose  bool
}

func (c *CheckCmd) Run(args []string) error {
	set := flag.NewFlagSet("check", flag.ContinueOnError)
	set.BoolVar(&c.FailFast, "fail-fast", false, "stop checking files as soon as first error is encountered")
	set.BoolVar(&c.Verbose, "v", false, "print modules, modes and templates of valid stylesheets")
	if err := set.Parse(args); err != nil {
		return err
	}
	var failed bool
	for _, file := range set.Args() {
		sheet, err := xslt.Load(file)
		if err != nil {
			failed = true
			printError(fmt.Errorf("%s: %w", file, err))
			if c.FailFast {
				return errFail
			}
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: stylesheet is %s", file, sheet.State())
		fmt.Fprintln(os.Stdout)
		if c.Verbose {
			printStylesheet(os.Stdout, sheet)
		}
	}
	if failed {
		return errFail
	}
	return nil
}

func printStylesheet(w io.Writer, sheet *xslt.Stylesheet) {
	printTitle(w, "modules")
	for _, m := range sheet.Modules() {
		fmt.Fprintln(w, "-", m)
	}
	printTitle(w, "modes")
	for _, m := range sheet.Modes() {
		name := m.QualifiedName()
		if m.Zero() {
			name = "#default"
		}
		fmt.Fprintln(w, "-", name)
	}
	printTitle(w, "templates")
	tab := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("template", "mode", "priority", "precedence")
	for _, t := range sheet.Templates() {
		var mode, priority string
		if !t.Mode.Zero() {
			mode = t.Mode.QualifiedName()
		}
		if t.HasPriority {
			priority = strconv.FormatFloat(t.Priority, 'g', -1, 64)
		}
		tab.Row(t.String(), mode, priority, strconv.Itoa(t.Precedence))
	}
	fmt.Fprintln(w, tab.String())
}
