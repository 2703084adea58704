package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/midbel/angle/xslt"
)

var (
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	faintStyle   = lipgloss.NewStyle().Faint(true)
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
)

// printer renders the diagnostics of a transform on a terminal.
type printer struct {
	w     io.Writer
	quiet bool
}

func stderrPrinter(quiet bool) printer {
	return printer{
		w:     os.Stderr,
		quiet: quiet,
	}
}

func (p printer) Report(d xslt.Diagnostic) {
	if p.quiet && !d.Fatal() {
		return
	}
	var label string
	switch d.Kind {
	case xslt.Message:
		label = messageStyle.Render("message")
	case xslt.Warning:
		label = warningStyle.Render("warning")
	default:
		label = errorStyle.Render(d.Kind.String())
	}
	var where []string
	if d.Module != "" {
		where = append(where, d.Module)
	}
	if d.Instruction != "" {
		where = append(where, d.Instruction)
	}
	if len(where) > 0 {
		fmt.Fprintf(p.w, "%s %s %s", label, faintStyle.Render(strings.Join(where, ":")), d.String())
	} else {
		fmt.Fprintf(p.w, "%s %s", label, d.String())
	}
	fmt.Fprintln(p.w)
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error"), err)
}

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}
