package xslt

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/midbel/angle/xml"
)

var (
	ErrTerminate             = errors.New("terminated by stylesheet")
	ErrSelfReference         = errors.New("variable is referencing itself")
	ErrNoTemplateRule        = errors.New("no current template rule")
	ErrAttributeSetRecursion = errors.New("attribute set used itself")
	ErrDuplicateResult       = errors.New("function result already produced")
	ErrUndefined             = errors.New("undefined")
	ErrChooseEmpty           = errors.New("choose requires at least one when")
	ErrExtension             = errors.New("extension failure")
	ErrNotExecutable         = errors.New("stylesheet not executable")
	ErrInvalid               = errors.New("invalid stylesheet")
	ErrCycle                 = errors.New("include cycle")
)

type ErrorKind int8

const (
	ComposeError ErrorKind = iota
	RuntimeError
	ExtensionError
	Warning
	Message
)

func (k ErrorKind) String() string {
	switch k {
	case ComposeError:
		return "compose"
	case RuntimeError:
		return "runtime"
	case ExtensionError:
		return "extension"
	case Warning:
		return "warning"
	case Message:
		return "message"
	default:
		return "unknown"
	}
}

// Error reports a failure together with the instruction that caused it.
type Error struct {
	Kind        ErrorKind
	Instruction string
	Module      string
	Order       int
	Err         error
}

func (e *Error) Error() string {
	var str strings.Builder
	str.WriteString(e.Kind.String())
	if e.Module != "" {
		str.WriteString(" ")
		str.WriteString(e.Module)
	}
	if e.Instruction != "" {
		str.WriteString(" (")
		str.WriteString(e.Instruction)
		str.WriteString(")")
	}
	str.WriteString(": ")
	str.WriteString(e.Err.Error())
	return str.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diagnostic is what a Listener receives for every warning, message and
// fatal error.
type Diagnostic struct {
	Kind        ErrorKind
	Instruction string
	Module      string
	Node        xml.Node
	Message     string
	Args        []any
	Err         error
}

func (d Diagnostic) Fatal() bool {
	return d.Kind != Warning && d.Kind != Message
}

func (d Diagnostic) String() string {
	msg := d.Message
	if len(d.Args) > 0 {
		msg = fmt.Sprintf(msg, d.Args...)
	}
	if msg == "" && d.Err != nil {
		msg = d.Err.Error()
	}
	return msg
}

type Listener interface {
	Report(Diagnostic)
}

type ListenerFunc func(Diagnostic)

func (f ListenerFunc) Report(d Diagnostic) {
	f(d)
}

func discardListener() Listener {
	return ListenerFunc(func(_ Diagnostic) {})
}

type logListener struct {
	logger *slog.Logger
}

// LogListener writes diagnostics to logger.
func LogListener(logger *slog.Logger) Listener {
	return logListener{
		logger: logger,
	}
}

func (l logListener) Report(d Diagnostic) {
	args := []any{
		"kind", d.Kind.String(),
	}
	if d.Instruction != "" {
		args = append(args, "instruction", d.Instruction)
	}
	if d.Module != "" {
		args = append(args, "module", d.Module)
	}
	if d.Node != nil {
		args = append(args, "node", d.Node.QualifiedName())
	}
	switch d.Kind {
	case Message:
		l.logger.Info(d.String(), args...)
	case Warning:
		l.logger.Warn(d.String(), args...)
	default:
		l.logger.Error(d.String(), args...)
	}
}

// Collector keeps every diagnostic it receives. It can be shared by
// concurrent transforms.
type Collector struct {
	mu          sync.Mutex
	Diagnostics []Diagnostic
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Diagnostics = append(c.Diagnostics, d)
}

func (c *Collector) Filter(kind ErrorKind) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var list []Diagnostic
	for _, d := range c.Diagnostics {
		if d.Kind == kind {
			list = append(list, d)
		}
	}
	return list
}
