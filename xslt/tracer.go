package xslt

import (
	"io"
	"log/slog"
	"os"
)

type Tracer interface {
	Enter(*Context)
	Leave(*Context)
	Error(*Context, error)
}

func NoopTracer() Tracer {
	return discardTracer{}
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ *Context) {}

func (_ discardTracer) Leave(_ *Context) {}

func (_ discardTracer) Error(_ *Context, _ error) {}

type stdioTracer struct {
	logger *slog.Logger
}

func Stdout() Tracer {
	return stdioTracer{
		logger: stdioLogger(os.Stdout),
	}
}

func Stderr() Tracer {
	return stdioTracer{
		logger: stdioLogger(os.Stderr),
	}
}

// LogTracer traces instructions with logger at the debug level.
func LogTracer(logger *slog.Logger) Tracer {
	return stdioTracer{
		logger: logger,
	}
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func traceArgs(ctx *Context) []any {
	args := []any{
		"instruction",
		ctx.Instruction().QualifiedName(),
		"depth",
		ctx.Depth,
		"frame",
		ctx.stack.Frame(),
	}
	if ctx.Node != nil {
		args = append(args, "node", ctx.Node.QualifiedName())
	}
	if !ctx.Mode.Zero() {
		args = append(args, "mode", ctx.Mode.QualifiedName())
	}
	return args
}

func (t stdioTracer) Enter(ctx *Context) {
	t.logger.Debug("start instruction", traceArgs(ctx)...)
}

func (t stdioTracer) Leave(ctx *Context) {
	t.logger.Debug("done instruction", traceArgs(ctx)...)
}

func (t stdioTracer) Error(ctx *Context, err error) {
	args := append(traceArgs(ctx), "err", err.Error())
	t.logger.Error("error while processing instruction", args...)
}
