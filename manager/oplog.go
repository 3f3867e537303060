package manager

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type runIDKey struct{}

// ContextWithRunID returns a context carrying the provisioning run ID.
func ContextWithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID carried by ctx, or uuid.Nil.
func RunIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(runIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// runIDHandler wraps a slog.Handler to add run_id from the context to
// each record. Use with InfoContext, WarnContext, etc.
type runIDHandler struct {
	slog.Handler
}

func (h runIDHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RunIDFromContext(ctx); id != uuid.Nil {
		r.AddAttrs(slog.String("run_id", id.String()))
	}
	return h.Handler.Handle(ctx, r)
}

func (h runIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return runIDHandler{h.Handler.WithAttrs(attrs)}
}

func (h runIDHandler) WithGroup(name string) slog.Handler {
	return runIDHandler{h.Handler.WithGroup(name)}
}

// WithRunIDHandler wraps a logger's handler to extract run_id from
// context. Wrapping an already wrapped logger is a no-op.
func WithRunIDHandler(logger *slog.Logger) *slog.Logger {
	if _, ok := logger.Handler().(runIDHandler); ok {
		return logger
	}
	return slog.New(runIDHandler{logger.Handler()})
}
