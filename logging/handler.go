package logging

import (
	"context"
	"log/slog"
)

// componentFilter drops records below the level its spec assigns to
// the component named by the most recent "component" attribute.
type componentFilter struct {
	next      slog.Handler
	spec      Spec
	component string
}

// NewHandler wraps next with component filtering. next should accept
// every level down to LevelTrace.
func NewHandler(next slog.Handler, spec Spec) slog.Handler {
	return &componentFilter{next: next, spec: spec}
}

func (h *componentFilter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.spec.Level(h.component)
}

func (h *componentFilter) Handle(ctx context.Context, r slog.Record) error {
	if !h.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *componentFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	for _, a := range attrs {
		if a.Key == "component" {
			c.component = a.Value.String()
		}
	}
	return &c
}

func (h *componentFilter) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}
