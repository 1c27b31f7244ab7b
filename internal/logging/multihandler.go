package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// MultiHandler sends each record to every sink enabled for its level.
// A failing sink does not stop delivery to the others; Handle reports all
// failures joined.
type MultiHandler struct {
	sinks []slog.Handler
}

// NewMultiHandler drops nil sinks.
func NewMultiHandler(sinks ...slog.Handler) *MultiHandler {
	return &MultiHandler{sinks: slices.DeleteFunc(slices.Clone(sinks), func(h slog.Handler) bool {
		return h == nil
	})}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(m.sinks, func(h slog.Handler) bool {
		return h.Enabled(ctx, level)
	})
}

func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.sinks {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) derive(f func(slog.Handler) slog.Handler) *MultiHandler {
	sinks := make([]slog.Handler, len(m.sinks))
	for i, h := range m.sinks {
		sinks[i] = f(h)
	}
	return &MultiHandler{sinks: sinks}
}
