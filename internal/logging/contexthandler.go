package logging

import (
	"context"
	"log/slog"
)

// RaceSource reports where the simulation currently is. RaceID is empty
// until a race is loaded.
type RaceSource interface {
	RaceID() string
	Tick() uint
}

// RaceHandler stamps every record with the current race id and tick.
// Records logged before a race is loaded pass through unchanged.
type RaceHandler struct {
	inner  slog.Handler
	source RaceSource
}

// NewRaceHandler wraps inner. A nil source disables stamping.
func NewRaceHandler(inner slog.Handler, source RaceSource) *RaceHandler {
	return &RaceHandler{inner: inner, source: source}
}

func (h *RaceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RaceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.source == nil {
		return h.inner.Handle(ctx, r)
	}
	id := h.source.RaceID()
	if id == "" {
		return h.inner.Handle(ctx, r)
	}
	// Keep an explicit race attribute from the call site.
	explicit := false
	r.Attrs(func(a slog.Attr) bool {
		explicit = a.Key == "race"
		return !explicit
	})
	if !explicit {
		r.AddAttrs(slog.String("race", id))
	}
	r.AddAttrs(slog.Uint64("tick", uint64(h.source.Tick())))
	return h.inner.Handle(ctx, r)
}

func (h *RaceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &RaceHandler{inner: h.inner.WithAttrs(attrs), source: h.source}
}

func (h *RaceHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &RaceHandler{inner: h.inner.WithGroup(name), source: h.source}
}
