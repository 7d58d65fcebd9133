package logging

import (
	"context"
	"log/slog"
)

// CapturingHandler wraps an slog.Handler, storing every record in a
// LogCollector under one action name before passing it through.
type CapturingHandler struct {
	underlying slog.Handler
	collector  *LogCollector
	action     string
	attrs      []slog.Attr
}

// NewCapturingHandler creates a handler that records into collector under
// action and forwards to underlying.
func NewCapturingHandler(underlying slog.Handler, collector *LogCollector, action string) *CapturingHandler {
	return &CapturingHandler{
		underlying: underlying,
		collector:  collector,
		action:     action,
	}
}

// Enabled always returns true so debug records are captured even when the
// underlying handler filters them from its output.
func (h *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle captures the record, then hands it to the underlying handler if
// that handler accepts the level.
func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Time:       r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: make(map[string]any, r.NumAttrs()+len(h.attrs)),
	}
	for _, attr := range h.attrs {
		entry.Attributes[attr.Key] = resolveValue(attr.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attributes[a.Key] = resolveValue(a.Value)
		return true
	})
	h.collector.AddLog(h.action, entry)

	if !h.underlying.Enabled(ctx, r.Level) {
		return nil
	}
	return h.underlying.Handle(ctx, r)
}

// WithAttrs returns a CapturingHandler, not the underlying handler, so that
// loggers derived with .With() keep capturing.
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &CapturingHandler{
		underlying: h.underlying.WithAttrs(attrs),
		collector:  h.collector,
		action:     h.action,
		attrs:      merged,
	}
}

// WithGroup returns a CapturingHandler whose output is grouped. Captured
// entries stay flat.
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		underlying: h.underlying.WithGroup(name),
		collector:  h.collector,
		action:     h.action,
		attrs:      h.attrs,
	}
}

// resolveValue converts a slog.Value into something encoding/json can write.
func resolveValue(v slog.Value) any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}
