package log

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// FormatterHandler is a slog.Handler that converts records into LogEntry
// values and writes them through a LogFormatter, one per line. Groups are
// flattened into dotted keys.
type FormatterHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	format LogFormatter
	attrs  []slog.Attr
	prefix string
}

// NewFormatterHandler creates a handler writing to w.
func NewFormatterHandler(w io.Writer, level slog.Leveler, f LogFormatter) *FormatterHandler {
	if f == nil {
		f = &TextFormatter{}
	}
	return &FormatterHandler{mu: new(sync.Mutex), w: w, level: level, format: f}
}

// Enabled implements slog.Handler.
func (h *FormatterHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *FormatterHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]interface{}, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		addField(fields, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addField(fields, h.prefix, a)
		return true
	})
	line := h.format.Format(LogEntry{
		Timestamp: r.Time,
		Level:     levelFromSlog(r.Level),
		Message:   r.Message,
		Fields:    fields,
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

// WithAttrs implements slog.Handler.
func (h *FormatterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cpy := *h
	cpy.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	cpy.attrs = append(cpy.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		cpy.attrs = append(cpy.attrs, a)
	}
	return &cpy
}

// WithGroup implements slog.Handler.
func (h *FormatterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cpy := *h
	cpy.prefix = h.prefix + name + "."
	return &cpy
}

func addField(fields map[string]interface{}, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addField(fields, p, ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	fields[prefix+a.Key] = v.Any()
}
