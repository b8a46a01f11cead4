package ui

import (
	"context"
	"log/slog"
	"strings"

	"dsrec/internal/logging"
)

// AlertHandler forwards warnings and errors to the bus as alert events so the
// operator sees them without tailing the log.
type AlertHandler struct {
	bus   *Bus
	level slog.Leveler
	attrs []slog.Attr
}

// NewAlertHandler returns a handler publishing records at or above level.
func NewAlertHandler(bus *Bus, level slog.Leveler) *AlertHandler {
	if level == nil {
		level = slog.LevelWarn
	}
	return &AlertHandler{bus: bus, level: level}
}

func (h *AlertHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *AlertHandler) Handle(_ context.Context, record slog.Record) error {
	var b strings.Builder
	b.WriteString(record.Level.String())
	b.WriteString(" ")
	if component := h.component(record); component != "" {
		b.WriteString("[")
		b.WriteString(component)
		b.WriteString("] ")
	}
	b.WriteString(record.Message)
	h.bus.Alert(b.String())
	return nil
}

func (h *AlertHandler) component(record slog.Record) string {
	var component string
	for _, attr := range h.attrs {
		if attr.Key == logging.FieldComponent {
			component = attr.Value.String()
		}
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == logging.FieldComponent {
			component = attr.Value.String()
			return false
		}
		return true
	})
	return component
}

func (h *AlertHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *AlertHandler) WithGroup(string) slog.Handler { return h }
