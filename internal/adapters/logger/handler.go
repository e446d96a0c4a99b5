// Package logger implements a logging adapter using log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/ui/output"
	"go.trai.ch/concord/internal/ui/style"
)

// Attribute keys describing the store a record is about. The pretty handler
// lifts them out of the key=value list into a tag in front of the message.
const (
	AttrRole  = "role"
	AttrOp    = "op"
	AttrClass = "class"
)

// PrettyHandler is a slog.Handler that writes one colored line per record.
// Store attributes render as a "[role op class]" tag whose color follows
// the error class.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
}

// NewPrettyHandler creates a new PrettyHandler writing to the provided writer.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var (
		tag   storeTag
		pairs []string
	)
	add := func(prefix string, a slog.Attr) {
		if prefix == "" && tag.take(a) {
			return
		}
		pairs = append(pairs, qualify(prefix, a.Key)+"="+a.Value.String())
	}
	for _, a := range h.attrs {
		add("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		add(h.prefix, a)
		return true
	})

	var line strings.Builder
	color := style.Slate
	switch {
	case r.Level >= slog.LevelError:
		line.WriteString(style.Cross + " ")
		color = style.Red
	case r.Level >= slog.LevelWarn:
		line.WriteString(style.Warning + " ")
		color = style.Yellow
	}
	if !tag.empty() {
		line.WriteString(h.out.String(tag.String()).Foreground(termenv.RGBColor(string(tag.color(color)))).String())
		line.WriteString(" ")
	}
	line.WriteString(h.out.String(r.Message).Foreground(termenv.RGBColor(string(color))).String())
	if len(pairs) > 0 {
		line.WriteString(" ")
		line.WriteString(h.out.String(strings.Join(pairs, " ")).Foreground(termenv.RGBColor(string(style.Slate))).String())
	}
	line.WriteString("\n")

	_, err := h.out.WriteString(line.String())
	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
// Attributes are qualified with the groups open at this point.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = qualify(h.prefix, a.Key)
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup returns a new Handler that nests later attributes under name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = qualify(h.prefix, name)
	return &next
}

func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// storeTag collects the ungrouped store attributes of one record.
type storeTag struct {
	role, op, class string
}

func (t *storeTag) take(a slog.Attr) bool {
	switch a.Key {
	case AttrRole:
		t.role = a.Value.String()
	case AttrOp:
		t.op = a.Value.String()
	case AttrClass:
		t.class = a.Value.String()
	default:
		return false
	}
	return true
}

func (t storeTag) empty() bool {
	return t.role == "" && t.op == "" && t.class == ""
}

func (t storeTag) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{t.role, t.op, t.class} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (t storeTag) color(fallback lipgloss.Color) lipgloss.Color {
	switch t.class {
	case domain.ClassPermanent.String():
		return style.Red
	case domain.ClassTransient.String():
		return style.Yellow
	case domain.ClassStale.String(), domain.ClassUnavailable.String():
		return style.Slate
	default:
		return fallback
	}
}
