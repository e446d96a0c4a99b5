package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/ui/style"
)

// Printer writes styled lines to a writer.
type Printer struct {
	w     io.Writer
	ok    lipgloss.Style
	fail  lipgloss.Style
	warn  lipgloss.Style
	muted lipgloss.Style
	label lipgloss.Style
	r     *lipgloss.Renderer
}

// NewPrinter creates a Printer for w using the given color profile.
func NewPrinter(w io.Writer, profile termenv.Profile) *Printer {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return &Printer{
		w:     w,
		r:     r,
		ok:    r.NewStyle().Foreground(style.Green).Bold(true),
		fail:  r.NewStyle().Foreground(style.Red).Bold(true),
		warn:  r.NewStyle().Foreground(style.Yellow).Bold(true),
		muted: r.NewStyle().Foreground(style.Slate),
		label: r.NewStyle().Foreground(style.Iris),
	}
}

// Success prints a line prefixed with a check mark.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.ok.Render(style.Check), format, args...)
}

// Failure prints a line prefixed with a cross.
func (p *Printer) Failure(format string, args ...any) {
	p.line(p.fail.Render(style.Cross), format, args...)
}

// Warn prints a line prefixed with an exclamation mark.
func (p *Printer) Warn(format string, args ...any) {
	p.line(p.warn.Render(style.Warning), format, args...)
}

func (p *Printer) line(icon, format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Field prints an indented "label value" pair, labels padded to width.
func (p *Printer) Field(width int, label, value string) {
	_, _ = fmt.Fprintf(p.w, "  %s %s\n", p.label.Render(pad(label+":", width+1)), value)
}

// Outcome prints the outcome one role reported.
func (p *Printer) Outcome(role domain.StoreRole, o domain.Outcome) {
	s := p.r.NewStyle().Foreground(style.OutcomeColor(o))
	_, _ = fmt.Fprintf(p.w, "  %s %s %s\n", s.Render(style.OutcomeIcon(o)), pad(string(role), 10), s.Render(string(o)))
}

// Text writes s verbatim.
func (p *Printer) Text(s string) {
	_, _ = io.WriteString(p.w, s)
}

// Table prints rows in columns. Widths are measured before styling so
// escape sequences never skew alignment.
func (p *Printer) Table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = p.muted.Render(pad(strings.ToUpper(h), widths[i]))
	}
	p.row(cells)
	for _, row := range rows {
		for i := range cells {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i])
		}
		p.row(cells)
	}
}

func (p *Printer) row(cells []string) {
	_, _ = fmt.Fprintln(p.w, strings.TrimRight(strings.Join(cells, "  "), " "))
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
