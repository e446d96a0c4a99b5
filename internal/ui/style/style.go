// Package style provides shared UI styling primitives including brand colors
// and icons for consistent visual presentation across the CLI.
package style

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/concord/internal/core/domain"
)

// Brand Colors.
var (
	Iris   = lipgloss.Color("#8B5CF6")
	Slate  = lipgloss.Color("#667085")
	Green  = lipgloss.Color("#22A06B")
	Red    = lipgloss.Color("#D93025")
	Yellow = lipgloss.Color("#F59E0B")
	White  = lipgloss.Color("#FFFFFF")
)

// Icons.
const (
	Check   = "✓"
	Cross   = "✗"
	Warning = "!"
	Tilde   = "~"
	Dot     = "●"
	Circle  = "○"
)

// OutcomeColor maps a propagation outcome to the color it is printed in.
func OutcomeColor(o domain.Outcome) lipgloss.Color {
	switch o {
	case domain.OutcomeApplied, domain.OutcomeResolved, domain.OutcomeOK:
		return Green
	case domain.OutcomeFailed, domain.OutcomeShed, domain.OutcomeExhausted:
		return Red
	case domain.OutcomeRetry, domain.OutcomeDetected:
		return Yellow
	default:
		return Slate
	}
}

// OutcomeIcon maps a propagation outcome to its icon.
func OutcomeIcon(o domain.Outcome) string {
	switch o {
	case domain.OutcomeApplied, domain.OutcomeResolved, domain.OutcomeOK:
		return Check
	case domain.OutcomeFailed, domain.OutcomeShed, domain.OutcomeExhausted:
		return Cross
	case domain.OutcomeCoalesced, domain.OutcomeStale:
		return Tilde
	case domain.OutcomeQueued:
		return Circle
	default:
		return Dot
	}
}
