package tui

import (
	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/concord/internal/ui/style"
)

const (
	// countersHeight is the number of lines in the counters pane.
	countersHeight = 15
	// chromeHeight covers the title bar, the list header and the footer.
	chromeHeight = 4
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			Background(style.Iris).
			Foreground(style.White)

	failureTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Padding(0, 1).
				Background(style.Red).
				Foreground(style.White)

	labelStyle = lipgloss.NewStyle().
			Foreground(style.Slate).
			Width(14)

	sectionStyle = lipgloss.NewStyle().
			Foreground(style.Iris).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(style.Iris).
			Bold(true)

	openStyle = lipgloss.NewStyle().
			Foreground(style.Yellow)

	exhaustedStyle = lipgloss.NewStyle().
			Foreground(style.Red)

	suppressedStyle = lipgloss.NewStyle().
			Foreground(style.Slate).
			Faint(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(style.Slate)

	countersPaneStyle = lipgloss.NewStyle().
				MarginRight(2)
)
