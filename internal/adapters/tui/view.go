package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"go.trai.ch/concord/internal/core/domain"
)

// View renders the dashboard.
func (m *Model) View() string {
	if !m.Polled && m.Err == nil {
		return "Connecting..."
	}

	title := titleStyle.Render("CONCORD")
	if m.Err != nil {
		title = failureTitleStyle.Render("CONCORD  poll failed: " + m.Err.Error())
	} else if !m.Snapshot.At.IsZero() {
		title += " " + footerStyle.Render(m.Snapshot.At.Format("15:04:05"))
	}

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		countersPaneStyle.Render(m.counters()),
		m.discrepancyList(),
	)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		body,
		footerStyle.Render("j/k select  r refresh  q quit"),
	)
}

func (m *Model) counters() string {
	s := m.Snapshot
	var b strings.Builder

	section := func(name string) {
		b.WriteString(sectionStyle.Render(name) + "\n")
	}
	row := func(label string, v int64) {
		b.WriteString(labelStyle.Render(label) + strconv.FormatInt(v, 10) + "\n")
	}

	section("propagation")
	row("applied", s.Applied)
	row("coalesced", s.Coalesced)
	row("stale", s.Stale)
	row("retried", s.Retried)
	row("failed", s.Failed)
	row("shed", s.Shed)
	row("in flight", int64(s.InFlight))
	row("queued", int64(s.Queued))
	section("cache")
	b.WriteString(labelStyle.Render("hit ratio") + fmt.Sprintf("%.1f%%", s.HitRatio()*100) + "\n")
	row("bypasses", s.CacheBypasses)
	section("consistency")
	row("passes", s.ReconcilePasses)
	row("dead letters", int64(s.DeadLetters))

	return b.String()
}

func (m *Model) discrepancyList() string {
	ds := m.Snapshot.Discrepancies

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("discrepancies (%d)", len(ds))) + "\n")
	if len(ds) == 0 {
		b.WriteString(footerStyle.Render("  all stores agree") + "\n")
		return b.String()
	}

	start := m.ListOffset
	end := len(ds)
	if m.ListHeight > 0 && start+m.ListHeight < end {
		end = start + m.ListHeight
	}
	if start > end {
		start = end
	}

	for i := start; i < end; i++ {
		b.WriteString(m.renderDiscrepancyRow(i, ds[i]) + "\n")
	}
	return b.String()
}

func (m *Model) renderDiscrepancyRow(index int, d domain.Discrepancy) string {
	st := discrepancyStyle(d)
	cursor := "  "
	if index == m.SelectedIdx {
		cursor = selectedStyle.Render("> ")
	}

	content := fmt.Sprintf("%s %-10s v%d/v%d", d.Key, d.Role, d.ObservedVersion, d.CanonicalVersion)
	return cursor + st.Render(content)
}

func discrepancyStyle(d domain.Discrepancy) lipgloss.Style {
	switch {
	case d.Suppressed:
		return suppressedStyle
	case d.Exhausted:
		return exhaustedStyle
	default:
		return openStyle
	}
}
