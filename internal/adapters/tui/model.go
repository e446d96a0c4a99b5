// Package tui provides the live terminal dashboard of a running coordinator.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.trai.ch/concord/internal/core/domain"
)

// DefaultInterval is how often the dashboard polls when no interval is given.
const DefaultInterval = time.Second

// Snapshot is the state shown on one frame.
type Snapshot struct {
	Applied   int64
	Coalesced int64
	Stale     int64
	Retried   int64
	Failed    int64
	Shed      int64
	InFlight  int
	Queued    int

	CacheHits     int64
	CacheMisses   int64
	CacheBypasses int64

	ReconcilePasses int64
	DeadLetters     int
	Discrepancies   []domain.Discrepancy

	At time.Time
}

// HitRatio is the share of cache lookups served from the cache, between 0 and 1.
func (s Snapshot) HitRatio() float64 {
	total := s.CacheHits + s.CacheMisses + s.CacheBypasses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// Poller fetches the current snapshot.
type Poller func() (Snapshot, error)

// Model represents the dashboard state.
type Model struct {
	Snapshot    Snapshot
	Err         error
	Polled      bool
	Width       int
	Height      int
	SelectedIdx int
	ListOffset  int
	ListHeight  int
	Interval    time.Duration

	poll Poller
}

// NewModel creates a dashboard that refreshes through poll every interval.
func NewModel(poll Poller, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Model{poll: poll, Interval: interval}
}

// Init fetches the first snapshot.
func (m *Model) Init() tea.Cmd {
	return m.pollCmd()
}

func (m *Model) pollCmd() tea.Cmd {
	poll := m.poll
	return func() tea.Msg {
		s, err := poll()
		if err != nil {
			return MsgPollError{Err: err, At: time.Now()}
		}
		return MsgSnapshot{Snapshot: s}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.Interval, func(time.Time) tea.Msg { return msgTick{} })
}

func (m *Model) ensureVisible() {
	if m.ListHeight <= 0 {
		return
	}
	if m.SelectedIdx < m.ListOffset {
		m.ListOffset = m.SelectedIdx
	} else if m.SelectedIdx >= m.ListOffset+m.ListHeight {
		m.ListOffset = m.SelectedIdx - m.ListHeight + 1
	}
}

// Selected returns the highlighted discrepancy, if any.
func (m *Model) Selected() (domain.Discrepancy, bool) {
	ds := m.Snapshot.Discrepancies
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(ds) {
		return ds[m.SelectedIdx], true
	}
	return domain.Discrepancy{}, false
}

// Update handles a message and returns the updated model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "k", "up":
			if m.SelectedIdx > 0 {
				m.SelectedIdx--
				m.ensureVisible()
			}
		case "j", "down":
			if m.SelectedIdx < len(m.Snapshot.Discrepancies)-1 {
				m.SelectedIdx++
				m.ensureVisible()
			}
		case "r":
			return m, m.pollCmd()
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.ListHeight = msg.Height - countersHeight - chromeHeight
		if m.ListHeight < 1 {
			m.ListHeight = 1
		}
		m.ensureVisible()

	case MsgSnapshot:
		m.Snapshot = msg.Snapshot
		m.Err = nil
		m.Polled = true
		// The list may have shrunk under the cursor.
		if n := len(m.Snapshot.Discrepancies); m.SelectedIdx >= n {
			m.SelectedIdx = max(n-1, 0)
		}
		m.ensureVisible()
		return m, m.tick()

	case MsgPollError:
		m.Err = msg.Err
		return m, m.tick()

	case msgTick:
		return m, m.pollCmd()
	}

	return m, nil
}
