package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

// Fanout delivers every event to each sink in order.
type Fanout []ports.EventSink

// Emit forwards ev.
func (f Fanout) Emit(ctx context.Context, ev domain.Event) {
	for _, s := range f {
		s.Emit(ctx, ev)
	}
}

// LogSink writes the events an operator should see to the logger.
// Routine outcomes are left to the metrics.
type LogSink struct {
	logger ports.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger ports.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs failures, shed tasks, discrepancies and alerts.
func (s *LogSink) Emit(_ context.Context, ev domain.Event) {
	switch {
	case ev.Kind == domain.EventAlert:
		if ev.Err != nil {
			s.logger.Error(ev.Err)
			return
		}
		s.logger.Warn(fmt.Sprintf("alert: %s %s at version %d", ev.Role, ev.Key, ev.Version))
	case ev.Kind == domain.EventPropagation && ev.Outcome == domain.OutcomeFailed:
		s.logger.Warn(fmt.Sprintf("propagation to %s failed for %s at version %d after %d attempts: %v",
			ev.Role, ev.Key, ev.Version, ev.Attempt, ev.Err))
	case ev.Kind == domain.EventDiscrepancy && ev.Outcome == domain.OutcomeDetected:
		s.logger.Info(fmt.Sprintf("discrepancy: %s lags %s at version %d", ev.Role, ev.Key, ev.Version))
	}
}

type tally struct {
	kind    domain.EventKind
	outcome domain.Outcome
}

// Recorder counts events by kind and outcome.
type Recorder struct {
	mu     sync.Mutex
	counts map[tally]int64
	events []domain.Event
	keep   bool
}

// NewRecorder creates a Recorder that only counts.
func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[tally]int64)}
}

// NewCapturingRecorder creates a Recorder that also keeps every event.
func NewCapturingRecorder() *Recorder {
	r := NewRecorder()
	r.keep = true
	return r
}

// Emit counts ev.
func (r *Recorder) Emit(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[tally{ev.Kind, ev.Outcome}]++
	if r.keep {
		r.events = append(r.events, ev)
	}
}

// Count returns how many events of kind had outcome. An empty outcome matches any.
func (r *Recorder) Count(kind domain.EventKind, outcome domain.Outcome) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if outcome != "" {
		return r.counts[tally{kind, outcome}]
	}
	var n int64
	for t, c := range r.counts {
		if t.kind == kind {
			n += c
		}
	}
	return n
}

// Events returns the captured events.
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Event, len(r.events))
	copy(out, r.events)
	return out
}
