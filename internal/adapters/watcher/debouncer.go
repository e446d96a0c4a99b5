package watcher

import (
	"sync"
	"time"
)

// Debouncer collapses a burst of triggers into one callback that runs once
// the burst has been quiet for the window.
type Debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	window   time.Duration
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer with the given time window and callback.
func NewDebouncer(window time.Duration, callback func()) *Debouncer {
	return &Debouncer{window: window, callback: callback}
}

// Trigger restarts the quiet window.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	if d.callback != nil {
		d.callback()
	}
}

// Flush runs a pending callback immediately and blocks until it returns.
// It is a no-op when nothing is pending.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil || !d.timer.Stop() {
		// Nothing pending, or the timer already fired.
		d.mu.Unlock()
		return
	}
	d.timer = nil
	stopped := d.stopped
	d.mu.Unlock()

	if !stopped && d.callback != nil {
		d.callback()
	}
}

// Stop discards any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
