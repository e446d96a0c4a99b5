// Package memory implements every store role in process memory.
// It backs the default configuration and the tests, and can inject faults.
package memory

import (
	"context"
	"sync"
	"time"
)

// Faults injects failures and latency into a store.
type Faults struct {
	mu      sync.Mutex
	down    error
	queued  []error
	latency time.Duration
}

// FailNext makes the next n calls fail with err.
func (f *Faults) FailNext(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for range n {
		f.queued = append(f.queued, err)
	}
}

// SetDown makes every call fail with err until called again with nil.
func (f *Faults) SetDown(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = err
}

// SetLatency delays every call by d.
func (f *Faults) SetLatency(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latency = d
}

// check applies the configured latency and returns the next injected failure.
func (f *Faults) check(ctx context.Context) error {
	f.mu.Lock()
	latency := f.latency
	err := f.down
	if err == nil && len(f.queued) > 0 {
		err = f.queued[0]
		f.queued = f.queued[1:]
	}
	f.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
