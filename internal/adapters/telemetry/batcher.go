// Package telemetry exports tracing spans and coordinator events to OpenTelemetry, Prometheus, InfluxDB and the log.
package telemetry

import (
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the default number of buffered items if not specified.
	DefaultSizeLimit = 500
	// DefaultTimeLimit is the default flush interval if not specified.
	DefaultTimeLimit = time.Second
)

// ErrBatcherClosed is returned by Add after Close.
var ErrBatcherClosed = errors.New("batcher is closed")

// Batcher buffers items until a size limit or time limit is reached.
// It is thread-safe.
type Batcher[T any] struct {
	// configuration
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]T)

	// synchronization
	mu     sync.Mutex
	buffer []T
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewBatcher returns a new Batcher.
// sizeLimit: max items before automatic flush.
// timeLimit: max time before automatic flush.
// onFlush: callback triggered when data is flushed.
// Call Close() to stop the background ticker.
func NewBatcher[T any](sizeLimit int, timeLimit time.Duration, onFlush func([]T)) *Batcher[T] {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	b := &Batcher[T]{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
		buffer:    make([]T, 0, sizeLimit),
		stopCh:    make(chan struct{}),
	}

	b.ticker = time.NewTicker(timeLimit)
	go b.run()

	return b
}

// Add appends item to the buffer.
// If the buffer reaches sizeLimit, it triggers a Flush.
func (b *Batcher[T]) Add(item T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBatcherClosed
	}

	b.buffer = append(b.buffer, item)
	if len(b.buffer) >= b.sizeLimit {
		b.flushLocked()
		// Reset ticker so we don't flush again immediately after a full batch
		b.ticker.Reset(b.timeLimit)
	}
	return nil
}

// Flush forces any buffered items to be sent to the callback.
func (b *Batcher[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.flushLocked()
}

// Close stops the background flusher and performs a final flush.
func (b *Batcher[T]) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	close(b.stopCh)
	b.flushLocked()
	return nil
}

func (b *Batcher[T]) run() {
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.stopCh:
			b.ticker.Stop()
			return
		}
	}
}

// flushLocked must be called with mu held.
func (b *Batcher[T]) flushLocked() {
	if len(b.buffer) == 0 {
		return
	}

	batch := b.buffer
	b.buffer = make([]T, 0, b.sizeLimit)

	// Calling back under the lock keeps batches ordered; onFlush must not block for long.
	if b.onFlush != nil {
		b.onFlush(batch)
	}
}
