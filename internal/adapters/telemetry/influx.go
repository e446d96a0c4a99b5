package telemetry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

// EventMeasurement is the InfluxDB measurement coordinator events are written to.
const EventMeasurement = "concord_events"

// PointWriter writes points synchronously. api.WriteAPIBlocking satisfies it.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

var _ ports.EventSink = (*InfluxSink)(nil)

// pendingBatches bounds how many full batches wait for the writer.
const pendingBatches = 8

// InfluxSink batches events and writes them as points to InfluxDB.
// Writes happen on a background goroutine so Emit never waits on the server.
// Batches that arrive while the writer is backed up are dropped, and write
// failures are logged and the batch is dropped.
type InfluxSink struct {
	writer  PointWriter
	logger  ports.Logger
	batcher *Batcher[*write.Point]
	timeout time.Duration
	closeFn func()

	batches chan []*write.Point
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// NewInfluxSink connects to the server described by cfg.
func NewInfluxSink(cfg domain.InfluxConfig, logger ports.Logger) *InfluxSink {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := newInfluxSink(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), logger, DefaultSizeLimit, DefaultTimeLimit)
	s.closeFn = client.Close
	return s
}

// NewInfluxSinkWithWriter creates a sink writing through w.
func NewInfluxSinkWithWriter(w PointWriter, logger ports.Logger, batchSize int, interval time.Duration) *InfluxSink {
	return newInfluxSink(w, logger, batchSize, interval)
}

func newInfluxSink(w PointWriter, logger ports.Logger, batchSize int, interval time.Duration) *InfluxSink {
	s := &InfluxSink{
		writer:  w,
		logger:  logger,
		timeout: 5 * time.Second,
		batches: make(chan []*write.Point, pendingBatches),
		done:    make(chan struct{}),
	}
	s.batcher = NewBatcher(batchSize, interval, s.enqueue)
	go s.run()
	return s
}

// Emit converts ev to a point and queues it.
func (s *InfluxSink) Emit(_ context.Context, ev domain.Event) {
	_ = s.batcher.Add(eventPoint(ev))
}

// Dropped returns how many points were discarded because the writer fell behind.
func (s *InfluxSink) Dropped() int64 {
	return s.dropped.Load()
}

// enqueue hands a batch to the writer without blocking the emitter.
func (s *InfluxSink) enqueue(points []*write.Point) {
	select {
	case s.batches <- points:
	default:
		s.dropped.Add(int64(len(points)))
	}
}

func (s *InfluxSink) run() {
	defer close(s.done)
	for points := range s.batches {
		s.write(points)
	}
}

func (s *InfluxSink) write(points []*write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		s.logger.Error(zerr.With(zerr.Wrap(err, "failed to write events to influxdb"), "points", len(points)))
	}
}

// Close flushes pending points, waits for queued batches to be written and
// releases the client.
func (s *InfluxSink) Close() error {
	var err error
	s.once.Do(func() {
		err = s.batcher.Close()
		close(s.batches)
		<-s.done
		if s.closeFn != nil {
			s.closeFn()
		}
	})
	return err
}

func eventPoint(ev domain.Event) *write.Point {
	tags := map[string]string{
		"kind":    string(ev.Kind),
		"outcome": string(ev.Outcome),
	}
	if ev.Role != "" {
		tags["role"] = string(ev.Role)
	}
	if ev.Key.Type != "" {
		tags["entity_type"] = string(ev.Key.Type)
	}

	fields := map[string]any{
		"latency_ms": float64(ev.Latency) / float64(time.Millisecond),
		"version":    int64(ev.Version),
		"attempt":    ev.Attempt,
		"count":      ev.Count,
	}
	if ev.Key.ID != "" {
		fields["key"] = ev.Key.String()
	}
	if ev.Err != nil {
		fields["error"] = ev.Err.Error()
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	return influxdb2.NewPoint(EventMeasurement, tags, fields, at)
}
