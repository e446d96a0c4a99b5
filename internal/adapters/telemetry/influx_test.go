package telemetry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/telemetry"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

type pointWriter struct {
	mu     sync.Mutex
	points []*write.Point
	err    error
}

func (w *pointWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.points = append(w.points, points...)
	return nil
}

type slowWriter struct {
	pointWriter
	delay time.Duration
}

func (w *slowWriter) WritePoint(ctx context.Context, points ...*write.Point) error {
	select {
	case <-time.After(w.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return w.pointWriter.WritePoint(ctx, points...)
}

func (w *pointWriter) written() []*write.Point {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points
}

func TestInfluxSink_WritesBatchedPoints(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := &pointWriter{}
		sink := telemetry.NewInfluxSinkWithWriter(w, mocks.NewMockLogger(ctrl), 2, time.Hour)

		key := domain.Key{Type: domain.EntityResearcher, ID: "r1"}
		sink.Emit(t.Context(), domain.Event{Kind: domain.EventPropagation, Key: key, Role: domain.RoleGraph, Outcome: domain.OutcomeApplied, Version: 3})
		assert.Empty(t, w.written())

		sink.Emit(t.Context(), domain.Event{Kind: domain.EventCacheHit, Key: key, Role: domain.RoleCache, Outcome: domain.OutcomeOK})
		synctest.Wait()
		require.Len(t, w.written(), 2)

		p := w.written()[0]
		assert.Equal(t, telemetry.EventMeasurement, p.Name())
		tags := map[string]string{}
		for _, tag := range p.TagList() {
			tags[tag.Key] = tag.Value
		}
		assert.Equal(t, "propagation", tags["kind"])
		assert.Equal(t, "graph", tags["role"])
		assert.Equal(t, "researcher", tags["entity_type"])

		require.NoError(t, sink.Close())
	})
}

func TestInfluxSink_LogsWriteFailures(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		logger := mocks.NewMockLogger(ctrl)
		logger.EXPECT().Error(gomock.Any()).Times(1)

		w := &pointWriter{err: errors.New("connection refused")}
		sink := telemetry.NewInfluxSinkWithWriter(w, logger, 10, time.Hour)

		sink.Emit(t.Context(), domain.Event{Kind: domain.EventReconcilePass, Outcome: domain.OutcomeOK, Count: 4})
		require.NoError(t, sink.Close())
	})
}

func TestInfluxSink_SlowServerDoesNotBlockEmit(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctrl := gomock.NewController(t)
		w := &slowWriter{delay: 2 * time.Second}
		sink := telemetry.NewInfluxSinkWithWriter(w, mocks.NewMockLogger(ctrl), 1, time.Hour)

		start := time.Now()
		for range 20 {
			sink.Emit(t.Context(), domain.Event{Kind: domain.EventCacheHit, Role: domain.RoleCache, Outcome: domain.OutcomeOK})
		}
		assert.Zero(t, time.Since(start), "emitting must not wait for the server")
		assert.Positive(t, sink.Dropped())

		require.NoError(t, sink.Close())
		assert.Equal(t, int64(20), int64(len(w.written()))+sink.Dropped())
	})
}
