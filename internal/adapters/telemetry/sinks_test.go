package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/concord/internal/adapters/telemetry"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestFanout_DeliversToEverySink(t *testing.T) {
	a, b := telemetry.NewRecorder(), telemetry.NewRecorder()
	f := telemetry.Fanout{a, b}

	f.Emit(context.Background(), domain.Event{Kind: domain.EventCacheHit, Outcome: domain.OutcomeOK})

	assert.Equal(t, int64(1), a.Count(domain.EventCacheHit, domain.OutcomeOK))
	assert.Equal(t, int64(1), b.Count(domain.EventCacheHit, ""))
}

func TestRecorder_Count(t *testing.T) {
	r := telemetry.NewCapturingRecorder()
	ctx := context.Background()

	r.Emit(ctx, domain.Event{Kind: domain.EventPropagation, Outcome: domain.OutcomeApplied})
	r.Emit(ctx, domain.Event{Kind: domain.EventPropagation, Outcome: domain.OutcomeStale})
	r.Emit(ctx, domain.Event{Kind: domain.EventPropagation, Outcome: domain.OutcomeApplied})

	assert.Equal(t, int64(2), r.Count(domain.EventPropagation, domain.OutcomeApplied))
	assert.Equal(t, int64(3), r.Count(domain.EventPropagation, ""))
	assert.Equal(t, int64(0), r.Count(domain.EventCacheMiss, ""))
	assert.Len(t, r.Events(), 3)
	assert.Empty(t, telemetry.NewRecorder().Events())
}

func TestLogSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	logger := mocks.NewMockLogger(ctrl)
	sink := telemetry.NewLogSink(logger)
	ctx := context.Background()
	key := domain.Key{Type: domain.EntityProject, ID: "p1"}

	alert := errors.New("exhausted")
	logger.EXPECT().Error(alert)
	logger.EXPECT().Warn(gomock.Any()).Times(1)
	logger.EXPECT().Info(gomock.Any()).Times(1)

	sink.Emit(ctx, domain.Event{Kind: domain.EventAlert, Key: key, Err: alert})
	sink.Emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: key, Outcome: domain.OutcomeFailed})
	sink.Emit(ctx, domain.Event{Kind: domain.EventDiscrepancy, Key: key, Outcome: domain.OutcomeDetected})
	sink.Emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: key, Outcome: domain.OutcomeApplied})
	sink.Emit(ctx, domain.Event{Kind: domain.EventCacheHit, Key: key})
}
