package ports

import (
	"context"

	"go.trai.ch/concord/internal/core/domain"
)

// EventSink receives observability events. Implementations must not block the caller for long.
//
//go:generate mockgen -source=events.go -destination=mocks/mock_events.go -package=mocks
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event)
}
