package ports

import (
	"context"

	"go.trai.ch/concord/internal/core/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/mock_ledger.go -package=mocks

// MarkerStore persists the highest version each derived role has acknowledged.
type MarkerStore interface {
	// Seen returns the acknowledged version, zero when none was recorded.
	Seen(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Version, error)
	// Mark raises the acknowledged version. Lower versions are ignored.
	Mark(ctx context.Context, key domain.Key, role domain.StoreRole, v domain.Version) error
}

// DeadLetterLog persists propagation tasks that failed terminally.
type DeadLetterLog interface {
	Append(ctx context.Context, dl domain.DeadLetter) error
	List(ctx context.Context) ([]domain.DeadLetter, error)
	Remove(ctx context.Context, id string) error
}

// DiscrepancyLog persists detected divergence between canonical and derived roles.
type DiscrepancyLog interface {
	// Upsert records d, replacing any entry for the same key and role.
	Upsert(ctx context.Context, d domain.Discrepancy) error
	// Get returns the entry for key and role, and whether it exists.
	Get(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Discrepancy, bool, error)
	// Resolve removes the entry for key and role.
	Resolve(ctx context.Context, key domain.Key, role domain.StoreRole) error
	List(ctx context.Context) ([]domain.Discrepancy, error)
}
