// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/concord/internal/core/domain"
)

//go:generate mockgen -source=repository.go -destination=mocks/mock_repository.go -package=mocks

// Repository is the uniform surface every derived store exposes to the core.
type Repository interface {
	// Role reports the role this repository serves.
	Role() domain.StoreRole
	// Get returns the record held for key, or an error wrapping domain.ErrNotFound.
	// Expired cache records are reported as not found.
	Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error)
	// Put writes rec unless the store already holds rec.VersionSeen or newer,
	// in which case it returns an error classified as stale.
	// Cache implementations reject records without a TTL.
	Put(ctx context.Context, rec domain.StoreRecord) error
	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key domain.Key) error
	// Close releases driver resources.
	Close(ctx context.Context) error
}

// CanonicalStore is the authoritative store. It is the only store that versions entities.
type CanonicalStore interface {
	// Load returns the current entity for key, or an error wrapping domain.ErrNotFound.
	Load(ctx context.Context, key domain.Key) (domain.Entity, error)
	// Commit writes e if the stored version still equals prev (zero for a new entity).
	// It returns an error wrapping domain.ErrVersionConflict otherwise.
	Commit(ctx context.Context, e domain.Entity, prev domain.Version) error
	// Scan returns up to limit entities ordered by key, starting after the given key.
	// The zero key starts from the beginning.
	Scan(ctx context.Context, after domain.Key, limit int) ([]domain.Entity, error)
	// Close releases driver resources.
	Close(ctx context.Context) error
}
