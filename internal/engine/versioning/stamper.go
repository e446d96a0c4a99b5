// Package versioning assigns entity versions and commits them to the canonical store.
package versioning

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/concord/internal/engine/flight"
	"go.trai.ch/zerr"
)

// MaxConflictRetries bounds compare-and-set retries against writers in other processes.
const MaxConflictRetries = 3

// Stamper is the only writer of entity versions.
type Stamper struct {
	store ports.CanonicalStore
	locks *flight.Striped
	mode  domain.VersionMode
	now   func() time.Time
}

// NewStamper creates a Stamper committing to store.
func NewStamper(store ports.CanonicalStore, mode domain.VersionMode) *Stamper {
	if mode == "" {
		mode = domain.VersionHybrid
	}
	return &Stamper{
		store: store,
		locks: flight.NewStriped(flight.DefaultShards),
		mode:  mode,
		now:   time.Now,
	}
}

// Stamp assigns the next version for key and commits the resulting entity.
// Concurrent stamps of the same key are serialized in-process and guarded by
// compare-and-set at the store. A failed commit assigns no version.
func (s *Stamper) Stamp(ctx context.Context, key domain.Key, payload domain.Payload, deleted bool) (domain.Entity, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	for range MaxConflictRetries + 1 {
		prev, exists, err := s.current(ctx, key)
		if err != nil {
			return domain.Entity{}, err
		}
		if deleted && !exists {
			return domain.Entity{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "delete entity"), "key", key.String())
		}

		now := s.now()
		e := domain.Entity{
			Key:       key,
			Version:   s.next(prev, now),
			UpdatedAt: now,
			Deleted:   deleted,
		}
		if !deleted {
			e.Payload = payload.Clone()
		}

		err = s.store.Commit(ctx, e, prev)
		if err == nil {
			return e, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Entity{}, zerr.With(zerr.Wrap(err, "commit entity"), "key", key.String())
		}
	}

	return domain.Entity{}, zerr.With(zerr.Wrap(domain.ErrVersionConflict, "stamp entity"), "key", key.String())
}

// current returns the committed version of key and whether a live entity exists.
func (s *Stamper) current(ctx context.Context, key domain.Key) (domain.Version, bool, error) {
	cur, err := s.store.Load(ctx, key)
	switch {
	case err == nil:
		return cur.Version, !cur.Deleted, nil
	case errors.Is(err, domain.ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, zerr.With(zerr.Wrap(err, "load current version"), "key", key.String())
	}
}

func (s *Stamper) next(cur domain.Version, now time.Time) domain.Version {
	n := cur + 1
	if s.mode == domain.VersionHybrid {
		if ms := domain.Version(now.UnixMilli()); ms > n {
			n = ms
		}
	}
	return n
}
