package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CanonicalStore = (*Canonical)(nil)

// Canonical is an in-memory canonical store with compare-and-set commits.
type Canonical struct {
	Faults

	mu       sync.RWMutex
	entities map[domain.Key]domain.Entity
	loads    int
}

// NewCanonical creates an empty canonical store.
func NewCanonical() *Canonical {
	return &Canonical{entities: make(map[domain.Key]domain.Entity)}
}

// Load returns the current entity for key.
func (c *Canonical) Load(ctx context.Context, key domain.Key) (domain.Entity, error) {
	if err := c.check(ctx); err != nil {
		return domain.Entity{}, domain.Transient(domain.RoleCanonical, "load", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++

	e, ok := c.entities[key]
	if !ok {
		return domain.Entity{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "load entity"), "key", key.String())
	}
	e.Payload = e.Payload.Clone()
	return e, nil
}

// Commit stores e when the stored version equals prev.
func (c *Canonical) Commit(ctx context.Context, e domain.Entity, prev domain.Version) error {
	if err := c.check(ctx); err != nil {
		return domain.Transient(domain.RoleCanonical, "commit", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.entities[e.Key].Version != prev {
		return zerr.With(zerr.Wrap(domain.ErrVersionConflict, "commit entity"), "key", e.Key.String())
	}
	e.Payload = e.Payload.Clone()
	c.entities[e.Key] = e
	return nil
}

// Scan returns up to limit entities ordered by key after the given key.
func (c *Canonical) Scan(ctx context.Context, after domain.Key, limit int) ([]domain.Entity, error) {
	if err := c.check(ctx); err != nil {
		return nil, domain.Transient(domain.RoleCanonical, "scan", err)
	}

	c.mu.RLock()
	all := make([]domain.Entity, 0, len(c.entities))
	for _, e := range c.entities {
		if after != (domain.Key{}) && e.Key.String() <= after.String() {
			continue
		}
		all = append(all, e)
	}
	c.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.Entity) int {
		return cmp.Compare(a.Key.String(), b.Key.String())
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	for i := range all {
		all[i].Payload = all[i].Payload.Clone()
	}
	return all, nil
}

// Close is a no-op.
func (c *Canonical) Close(context.Context) error {
	return nil
}

// Loads returns how many Load calls reached the store.
func (c *Canonical) Loads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}
