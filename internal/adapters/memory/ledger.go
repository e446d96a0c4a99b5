package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

var (
	_ ports.MarkerStore    = (*Markers)(nil)
	_ ports.DeadLetterLog  = (*DeadLetters)(nil)
	_ ports.DiscrepancyLog = (*Discrepancies)(nil)
)

type roleKey struct {
	key  domain.Key
	role domain.StoreRole
}

// Markers records the highest version acknowledged per key and role.
type Markers struct {
	Faults

	mu   sync.RWMutex
	seen map[roleKey]domain.Version
}

// NewMarkers creates an empty marker store.
func NewMarkers() *Markers {
	return &Markers{seen: make(map[roleKey]domain.Version)}
}

// Seen returns the acknowledged version.
func (m *Markers) Seen(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Version, error) {
	if err := m.check(ctx); err != nil {
		return 0, domain.Transient(domain.RoleAnalytics, "seen", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.seen[roleKey{key, role}], nil
}

// Mark raises the acknowledged version.
func (m *Markers) Mark(ctx context.Context, key domain.Key, role domain.StoreRole, v domain.Version) error {
	if err := m.check(ctx); err != nil {
		return domain.Transient(domain.RoleAnalytics, "mark", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if rk := (roleKey{key, role}); v > m.seen[rk] {
		m.seen[rk] = v
	}
	return nil
}

// DeadLetters is an in-memory dead-letter log.
type DeadLetters struct {
	mu      sync.RWMutex
	entries []domain.DeadLetter
}

// NewDeadLetters creates an empty dead-letter log.
func NewDeadLetters() *DeadLetters {
	return &DeadLetters{}
}

// Append records dl.
func (d *DeadLetters) Append(_ context.Context, dl domain.DeadLetter) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, dl)
	return nil
}

// List returns all entries in failure order.
func (d *DeadLetters) List(context.Context) ([]domain.DeadLetter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.entries), nil
}

// Remove deletes the entry with the given id.
func (d *DeadLetters) Remove(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = slices.DeleteFunc(d.entries, func(dl domain.DeadLetter) bool {
		return dl.ID == id
	})
	return nil
}

// Discrepancies is an in-memory discrepancy log.
type Discrepancies struct {
	mu      sync.RWMutex
	entries map[roleKey]domain.Discrepancy
}

// NewDiscrepancies creates an empty discrepancy log.
func NewDiscrepancies() *Discrepancies {
	return &Discrepancies{entries: make(map[roleKey]domain.Discrepancy)}
}

// Upsert records d.
func (d *Discrepancies) Upsert(_ context.Context, disc domain.Discrepancy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[roleKey{disc.Key, disc.Role}] = disc
	return nil
}

// Get returns the entry for key and role.
func (d *Discrepancies) Get(_ context.Context, key domain.Key, role domain.StoreRole) (domain.Discrepancy, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	disc, ok := d.entries[roleKey{key, role}]
	return disc, ok, nil
}

// Resolve removes the entry for key and role.
func (d *Discrepancies) Resolve(_ context.Context, key domain.Key, role domain.StoreRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, roleKey{key, role})
	return nil
}

// List returns all entries ordered by key and role.
func (d *Discrepancies) List(context.Context) ([]domain.Discrepancy, error) {
	d.mu.RLock()
	out := make([]domain.Discrepancy, 0, len(d.entries))
	for _, disc := range d.entries {
		out = append(out, disc)
	}
	d.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Discrepancy) int {
		if c := cmp.Compare(a.Key.String(), b.Key.String()); c != 0 {
			return c
		}
		return cmp.Compare(a.Role, b.Role)
	})
	return out, nil
}
