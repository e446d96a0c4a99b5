package memory

import (
	"context"
	"sync"
	"time"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Repository = (*Store)(nil)

type record struct {
	rec       domain.StoreRecord
	expiresAt time.Time
}

// Store is an in-memory derived store for the graph, cache or analytics role.
type Store struct {
	Faults

	role    domain.StoreRole
	mu      sync.RWMutex
	records map[domain.Key]record
	applies map[domain.Key]int
}

// NewStore creates an empty store serving role.
func NewStore(role domain.StoreRole) *Store {
	return &Store{
		role:    role,
		records: make(map[domain.Key]record),
		applies: make(map[domain.Key]int),
	}
}

// Role reports the role this store serves.
func (s *Store) Role() domain.StoreRole {
	return s.role
}

// Get returns the live record for key.
func (s *Store) Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	if err := s.check(ctx); err != nil {
		return domain.StoreRecord{}, s.classify("get", err)
	}

	s.mu.RLock()
	r, ok := s.records[key]
	s.mu.RUnlock()

	if !ok || s.expired(r) {
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "get record"), "key", key.String())
	}
	r.rec.Payload = r.rec.Payload.Clone()
	return r.rec, nil
}

// Put stores rec unless a live record with the same or a newer version exists.
func (s *Store) Put(ctx context.Context, rec domain.StoreRecord) error {
	if s.role == domain.RoleCache && rec.TTL <= 0 {
		return domain.Permanent(s.role, "put", domain.ErrMissingTTL)
	}
	if err := s.check(ctx); err != nil {
		return s.classify("put", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.records[rec.Key]; ok && !s.expired(cur) && cur.rec.VersionSeen >= rec.VersionSeen {
		return domain.Stale(s.role, "put")
	}

	rec.Role = s.role
	rec.Payload = rec.Payload.Clone()
	r := record{rec: rec}
	if rec.TTL > 0 {
		r.expiresAt = time.Now().Add(rec.TTL)
	}
	s.records[rec.Key] = r
	s.applies[rec.Key]++
	return nil
}

// Delete removes the record for key.
func (s *Store) Delete(ctx context.Context, key domain.Key) error {
	if err := s.check(ctx); err != nil {
		return s.classify("delete", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Close is a no-op.
func (s *Store) Close(context.Context) error {
	return nil
}

// Applies returns how many writes were physically applied for key.
func (s *Store) Applies(key domain.Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applies[key]
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.records {
		if !s.expired(r) {
			n++
		}
	}
	return n
}

func (s *Store) expired(r record) bool {
	return !r.expiresAt.IsZero() && !time.Now().Before(r.expiresAt)
}

// classify maps an injected failure onto the class the role's real adapter would report.
func (s *Store) classify(op string, err error) error {
	if domain.Classify(err) != domain.ClassTransient {
		return err
	}
	if s.role == domain.RoleCache {
		return domain.Unavailable(s.role, op, err)
	}
	return domain.Transient(s.role, op, err)
}
