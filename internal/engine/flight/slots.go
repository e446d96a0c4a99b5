package flight

import (
	"sync"

	"go.trai.ch/concord/internal/core/domain"
)

type slotKey struct {
	key  domain.Key
	role domain.StoreRole
}

type slot struct {
	// current is the version the owner is applying.
	current domain.Version
	// pending is the newest entity offered while the slot was held.
	pending *domain.Entity
}

type slotShard struct {
	mu    sync.Mutex
	slots map[slotKey]*slot
}

// Slots guarantees at most one in-flight propagation per (key, role).
// Entities offered while a slot is held are coalesced: only the highest
// version survives and the owner applies it once the current apply ends.
type Slots struct {
	shards []slotShard
}

// NewSlots creates a slot table with n shards.
func NewSlots(n int) *Slots {
	n = normalizeShards(n)
	s := &Slots{shards: make([]slotShard, n)}
	for i := range s.shards {
		s.shards[i].slots = make(map[slotKey]*slot)
	}
	return s
}

func (s *Slots) shard(key domain.Key, role domain.StoreRole) *slotShard {
	return &s.shards[shardIndex(key, role, len(s.shards))]
}

// Acquire takes the slot for (e.Key, role). It returns true when the caller
// became the owner and must apply e. Otherwise e was recorded as the
// slot's pending entity if it is newer than anything seen so far.
func (s *Slots) Acquire(role domain.StoreRole, e domain.Entity) bool {
	sh := s.shard(e.Key, role)
	sk := slotKey{key: e.Key, role: role}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sl, held := sh.slots[sk]
	if !held {
		sh.slots[sk] = &slot{current: e.Version}
		return true
	}
	if e.Version <= sl.current {
		return false
	}
	if sl.pending == nil || e.Version > sl.pending.Version {
		pending := e
		sl.pending = &pending
	}
	return false
}

// Next is called by the owner after an apply finished, whatever its outcome.
// When a newer entity was offered in the meantime it is returned, the slot
// stays held, and the owner must apply it. Otherwise the slot is released.
func (s *Slots) Next(role domain.StoreRole, key domain.Key) (domain.Entity, bool) {
	sh := s.shard(key, role)
	sk := slotKey{key: key, role: role}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sl, held := sh.slots[sk]
	if !held {
		return domain.Entity{}, false
	}
	if sl.pending == nil {
		delete(sh.slots, sk)
		return domain.Entity{}, false
	}
	next := *sl.pending
	sl.pending = nil
	sl.current = next.Version
	return next, true
}

// Release frees the slot and discards any pending entity.
// Used when the owner cannot continue, such as a shed task.
func (s *Slots) Release(role domain.StoreRole, key domain.Key) {
	sh := s.shard(key, role)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.slots, slotKey{key: key, role: role})
}

// InFlight returns the number of held slots.
func (s *Slots) InFlight() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.slots)
		sh.mu.Unlock()
	}
	return total
}
