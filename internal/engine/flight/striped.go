package flight

import (
	"sync"

	"go.trai.ch/concord/internal/core/domain"
)

// Striped is a keyed mutex. Keys hash onto a fixed set of stripes, so
// distinct keys rarely contend and there is no global lock.
type Striped struct {
	stripes []sync.Mutex
}

// NewStriped creates a keyed mutex with n stripes.
func NewStriped(n int) *Striped {
	return &Striped{stripes: make([]sync.Mutex, normalizeShards(n))}
}

// Lock locks the stripe owning key and returns its unlock function.
func (s *Striped) Lock(key domain.Key) func() {
	mu := &s.stripes[shardIndex(key, "", len(s.stripes))]
	mu.Lock()
	return mu.Unlock
}
