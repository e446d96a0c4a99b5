// Package flight implements the keyed concurrency guards of the coordinator:
// per (key, role) propagation slots, striped per-key locks, and deduplicated reads.
package flight

import (
	"github.com/cespare/xxhash/v2"
	"go.trai.ch/concord/internal/core/domain"
)

// DefaultShards is the number of lock-table shards used when none is given.
const DefaultShards = 64

func shardIndex(key domain.Key, role domain.StoreRole, n int) int {
	d := xxhash.New()
	_, _ = d.WriteString(string(key.Type))
	_, _ = d.WriteString(":")
	_, _ = d.WriteString(key.ID)
	if role != "" {
		_, _ = d.WriteString("@")
		_, _ = d.WriteString(string(role))
	}
	return int(d.Sum64() % uint64(n))
}

func normalizeShards(n int) int {
	if n <= 0 {
		return DefaultShards
	}
	return n
}
