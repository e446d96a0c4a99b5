package flight

import (
	"context"

	"go.trai.ch/concord/internal/core/domain"
	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls for the same key. Callers that arrive
// while a call is in progress wait for and share its result.
type Group struct {
	shards []singleflight.Group
	scope  string
}

// NewGroup creates a group. scope namespaces the keys, such as "read-repopulate".
func NewGroup(scope string, n int) *Group {
	return &Group{shards: make([]singleflight.Group, normalizeShards(n)), scope: scope}
}

// Do runs fn once per key among concurrent callers. fn receives a context
// detached from the caller, so one caller giving up does not cancel the work
// others wait on. A cancelled caller returns ctx.Err() immediately.
func (g *Group) Do(
	ctx context.Context,
	key domain.Key,
	fn func(ctx context.Context) (any, error),
) (v any, shared bool, err error) {
	sf := &g.shards[shardIndex(key, domain.StoreRole(g.scope), len(g.shards))]
	detached := context.WithoutCancel(ctx)

	ch := sf.DoChan(key.String(), func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}
