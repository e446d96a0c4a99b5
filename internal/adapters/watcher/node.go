package watcher

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/concord/internal/adapters/logger"
	"go.trai.ch/concord/internal/core/ports"
)

// NodeID is the unique identifier for the config watcher Graft node.
const NodeID graft.ID = "adapter.watcher"

func init() {
	graft.Register(graft.Node[ports.ConfigWatcher]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.ConfigWatcher, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewConfigWatcher(log, DefaultDebounceWindow)
		},
	})
}
