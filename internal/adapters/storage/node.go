package storage

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/concord/internal/adapters/logger"
	"go.trai.ch/concord/internal/core/ports"
)

// NodeID is the unique identifier for the store opener Graft node.
const NodeID graft.ID = "adapter.storage"

func init() {
	graft.Register(graft.Node[*Opener]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Opener, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewOpener(log), nil
		},
	})
}
