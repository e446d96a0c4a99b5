package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/concord/internal/adapters/config"
	"go.trai.ch/concord/internal/adapters/logger"
	"go.trai.ch/concord/internal/adapters/storage"
	"go.trai.ch/concord/internal/adapters/watcher"
	"go.trai.ch/concord/internal/core/ports"
)

// ComponentsNodeID is the unique identifier for the application components Graft node.
const ComponentsNodeID graft.ID = "app.components"

// Components groups what the command line needs from the dependency graph.
type Components struct {
	App    *App
	Logger ports.Logger
}

func init() {
	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.NodeID, watcher.NodeID, storage.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (*Components, error) {
			loader, err := graft.Dep[ports.ConfigLoader](ctx)
			if err != nil {
				return nil, err
			}
			w, err := graft.Dep[ports.ConfigWatcher](ctx)
			if err != nil {
				return nil, err
			}
			opener, err := graft.Dep[*storage.Opener](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{App: New(loader, w, opener, log), Logger: log}, nil
		},
	})
}
