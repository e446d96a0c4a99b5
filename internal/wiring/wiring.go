// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/concord/internal/adapters/config"
	_ "go.trai.ch/concord/internal/adapters/logger"
	_ "go.trai.ch/concord/internal/adapters/storage"
	_ "go.trai.ch/concord/internal/adapters/watcher"
	// Register app nodes.
	_ "go.trai.ch/concord/internal/app"
)
