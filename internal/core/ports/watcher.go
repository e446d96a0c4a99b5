package ports

import (
	"context"
	"iter"
)

// ConfigWatcher reports changes to the configuration file.
//
//go:generate mockgen -source=watcher.go -destination=mocks/mock_watcher.go -package=mocks
type ConfigWatcher interface {
	// Start begins watching path. Changes are debounced.
	Start(ctx context.Context, path string) error
	// Stop stops the watcher and releases all resources.
	Stop() error
	// Changes yields the path each time the file settles after a change.
	Changes() iter.Seq[string]
}
