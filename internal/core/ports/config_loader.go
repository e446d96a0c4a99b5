package ports

import "go.trai.ch/concord/internal/core/domain"

// ConfigLoader defines the interface for loading the coordinator configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration visible from the given working directory.
	// Defaults are returned when no configuration file exists.
	Load(cwd string) (*domain.Config, error)

	// LoadFile reads and validates the configuration file at path.
	LoadFile(path string) (*domain.Config, error)

	// DiscoverConfigPath walks up from cwd to find concord.yaml.
	DiscoverConfigPath(cwd string) (string, error)
}
