package domain

import "go.trai.ch/zerr"

var (
	// ErrTransientStore is returned for store failures that may succeed on retry.
	ErrTransientStore = zerr.New("transient store failure")

	// ErrPermanentStore is returned for store failures that will not succeed on retry.
	ErrPermanentStore = zerr.New("permanent store failure")

	// ErrStaleVersion is returned when a store already holds a version at least as new.
	ErrStaleVersion = zerr.New("stale version")

	// ErrCacheUnavailable is returned when the cache cannot serve requests.
	ErrCacheUnavailable = zerr.New("cache unavailable")

	// ErrReconciliationExhausted is returned when auto-resolution of a discrepancy gives up.
	ErrReconciliationExhausted = zerr.New("reconciliation attempts exhausted")

	// ErrNotFound is returned when a store holds no record for a key.
	ErrNotFound = zerr.New("not found")

	// ErrVersionConflict is returned when a compare-and-set at the canonical store loses a race.
	ErrVersionConflict = zerr.New("version conflict")

	// ErrMissingTTL is returned when a cache write carries no TTL.
	ErrMissingTTL = zerr.New("cache write without ttl")

	// ErrInvalidEntityType is returned for unknown entity types.
	ErrInvalidEntityType = zerr.New("invalid entity type, expected researcher, project or publication")

	// ErrEmptyEntityID is returned when an entity id is empty.
	ErrEmptyEntityID = zerr.New("entity id must not be empty")

	// ErrInvalidStoreRole is returned for unknown store roles.
	ErrInvalidStoreRole = zerr.New("invalid store role, expected canonical, graph, cache or analytics")

	// ErrCoordinatorClosed is returned when work is submitted after shutdown.
	ErrCoordinatorClosed = zerr.New("propagation coordinator is closed")

	// ErrQueueFull is returned when a propagation task is shed under backpressure.
	ErrQueueFull = zerr.New("propagation queue full")

	// ErrUnsupportedDriver is returned when a role is configured with an engine that cannot serve it.
	ErrUnsupportedDriver = zerr.New("unsupported store driver for role")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigInvalid is returned when the config file fails validation.
	ErrConfigInvalid = zerr.New("invalid configuration")

	// ErrInvalidPayload is returned when an entity payload is not an object.
	ErrInvalidPayload = zerr.New("payload must be a JSON or YAML object")

	// ErrUnsupportedFormat is returned for unknown output formats.
	ErrUnsupportedFormat = zerr.New("unsupported output format, expected yaml or json")

	// ErrConfigNotFound is returned when no config file can be found.
	ErrConfigNotFound = zerr.New("could not find concord.yaml")
)
