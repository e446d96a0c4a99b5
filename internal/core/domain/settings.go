package domain

import (
	"slices"
	"time"
)

// OverflowPolicy decides what happens when the propagation queue is full.
type OverflowPolicy string

const (
	// OverflowBlock waits for queue space up to EnqueueTimeout, then sheds.
	OverflowBlock OverflowPolicy = "block"
	// OverflowShed drops the task immediately and leaves convergence to reconciliation.
	OverflowShed OverflowPolicy = "shed"
)

// VersionMode selects how the next version of an entity is computed.
type VersionMode string

const (
	// VersionHybrid uses max(current+1, wall clock milliseconds).
	VersionHybrid VersionMode = "hybrid"
	// VersionCounter uses current+1.
	VersionCounter VersionMode = "counter"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// Delay returns the backoff before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Cap {
			return p.Cap
		}
	}
	if d > p.Cap {
		return p.Cap
	}
	return d
}

// PropagationPolicy configures the coordinator worker pool.
type PropagationPolicy struct {
	Workers        int
	QueueSize      int
	Overflow       OverflowPolicy
	EnqueueTimeout time.Duration
	// CallTimeout is the deadline of a single adapter call, separate from backoff.
	CallTimeout time.Duration
	Retry       RetryPolicy
}

// TTLClass groups entity types that share a cache lifetime.
type TTLClass string

const (
	// ClassProfile covers records looked up by key, such as researcher profiles.
	ClassProfile TTLClass = "profile"
	// ClassSearch covers records mostly reached through search results.
	ClassSearch TTLClass = "search"
)

var ttlClasses = map[EntityType]TTLClass{
	EntityResearcher:  ClassProfile,
	EntityProject:     ClassProfile,
	EntityPublication: ClassSearch,
}

// ClassOf returns the TTL class of entity type t.
func ClassOf(t EntityType) TTLClass {
	if c, ok := ttlClasses[t]; ok {
		return c
	}
	return ClassProfile
}

// TTLPolicy assigns cache lifetimes per entity class.
type TTLPolicy struct {
	// Profile is the lifetime of profile class records.
	Profile time.Duration
	// Search is the lifetime of search class records.
	Search time.Duration
	// PerType overrides the class lifetime for specific entity types.
	PerType map[EntityType]time.Duration
}

// For returns the cache TTL for entities of type t. A zero class lifetime
// falls back to Profile.
func (p TTLPolicy) For(t EntityType) time.Duration {
	if d, ok := p.PerType[t]; ok && d > 0 {
		return d
	}
	if ClassOf(t) == ClassSearch && p.Search > 0 {
		return p.Search
	}
	return p.Profile
}

// ReconcilePolicy configures the reconciliation job.
type ReconcilePolicy struct {
	Interval time.Duration
	// GracePeriod is how long a derived role may lag before a discrepancy is raised.
	GracePeriod time.Duration
	MaxAttempts int
	BatchSize   int
	// RatePerSecond limits entity comparisons per second. Zero disables limiting.
	RatePerSecond float64
	Concurrency   int
}

// Settings holds every tunable of the coordinator.
type Settings struct {
	Propagation PropagationPolicy
	Reconcile   ReconcilePolicy
	TTL         TTLPolicy
	VersionMode VersionMode
}

// DefaultSettings returns the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		Propagation: PropagationPolicy{
			Workers:        8,
			QueueSize:      1024,
			Overflow:       OverflowBlock,
			EnqueueTimeout: 250 * time.Millisecond,
			CallTimeout:    2 * time.Second,
			Retry: RetryPolicy{
				Base:        100 * time.Millisecond,
				Cap:         5 * time.Second,
				MaxAttempts: 5,
			},
		},
		Reconcile: ReconcilePolicy{
			Interval:      5 * time.Minute,
			GracePeriod:   30 * time.Second,
			MaxAttempts:   3,
			BatchSize:     500,
			RatePerSecond: 200,
			Concurrency:   4,
		},
		TTL: TTLPolicy{
			Profile: 30 * time.Minute,
			Search:  15 * time.Minute,
		},
		VersionMode: VersionHybrid,
	}
}

// StoreDriver names the engine behind a role.
type StoreDriver string

const (
	DriverMemory    StoreDriver = "memory"
	DriverMongo     StoreDriver = "mongo"
	DriverNeo4j     StoreDriver = "neo4j"
	DriverRedis     StoreDriver = "redis"
	DriverBadger    StoreDriver = "badger"
	DriverCassandra StoreDriver = "cassandra"
)

// StoreConfig locates the engine serving one role.
type StoreConfig struct {
	Driver StoreDriver
	// DSN is the engine connection string or host list.
	DSN string
	// Database is the database, keyspace or path, depending on the driver.
	Database string
	Username string
	Password string
}

// InfluxConfig enables exporting events to InfluxDB.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Enabled reports whether the Influx sink is configured.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

// Config is the fully resolved configuration of a concord process.
type Config struct {
	Settings Settings
	Stores   map[StoreRole]StoreConfig
	// Path is the file the configuration was loaded from, empty for defaults.
	Path          string
	LogJSON       bool
	MetricsListen string
	// SpanMetrics traces engine operations into the span duration histogram.
	SpanMetrics bool
	Influx      InfluxConfig
}

// DefaultConfig returns a configuration serving every role from memory.
func DefaultConfig() *Config {
	return &Config{
		Settings: DefaultSettings(),
		Stores: map[StoreRole]StoreConfig{
			RoleCanonical: {Driver: DriverMemory},
			RoleGraph:     {Driver: DriverMemory},
			RoleCache:     {Driver: DriverMemory},
			RoleAnalytics: {Driver: DriverMemory},
		},
		SpanMetrics: true,
	}
}

var roleDrivers = map[StoreRole][]StoreDriver{
	RoleCanonical: {DriverMemory, DriverMongo},
	RoleGraph:     {DriverMemory, DriverNeo4j},
	RoleCache:     {DriverMemory, DriverRedis, DriverBadger},
	RoleAnalytics: {DriverMemory, DriverCassandra},
}

// Supports reports whether driver can serve role.
func (r StoreRole) Supports(driver StoreDriver) bool {
	return slices.Contains(roleDrivers[r], driver)
}
