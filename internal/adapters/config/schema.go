package config

import "time"

// FileName is the configuration file discovered from the working directory.
const FileName = "concord.yaml"

// EnvConfigPath overrides discovery with an explicit file.
const EnvConfigPath = "CONCORD_CONFIG"

// File represents the structure of concord.yaml. Fields left out of the
// file keep their defaults.
type File struct {
	Version     string         `yaml:"version"`
	Log         LogDTO         `yaml:"log"`
	Metrics     MetricsDTO     `yaml:"metrics"`
	Influx      InfluxDTO      `yaml:"influx"`
	Stores      StoresDTO      `yaml:"stores"`
	Propagation PropagationDTO `yaml:"propagation"`
	Reconcile   ReconcileDTO   `yaml:"reconcile"`
	TTL         TTLDTO         `yaml:"ttl"`
	Versioning  VersioningDTO  `yaml:"versioning"`
}

// LogDTO configures logging.
type LogDTO struct {
	JSON bool `yaml:"json"`
}

// MetricsDTO configures the Prometheus endpoint.
type MetricsDTO struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
	Spans  bool   `yaml:"spans"`
}

// InfluxDTO configures the InfluxDB event export.
type InfluxDTO struct {
	URL    string `yaml:"url" validate:"omitempty,url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket" validate:"required_with=URL"`
}

// StoresDTO assigns an engine to each role.
type StoresDTO struct {
	Canonical StoreDTO `yaml:"canonical"`
	Graph     StoreDTO `yaml:"graph"`
	Cache     StoreDTO `yaml:"cache"`
	Analytics StoreDTO `yaml:"analytics"`
}

// StoreDTO locates one engine.
type StoreDTO struct {
	Driver   string `yaml:"driver" validate:"oneof=memory mongo neo4j redis badger cassandra"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// PropagationDTO configures the worker pool.
type PropagationDTO struct {
	Workers        int           `yaml:"workers" validate:"gte=1,lte=1024"`
	QueueSize      int           `yaml:"queue_size" validate:"gte=1"`
	Overflow       string        `yaml:"overflow" validate:"oneof=block shed"`
	EnqueueTimeout time.Duration `yaml:"enqueue_timeout" validate:"gte=0"`
	CallTimeout    time.Duration `yaml:"call_timeout" validate:"gte=0"`
	Retry          RetryDTO      `yaml:"retry"`
}

// RetryDTO bounds retries of transient failures.
type RetryDTO struct {
	Base        time.Duration `yaml:"base" validate:"gt=0"`
	Cap         time.Duration `yaml:"cap" validate:"gtefield=Base"`
	MaxAttempts int           `yaml:"max_attempts" validate:"gte=1"`
}

// ReconcileDTO configures the reconciliation job.
type ReconcileDTO struct {
	Interval      time.Duration `yaml:"interval" validate:"gte=0"`
	GracePeriod   time.Duration `yaml:"grace_period" validate:"gte=0"`
	MaxAttempts   int           `yaml:"max_attempts" validate:"gte=1"`
	BatchSize     int           `yaml:"batch_size" validate:"gte=1"`
	RatePerSecond float64       `yaml:"rate_per_second" validate:"gte=0"`
	Concurrency   int           `yaml:"concurrency" validate:"gte=1"`
}

// TTLDTO assigns cache lifetimes.
type TTLDTO struct {
	Profile time.Duration            `yaml:"profile" validate:"gt=0"`
	Search  time.Duration            `yaml:"search" validate:"gt=0"`
	PerType map[string]time.Duration `yaml:"per_type" validate:"dive,keys,entity_type,endkeys,gt=0"`
}

// VersioningDTO selects the version scheme.
type VersioningDTO struct {
	Mode string `yaml:"mode" validate:"oneof=hybrid counter"`
}
