package config

import (
	"os"
	"time"

	"go.trai.ch/concord/internal/core/domain"
)

func fromDomain(cfg *domain.Config) File {
	s := cfg.Settings
	perType := make(map[string]time.Duration, len(s.TTL.PerType))
	for t, d := range s.TTL.PerType {
		perType[string(t)] = d
	}
	return File{
		Version: "1",
		Log:     LogDTO{JSON: cfg.LogJSON},
		Metrics: MetricsDTO{Listen: cfg.MetricsListen, Spans: cfg.SpanMetrics},
		Influx: InfluxDTO{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		},
		Stores: StoresDTO{
			Canonical: storeFromDomain(cfg.Stores[domain.RoleCanonical]),
			Graph:     storeFromDomain(cfg.Stores[domain.RoleGraph]),
			Cache:     storeFromDomain(cfg.Stores[domain.RoleCache]),
			Analytics: storeFromDomain(cfg.Stores[domain.RoleAnalytics]),
		},
		Propagation: PropagationDTO{
			Workers:        s.Propagation.Workers,
			QueueSize:      s.Propagation.QueueSize,
			Overflow:       string(s.Propagation.Overflow),
			EnqueueTimeout: s.Propagation.EnqueueTimeout,
			CallTimeout:    s.Propagation.CallTimeout,
			Retry: RetryDTO{
				Base:        s.Propagation.Retry.Base,
				Cap:         s.Propagation.Retry.Cap,
				MaxAttempts: s.Propagation.Retry.MaxAttempts,
			},
		},
		Reconcile: ReconcileDTO{
			Interval:      s.Reconcile.Interval,
			GracePeriod:   s.Reconcile.GracePeriod,
			MaxAttempts:   s.Reconcile.MaxAttempts,
			BatchSize:     s.Reconcile.BatchSize,
			RatePerSecond: s.Reconcile.RatePerSecond,
			Concurrency:   s.Reconcile.Concurrency,
		},
		TTL: TTLDTO{
			Profile: s.TTL.Profile,
			Search:  s.TTL.Search,
			PerType: perType,
		},
		Versioning: VersioningDTO{Mode: string(s.VersionMode)},
	}
}

func storeFromDomain(sc domain.StoreConfig) StoreDTO {
	driver := sc.Driver
	if driver == "" {
		driver = domain.DriverMemory
	}
	return StoreDTO{
		Driver:   string(driver),
		DSN:      sc.DSN,
		Database: sc.Database,
		Username: sc.Username,
		Password: sc.Password,
	}
}

func (f *File) toDomain() *domain.Config {
	perType := make(map[domain.EntityType]time.Duration, len(f.TTL.PerType))
	for t, d := range f.TTL.PerType {
		perType[domain.EntityType(t)] = d
	}
	return &domain.Config{
		Settings: domain.Settings{
			Propagation: domain.PropagationPolicy{
				Workers:        f.Propagation.Workers,
				QueueSize:      f.Propagation.QueueSize,
				Overflow:       domain.OverflowPolicy(f.Propagation.Overflow),
				EnqueueTimeout: f.Propagation.EnqueueTimeout,
				CallTimeout:    f.Propagation.CallTimeout,
				Retry: domain.RetryPolicy{
					Base:        f.Propagation.Retry.Base,
					Cap:         f.Propagation.Retry.Cap,
					MaxAttempts: f.Propagation.Retry.MaxAttempts,
				},
			},
			Reconcile: domain.ReconcilePolicy{
				Interval:      f.Reconcile.Interval,
				GracePeriod:   f.Reconcile.GracePeriod,
				MaxAttempts:   f.Reconcile.MaxAttempts,
				BatchSize:     f.Reconcile.BatchSize,
				RatePerSecond: f.Reconcile.RatePerSecond,
				Concurrency:   f.Reconcile.Concurrency,
			},
			TTL: domain.TTLPolicy{
				Profile: f.TTL.Profile,
				Search:  f.TTL.Search,
				PerType: perType,
			},
			VersionMode: domain.VersionMode(f.Versioning.Mode),
		},
		Stores: map[domain.StoreRole]domain.StoreConfig{
			domain.RoleCanonical: f.Stores.Canonical.toDomain(),
			domain.RoleGraph:     f.Stores.Graph.toDomain(),
			domain.RoleCache:     f.Stores.Cache.toDomain(),
			domain.RoleAnalytics: f.Stores.Analytics.toDomain(),
		},
		LogJSON:       f.Log.JSON,
		MetricsListen: f.Metrics.Listen,
		SpanMetrics:   f.Metrics.Spans,
		Influx: domain.InfluxConfig{
			URL:    f.Influx.URL,
			Token:  f.Influx.Token,
			Org:    f.Influx.Org,
			Bucket: f.Influx.Bucket,
		},
	}
}

func (s StoreDTO) toDomain() domain.StoreConfig {
	return domain.StoreConfig{
		Driver:   domain.StoreDriver(s.Driver),
		DSN:      os.ExpandEnv(s.DSN),
		Database: s.Database,
		Username: s.Username,
		Password: os.ExpandEnv(s.Password),
	}
}
