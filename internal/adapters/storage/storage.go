// Package storage opens the engine configured for each store role.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.trai.ch/concord/internal/adapters/badger"
	"go.trai.ch/concord/internal/adapters/breaker"
	"go.trai.ch/concord/internal/adapters/cassandra"
	"go.trai.ch/concord/internal/adapters/memory"
	"go.trai.ch/concord/internal/adapters/mongo"
	"go.trai.ch/concord/internal/adapters/neo4j"
	"go.trai.ch/concord/internal/adapters/redis"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

// Stores holds one open repository per role and the ledgers that back the coordinator.
type Stores struct {
	Canonical     ports.CanonicalStore
	Derived       []ports.Repository
	Markers       ports.MarkerStore
	DeadLetters   ports.DeadLetterLog
	Discrepancies ports.DiscrepancyLog

	closers []func(context.Context) error
}

// Repository returns the derived repository serving role, or nil.
func (s *Stores) Repository(role domain.StoreRole) ports.Repository {
	for _, r := range s.Derived {
		if r.Role() == role {
			return r
		}
	}
	return nil
}

// Close releases every engine in reverse opening order.
func (s *Stores) Close(ctx context.Context) error {
	var errs error
	for _, closeFn := range slices.Backward(s.closers) {
		errs = errors.Join(errs, closeFn(ctx))
	}
	s.closers = nil
	return errs
}

// Opener connects the engines named in a configuration.
type Opener struct {
	logger ports.Logger
	// breakerOpts configure the circuit breaker put in front of every networked derived store.
	breakerOpts []breaker.Option
}

// NewOpener creates an Opener.
func NewOpener(logger ports.Logger, opts ...breaker.Option) *Opener {
	return &Opener{
		logger:      logger,
		breakerOpts: append([]breaker.Option{breaker.WithStateLogger(logger)}, opts...),
	}
}

// Open connects every role. On failure, engines opened so far are closed again.
//
//nolint:cyclop // one branch per driver
func (o *Opener) Open(ctx context.Context, cfg *domain.Config) (_ *Stores, err error) {
	s := &Stores{}
	defer func() {
		if err != nil {
			_ = s.Close(context.WithoutCancel(ctx))
		}
	}()

	canonicalCfg := cfg.Stores[domain.RoleCanonical]
	switch canonicalCfg.Driver {
	case domain.DriverMongo:
		c, err := mongo.Open(ctx, canonicalCfg)
		if err != nil {
			return nil, roleError(err, domain.RoleCanonical, canonicalCfg.Driver)
		}
		s.closers = append(s.closers, c.Close)
		s.Canonical = c
		s.Markers = c.Markers()
		s.DeadLetters = c.DeadLetters()
		s.Discrepancies = c.Discrepancies()
	case domain.DriverMemory, "":
		s.Canonical = memory.NewCanonical()
		s.DeadLetters = memory.NewDeadLetters()
		s.Discrepancies = memory.NewDiscrepancies()
	default:
		return nil, unsupported(domain.RoleCanonical, canonicalCfg.Driver)
	}

	graphCfg := cfg.Stores[domain.RoleGraph]
	switch graphCfg.Driver {
	case domain.DriverNeo4j:
		g, err := neo4j.Open(ctx, graphCfg)
		if err != nil {
			return nil, roleError(err, domain.RoleGraph, graphCfg.Driver)
		}
		s.closers = append(s.closers, g.Close)
		s.Derived = append(s.Derived, o.guard(g))
	case domain.DriverMemory, "":
		s.Derived = append(s.Derived, memory.NewStore(domain.RoleGraph))
	default:
		return nil, unsupported(domain.RoleGraph, graphCfg.Driver)
	}

	cacheCfg := cfg.Stores[domain.RoleCache]
	switch cacheCfg.Driver {
	case domain.DriverRedis:
		c, err := redis.Open(ctx, cacheCfg.DSN)
		if err != nil {
			return nil, roleError(err, domain.RoleCache, cacheCfg.Driver)
		}
		s.closers = append(s.closers, c.Close)
		s.Derived = append(s.Derived, o.guard(c))
	case domain.DriverBadger:
		c, err := badger.Open(cacheCfg.Database)
		if err != nil {
			return nil, roleError(err, domain.RoleCache, cacheCfg.Driver)
		}
		s.closers = append(s.closers, c.Close)
		s.Derived = append(s.Derived, o.guard(c))
	case domain.DriverMemory, "":
		s.Derived = append(s.Derived, memory.NewStore(domain.RoleCache))
	default:
		return nil, unsupported(domain.RoleCache, cacheCfg.Driver)
	}

	analyticsCfg := cfg.Stores[domain.RoleAnalytics]
	switch analyticsCfg.Driver {
	case domain.DriverCassandra:
		c, err := cassandra.Open(ctx, analyticsCfg)
		if err != nil {
			return nil, roleError(err, domain.RoleAnalytics, analyticsCfg.Driver)
		}
		s.closers = append(s.closers, c.Close)
		s.Derived = append(s.Derived, o.guard(c.Analytics()))
		// Markers live next to the analytics rows when Cassandra is available.
		s.Markers = c.Markers()
	case domain.DriverMemory, "":
		s.Derived = append(s.Derived, memory.NewStore(domain.RoleAnalytics))
	default:
		return nil, unsupported(domain.RoleAnalytics, analyticsCfg.Driver)
	}

	if s.Markers == nil {
		s.Markers = memory.NewMarkers()
	}
	o.logger.Info(fmt.Sprintf("stores ready: canonical=%s graph=%s cache=%s analytics=%s",
		driverName(canonicalCfg), driverName(graphCfg), driverName(cacheCfg), driverName(analyticsCfg)))
	return s, nil
}

func (o *Opener) guard(r ports.Repository) ports.Repository {
	return breaker.New(r, o.breakerOpts...)
}

func driverName(c domain.StoreConfig) string {
	if c.Driver == "" {
		return string(domain.DriverMemory)
	}
	return string(c.Driver)
}

func roleError(err error, role domain.StoreRole, driver domain.StoreDriver) error {
	return zerr.With(zerr.With(zerr.Wrap(err, "open store"), "role", string(role)), "driver", string(driver))
}

func unsupported(role domain.StoreRole, driver domain.StoreDriver) error {
	return roleError(domain.ErrUnsupportedDriver, role, driver)
}
