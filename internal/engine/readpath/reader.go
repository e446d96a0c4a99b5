// Package readpath serves entity reads from the cache, falling back to the canonical store.
package readpath

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/concord/internal/engine/flight"
	"go.trai.ch/zerr"
)

// RepopulateScope namespaces the single-flight keys of cache refills.
const RepopulateScope = "read-repopulate"

// ServedFrom names the store that answered a read.
type ServedFrom string

const (
	ServedFromCache     ServedFrom = "cache"
	ServedFromCanonical ServedFrom = "canonical"
)

// Result is the answer to a read.
type Result struct {
	Entity     domain.Entity
	ServedFrom ServedFrom
}

// Reader implements cache-aside reads. Concurrent misses for the same key
// share a single canonical fetch, whose result refills the cache.
type Reader struct {
	canonical   ports.CanonicalStore
	cache       ports.Repository
	markers     ports.MarkerStore
	events      ports.EventSink
	logger      ports.Logger
	tracer      ports.Tracer
	group       *flight.Group
	callTimeout time.Duration
	ttl         atomic.Pointer[domain.TTLPolicy]
	now         func() time.Time
}

// NewReader creates a Reader. cache may be nil, in which case every read goes to the canonical store.
func NewReader(
	canonical ports.CanonicalStore,
	cache ports.Repository,
	markers ports.MarkerStore,
	events ports.EventSink,
	logger ports.Logger,
	tracer ports.Tracer,
	ttl domain.TTLPolicy,
	callTimeout time.Duration,
) *Reader {
	r := &Reader{
		canonical:   canonical,
		cache:       cache,
		markers:     markers,
		events:      events,
		logger:      logger,
		tracer:      tracer,
		group:       flight.NewGroup(RepopulateScope, flight.DefaultShards),
		callTimeout: callTimeout,
		now:         time.Now,
	}
	r.SetTTL(ttl)
	return r
}

// SetTTL replaces the TTL policy used for refills.
func (r *Reader) SetTTL(ttl domain.TTLPolicy) {
	r.ttl.Store(&ttl)
}

// Read returns the entity for key from the fastest valid source.
// Cache failures are bypassed; canonical failures on a miss are returned.
// Cancelling ctx aborts only this caller's wait.
func (r *Reader) Read(ctx context.Context, key domain.Key) (Result, error) {
	start := r.now()
	ctx, span := r.tracer.Start(ctx, "read", ports.WithAttribute("key", key.String()))
	defer span.End()

	if r.cache == nil {
		return r.direct(ctx, key)
	}

	rec, err := r.lookup(ctx, key)
	switch {
	case err == nil:
		r.emit(ctx, domain.Event{Kind: domain.EventCacheHit, Key: key, Role: domain.RoleCache, Outcome: domain.OutcomeOK, Version: rec.VersionSeen, Latency: r.now().Sub(start)})
		span.SetAttribute("served_from", string(ServedFromCache))
		return Result{
			Entity:     domain.Entity{Key: key, Payload: rec.Payload, Version: rec.VersionSeen},
			ServedFrom: ServedFromCache,
		}, nil
	case errors.Is(err, domain.ErrNotFound):
		r.emit(ctx, domain.Event{Kind: domain.EventCacheMiss, Key: key, Role: domain.RoleCache, Outcome: domain.OutcomeOK})
	default:
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		r.emit(ctx, domain.Event{Kind: domain.EventCacheBypass, Key: key, Role: domain.RoleCache, Outcome: domain.OutcomeFailed, Err: err})
		return r.direct(ctx, key)
	}

	v, _, err := r.group.Do(ctx, key, func(ctx context.Context) (any, error) {
		return r.repopulate(ctx, key)
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	span.SetAttribute("served_from", string(ServedFromCanonical))
	e, _ := v.(domain.Entity)
	e.Payload = e.Payload.Clone()
	return Result{Entity: e, ServedFrom: ServedFromCanonical}, nil
}

// direct reads the canonical store without touching the cache.
func (r *Reader) direct(ctx context.Context, key domain.Key) (Result, error) {
	e, err := r.fetch(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{Entity: e, ServedFrom: ServedFromCanonical}, nil
}

func (r *Reader) lookup(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.cache.Get(ctx, key)
}

func (r *Reader) fetch(ctx context.Context, key domain.Key) (domain.Entity, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	e, err := r.canonical.Load(ctx, key)
	if err != nil {
		return domain.Entity{}, zerr.With(zerr.Wrap(err, "read canonical"), "key", key.String())
	}
	if e.Deleted {
		return domain.Entity{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "read canonical"), "key", key.String())
	}
	return e, nil
}

// repopulate fetches the canonical entity and writes it through to the cache.
func (r *Reader) repopulate(ctx context.Context, key domain.Key) (domain.Entity, error) {
	e, err := r.fetch(ctx, key)
	if err != nil {
		return domain.Entity{}, err
	}

	// A newer version already reached the cache role, such as a delete; do not resurrect an older one.
	if seen, err := r.markers.Seen(ctx, key, domain.RoleCache); err == nil && seen > e.Version {
		return e, nil
	}

	rec := domain.Project(e, domain.RoleCache)
	rec.TTL = r.ttl.Load().For(key.Type)

	wctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.cache.Put(wctx, rec); err != nil && domain.Classify(err) != domain.ClassStale {
		r.logger.Warn(fmt.Sprintf("cache refill failed for %s: %v", key, err))
	}
	return e, nil
}

func (r *Reader) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.callTimeout)
}

func (r *Reader) emit(ctx context.Context, ev domain.Event) {
	ev.At = r.now()
	r.events.Emit(ctx, ev)
}
