package app

import (
	"context"
	"fmt"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/engine/propagation"
	"go.trai.ch/concord/internal/engine/readpath"
	"go.trai.ch/zerr"
)

// WriteResult reports a write accepted by the canonical store. Propagation to
// the derived stores continues in the background.
type WriteResult struct {
	Key      domain.Key
	Version  domain.Version
	Accepted bool
	// Propagation is how each derived role took the new version at submit time.
	Propagation propagation.Result
}

// ReadResult is an entity as served by the read path.
type ReadResult struct {
	Key        domain.Key
	Payload    domain.Payload
	Version    domain.Version
	ServedFrom readpath.ServedFrom
}

// WriteEntity commits payload as the next version of the entity and hands it to propagation.
// An error means the canonical store did not accept the write.
func (a *App) WriteEntity(ctx context.Context, t domain.EntityType, id string, payload domain.Payload) (WriteResult, error) {
	key, err := domain.NewKey(t, id)
	if err != nil {
		return WriteResult{}, err
	}
	rt, err := a.session(ctx)
	if err != nil {
		return WriteResult{}, err
	}

	e, err := rt.stamper.Stamp(ctx, key, payload, false)
	if err != nil {
		return WriteResult{}, zerr.Wrap(err, "write entity")
	}
	return a.submit(ctx, rt, e), nil
}

// DeleteEntity commits a tombstone for the entity and removes it from every derived store.
func (a *App) DeleteEntity(ctx context.Context, t domain.EntityType, id string) (WriteResult, error) {
	key, err := domain.NewKey(t, id)
	if err != nil {
		return WriteResult{}, err
	}
	rt, err := a.session(ctx)
	if err != nil {
		return WriteResult{}, err
	}

	e, err := rt.stamper.Stamp(ctx, key, nil, true)
	if err != nil {
		return WriteResult{}, zerr.Wrap(err, "delete entity")
	}
	return a.submit(ctx, rt, e), nil
}

// submit never fails the write: a closed or saturated coordinator leaves
// convergence to reconciliation.
func (a *App) submit(ctx context.Context, rt *runtime, e domain.Entity) WriteResult {
	res, err := rt.coord.Submit(ctx, e)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("propagation of %s at version %d not scheduled: %v", e.Key, e.Version, err))
	}
	return WriteResult{Key: e.Key, Version: e.Version, Accepted: true, Propagation: res}
}

// ReadEntity returns the entity from the cache, falling back to the canonical store.
func (a *App) ReadEntity(ctx context.Context, t domain.EntityType, id string) (ReadResult, error) {
	key, err := domain.NewKey(t, id)
	if err != nil {
		return ReadResult{}, err
	}
	rt, err := a.session(ctx)
	if err != nil {
		return ReadResult{}, err
	}

	res, err := rt.reader.Read(ctx, key)
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Key:        key,
		Payload:    res.Entity.Payload,
		Version:    res.Entity.Version,
		ServedFrom: res.ServedFrom,
	}, nil
}

// Invalidate drops the cached record of the entity. The next read refills it.
func (a *App) Invalidate(ctx context.Context, t domain.EntityType, id string) error {
	key, err := domain.NewKey(t, id)
	if err != nil {
		return err
	}
	rt, err := a.session(ctx)
	if err != nil {
		return err
	}

	cache := rt.stores.Repository(domain.RoleCache)
	if cache == nil {
		return nil
	}
	if err := cache.Delete(ctx, key); err != nil {
		return zerr.With(zerr.Wrap(err, "invalidate cache"), "key", key.String())
	}
	return nil
}
