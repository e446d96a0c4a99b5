package app

import (
	"context"
	"errors"
	"fmt"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/engine/propagation"
	"go.trai.ch/concord/internal/engine/reconcile"
	"go.trai.ch/zerr"
)

// Stats summarizes the health of the coordinator.
type Stats struct {
	Propagation       propagation.Stats
	DeadLetters       int
	OpenDiscrepancies int
	Suppressed        int
	Exhausted         int
	CacheHits         int64
	CacheMisses       int64
	CacheBypasses     int64
	ReconcilePasses   int64
}

// ReplayReport summarizes a dead-letter replay.
type ReplayReport struct {
	Replayed int
	Failed   int
	// Dropped counts entries whose entity no longer exists at the canonical store.
	Dropped int
}

// Reconcile runs one reconciliation pass now.
func (a *App) Reconcile(ctx context.Context) (reconcile.Report, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return reconcile.Report{}, err
	}
	return rt.job.RunPass(ctx)
}

// Discrepancies lists the recorded discrepancies.
func (a *App) Discrepancies(ctx context.Context) ([]domain.Discrepancy, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return rt.stores.Discrepancies.List(ctx)
}

// Suppress acknowledges a discrepancy so reconciliation stops repairing it.
func (a *App) Suppress(ctx context.Context, t domain.EntityType, id string, role domain.StoreRole) error {
	key, err := domain.NewKey(t, id)
	if err != nil {
		return err
	}
	rt, err := a.session(ctx)
	if err != nil {
		return err
	}
	return rt.job.Suppress(ctx, key, role)
}

// DeadLetters lists propagation tasks that failed terminally.
func (a *App) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return rt.stores.DeadLetters.List(ctx)
}

// ReplayDeadLetters re-propagates the current canonical state for every
// dead-lettered key and role. Entries are removed once their role accepts it.
// A replay that fails again dead-letters afresh, and the fresh entry replaces
// the replayed one.
func (a *App) ReplayDeadLetters(ctx context.Context) (ReplayReport, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return ReplayReport{}, err
	}
	letters, err := rt.stores.DeadLetters.List(ctx)
	if err != nil {
		return ReplayReport{}, zerr.Wrap(err, "list dead letters")
	}

	var report ReplayReport
	for _, dl := range letters {
		e, err := rt.stores.Canonical.Load(ctx, dl.Key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			report.Dropped++
			a.remove(ctx, rt, dl.ID)
			continue
		case err != nil:
			return report, zerr.With(zerr.Wrap(err, "load canonical entity"), "key", dl.Key.String())
		}

		if _, err := rt.coord.Repair(ctx, e, dl.Role); err != nil {
			report.Failed++
			a.logger.Warn(fmt.Sprintf("replay of %s to %s failed: %v", dl.Key, dl.Role, err))
			a.supersede(ctx, rt, dl)
			continue
		}
		report.Replayed++
		a.remove(ctx, rt, dl.ID)
	}
	return report, nil
}

// supersede drops dl when a newer entry for the same key and role exists.
func (a *App) supersede(ctx context.Context, rt *runtime, dl domain.DeadLetter) {
	letters, err := rt.stores.DeadLetters.List(ctx)
	if err != nil {
		a.logger.Warn(fmt.Sprintf("failed to list dead letters: %v", err))
		return
	}
	for _, other := range letters {
		if other.ID != dl.ID && other.Key == dl.Key && other.Role == dl.Role {
			a.remove(ctx, rt, dl.ID)
			return
		}
	}
}

func (a *App) remove(ctx context.Context, rt *runtime, id string) {
	if err := rt.stores.DeadLetters.Remove(ctx, id); err != nil {
		a.logger.Warn(fmt.Sprintf("failed to remove dead letter %s: %v", id, err))
	}
}

// Stats returns coordinator counters together with ledger sizes.
func (a *App) Stats(ctx context.Context) (Stats, error) {
	rt, err := a.session(ctx)
	if err != nil {
		return Stats{}, err
	}
	letters, err := rt.stores.DeadLetters.List(ctx)
	if err != nil {
		return Stats{}, zerr.Wrap(err, "list dead letters")
	}
	discrepancies, err := rt.stores.Discrepancies.List(ctx)
	if err != nil {
		return Stats{}, zerr.Wrap(err, "list discrepancies")
	}

	st := Stats{
		Propagation:     rt.coord.Stats(),
		DeadLetters:     len(letters),
		CacheHits:       rt.recorder.Count(domain.EventCacheHit, domain.OutcomeOK),
		CacheMisses:     rt.recorder.Count(domain.EventCacheMiss, domain.OutcomeOK),
		CacheBypasses:   rt.recorder.Count(domain.EventCacheBypass, domain.OutcomeFailed),
		ReconcilePasses: rt.recorder.Count(domain.EventReconcilePass, domain.OutcomeOK),
	}
	for _, d := range discrepancies {
		switch {
		case d.Suppressed:
			st.Suppressed++
		case d.Exhausted:
			st.Exhausted++
		default:
			st.OpenDiscrepancies++
		}
	}
	return st, nil
}
