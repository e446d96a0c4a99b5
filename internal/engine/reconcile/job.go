// Package reconcile audits the derived stores against the canonical store and repairs divergence.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Repairer re-propagates the canonical state of an entity to one role.
type Repairer interface {
	Repair(ctx context.Context, e domain.Entity, role domain.StoreRole) (domain.Outcome, error)
}

// Report summarizes one reconciliation pass.
type Report struct {
	Scanned   int
	Detected  int
	Resolved  int
	Exhausted int
	// Open is the number of discrepancies still recorded after the pass.
	Open     int
	Duration time.Duration
}

type counters struct {
	scanned, detected, resolved, exhausted atomic.Int64
}

// Job compares every canonical entity with the version each derived role
// holds, records lag beyond the grace period as discrepancies, and repairs
// them through the coordinator. The canonical store always wins.
type Job struct {
	canonical     ports.CanonicalStore
	repos         map[domain.StoreRole]ports.Repository
	roles         []domain.StoreRole
	repairer      Repairer
	discrepancies ports.DiscrepancyLog
	events        ports.EventSink
	logger        ports.Logger
	tracer        ports.Tracer

	policy atomic.Pointer[domain.ReconcilePolicy]
	passMu sync.Mutex
	now    func() time.Time

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewJob creates a reconciliation job over the given derived repositories.
func NewJob(
	canonical ports.CanonicalStore,
	repos []ports.Repository,
	repairer Repairer,
	discrepancies ports.DiscrepancyLog,
	events ports.EventSink,
	logger ports.Logger,
	tracer ports.Tracer,
	policy domain.ReconcilePolicy,
) *Job {
	j := &Job{
		canonical:     canonical,
		repos:         make(map[domain.StoreRole]ports.Repository, len(repos)),
		repairer:      repairer,
		discrepancies: discrepancies,
		events:        events,
		logger:        logger,
		tracer:        tracer,
		now:           time.Now,
	}
	for _, r := range repos {
		j.repos[r.Role()] = r
	}
	for _, role := range domain.DerivedRoles {
		if _, ok := j.repos[role]; ok {
			j.roles = append(j.roles, role)
		}
	}
	j.SetPolicy(policy)
	return j
}

// SetPolicy replaces the policy. A running loop picks up a new interval after its next tick.
func (j *Job) SetPolicy(p domain.ReconcilePolicy) {
	if p.BatchSize <= 0 {
		p.BatchSize = 100
	}
	if p.Concurrency <= 0 {
		p.Concurrency = 1
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	j.policy.Store(&p)
}

// Policy returns the current policy.
func (j *Job) Policy() domain.ReconcilePolicy {
	return *j.policy.Load()
}

// Start runs passes on the policy interval until ctx is cancelled or Stop is called.
func (j *Job) Start(ctx context.Context) {
	j.loopMu.Lock()
	defer j.loopMu.Unlock()
	if j.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	j.cancel = cancel
	j.done = make(chan struct{})

	go j.loop(ctx, j.done)
}

func (j *Job) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := j.Policy().Interval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := j.RunPass(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				j.logger.Error(zerr.Wrap(err, "reconciliation pass failed"))
			} else if report.Detected > 0 {
				j.logger.Info(fmt.Sprintf("reconciliation pass: scanned %d, detected %d, resolved %d, exhausted %d",
					report.Scanned, report.Detected, report.Resolved, report.Exhausted))
			}
			if next := j.Policy().Interval; next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// Stop ends the loop started by Start and waits for an in-progress pass.
func (j *Job) Stop() {
	j.loopMu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunPass scans the canonical store once. Passes never overlap.
func (j *Job) RunPass(ctx context.Context) (Report, error) {
	j.passMu.Lock()
	defer j.passMu.Unlock()

	start := j.now()
	ctx, span := j.tracer.Start(ctx, "reconcile.pass")
	defer span.End()

	p := j.Policy()
	var limiter *rate.Limiter
	if p.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(p.RatePerSecond), p.BatchSize)
	}

	var c counters
	after := domain.Key{}
	for {
		batch, err := j.canonical.Scan(ctx, after, p.BatchSize)
		if err != nil {
			span.RecordError(err)
			return Report{}, zerr.Wrap(err, "scan canonical store")
		}
		if len(batch) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.Concurrency)
		for _, e := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					_ = g.Wait()
					return Report{}, err
				}
			}
			g.Go(func() error {
				c.scanned.Add(1)
				j.check(gctx, e, p, &c)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		after = batch[len(batch)-1].Key
		if len(batch) < p.BatchSize {
			break
		}
	}

	open, err := j.discrepancies.List(ctx)
	if err != nil {
		return Report{}, zerr.Wrap(err, "list discrepancies")
	}

	report := Report{
		Scanned:   int(c.scanned.Load()),
		Detected:  int(c.detected.Load()),
		Resolved:  int(c.resolved.Load()),
		Exhausted: int(c.exhausted.Load()),
		Open:      len(open),
		Duration:  j.now().Sub(start),
	}
	span.SetAttribute("scanned", report.Scanned)
	span.SetAttribute("detected", report.Detected)
	j.events.Emit(ctx, domain.Event{
		Kind:    domain.EventReconcilePass,
		Outcome: domain.OutcomeOK,
		Count:   report.Scanned,
		Latency: report.Duration,
		At:      j.now(),
	})
	return report, nil
}

// check compares e against every derived role.
func (j *Job) check(ctx context.Context, e domain.Entity, p domain.ReconcilePolicy, c *counters) {
	for _, role := range j.roles {
		observed, present, err := j.observe(ctx, e.Key, role)
		if err != nil {
			j.logger.Warn(fmt.Sprintf("reconcile: cannot observe %s %s: %v", role, e.Key, err))
			continue
		}

		existing, recorded, err := j.discrepancies.Get(ctx, e.Key, role)
		if err != nil {
			j.logger.Warn(fmt.Sprintf("reconcile: cannot read discrepancy for %s %s: %v", role, e.Key, err))
			continue
		}

		if !lagging(e, role, observed, present) {
			if recorded {
				j.resolve(ctx, e, role, c)
			}
			continue
		}
		if j.now().Sub(e.UpdatedAt) < p.GracePeriod {
			continue
		}
		if recorded && existing.CanonicalVersion == e.Version && (existing.Suppressed || existing.Exhausted) {
			continue
		}

		d := domain.Discrepancy{
			Key:              e.Key,
			Role:             role,
			CanonicalVersion: e.Version,
			ObservedVersion:  observed,
			DetectedAt:       j.now(),
		}
		if recorded && existing.CanonicalVersion == e.Version {
			d.DetectedAt = existing.DetectedAt
			d.Attempts = existing.Attempts
		}
		if err := j.discrepancies.Upsert(ctx, d); err != nil {
			j.logger.Warn(fmt.Sprintf("reconcile: cannot record discrepancy for %s %s: %v", role, e.Key, err))
			continue
		}
		c.detected.Add(1)
		j.events.Emit(ctx, domain.Event{Kind: domain.EventDiscrepancy, Key: e.Key, Role: role, Outcome: domain.OutcomeDetected, Version: e.Version, At: j.now()})

		j.repair(ctx, e, d, p, c)
	}
}

func (j *Job) repair(ctx context.Context, e domain.Entity, d domain.Discrepancy, p domain.ReconcilePolicy, c *counters) {
	outcome, err := j.repairer.Repair(ctx, e, d.Role)
	switch {
	case err == nil && (outcome == domain.OutcomeApplied || outcome == domain.OutcomeStale):
		// The coordinator drops the entry once the applied version closes it.
		c.resolved.Add(1)
		return
	case err == nil:
		// Coalesced into an in-flight apply, which resolves the entry when it lands.
		return
	}

	d.Attempts++
	if d.Attempts >= p.MaxAttempts {
		d.Exhausted = true
		c.exhausted.Add(1)
		alert := zerr.With(zerr.Wrap(domain.ErrReconciliationExhausted, err.Error()), "key", e.Key.String())
		j.logger.Error(zerr.With(alert, "role", string(d.Role)))
		j.events.Emit(ctx, domain.Event{Kind: domain.EventAlert, Key: e.Key, Role: d.Role, Outcome: domain.OutcomeExhausted, Version: e.Version, Attempt: d.Attempts, Err: alert, At: j.now()})
	}
	if uerr := j.discrepancies.Upsert(ctx, d); uerr != nil {
		j.logger.Warn(fmt.Sprintf("reconcile: cannot update discrepancy for %s %s: %v", d.Role, e.Key, uerr))
	}
}

func (j *Job) resolve(ctx context.Context, e domain.Entity, role domain.StoreRole, c *counters) {
	if err := j.discrepancies.Resolve(ctx, e.Key, role); err != nil {
		j.logger.Warn(fmt.Sprintf("reconcile: cannot resolve discrepancy for %s %s: %v", role, e.Key, err))
		return
	}
	c.resolved.Add(1)
	j.events.Emit(ctx, domain.Event{Kind: domain.EventDiscrepancy, Key: e.Key, Role: role, Outcome: domain.OutcomeResolved, Version: e.Version, At: j.now()})
}

// observe returns the version role holds for key and whether a record exists.
func (j *Job) observe(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Version, bool, error) {
	rec, err := j.repos[role].Get(ctx, key)
	switch {
	case err == nil:
		return rec.VersionSeen, true, nil
	case errors.Is(err, domain.ErrNotFound):
		return 0, false, nil
	default:
		return 0, false, err
	}
}

// lagging reports whether role's state is behind e. An absent cache entry is
// never lagging: expiry is normal and reads refill it.
func lagging(e domain.Entity, role domain.StoreRole, observed domain.Version, present bool) bool {
	if e.Deleted {
		return present
	}
	if !present {
		return role != domain.RoleCache
	}
	return observed < e.Version
}

// Suppress marks the discrepancy for key and role as acknowledged so it is no
// longer repaired. It stays suppressed until the canonical version changes.
func (j *Job) Suppress(ctx context.Context, key domain.Key, role domain.StoreRole) error {
	d, ok, err := j.discrepancies.Get(ctx, key, role)
	if err != nil {
		return err
	}
	if !ok {
		return zerr.With(zerr.With(zerr.Wrap(domain.ErrNotFound, "suppress discrepancy"), "key", key.String()), "role", string(role))
	}
	d.Suppressed = true
	return j.discrepancies.Upsert(ctx, d)
}
