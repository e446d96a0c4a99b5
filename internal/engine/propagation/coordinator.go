// Package propagation fans committed canonical entities out to the derived stores.
package propagation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/concord/internal/engine/flight"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

type task struct {
	role   domain.StoreRole
	entity domain.Entity
}

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Applied   int64
	Coalesced int64
	Stale     int64
	Retried   int64
	Failed    int64
	Shed      int64
	InFlight  int
	Queued    int
}

// Result maps each derived role to the outcome of propagating one entity.
type Result map[domain.StoreRole]domain.Outcome

// Coordinator applies entity versions to the derived stores through a bounded
// worker pool. At most one task per (key, role) is in flight; versions offered
// meanwhile are coalesced into a single follow-up apply of the newest one.
type Coordinator struct {
	repos         map[domain.StoreRole]ports.Repository
	roles         []domain.StoreRole
	markers       ports.MarkerStore
	deadLetters   ports.DeadLetterLog
	discrepancies ports.DiscrepancyLog
	events        ports.EventSink
	logger        ports.Logger
	tracer        ports.Tracer

	policy domain.PropagationPolicy
	ttl    atomic.Pointer[domain.TTLPolicy]
	slots  *flight.Slots

	queue  chan task
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	applied, coalesced, stale, retried, failed, shed atomic.Int64

	now   func() time.Time
	newID func() string
}

// NewCoordinator creates a coordinator and starts its workers.
// repos holds one repository per derived role; roles without a repository are skipped.
func NewCoordinator(
	repos []ports.Repository,
	markers ports.MarkerStore,
	deadLetters ports.DeadLetterLog,
	discrepancies ports.DiscrepancyLog,
	events ports.EventSink,
	logger ports.Logger,
	tracer ports.Tracer,
	policy domain.PropagationPolicy,
	ttl domain.TTLPolicy,
) *Coordinator {
	if policy.Workers <= 0 {
		policy.Workers = 1
	}
	if policy.QueueSize < 0 {
		policy.QueueSize = 0
	}
	if policy.Retry.MaxAttempts <= 0 {
		policy.Retry.MaxAttempts = 1
	}

	c := &Coordinator{
		repos:         make(map[domain.StoreRole]ports.Repository, len(repos)),
		markers:       markers,
		deadLetters:   deadLetters,
		discrepancies: discrepancies,
		events:        events,
		logger:        logger,
		tracer:        tracer,
		policy:        policy,
		slots:         flight.NewSlots(flight.DefaultShards),
		queue:         make(chan task, policy.QueueSize),
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, r := range repos {
		c.repos[r.Role()] = r
	}
	for _, role := range domain.DerivedRoles {
		if _, ok := c.repos[role]; ok {
			c.roles = append(c.roles, role)
		}
	}
	c.SetTTL(ttl)

	c.ctx, c.cancel = context.WithCancel(context.Background())
	for range policy.Workers {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// SetTTL replaces the cache TTL policy used for subsequent applies.
func (c *Coordinator) SetTTL(ttl domain.TTLPolicy) {
	c.ttl.Store(&ttl)
}

// Roles returns the derived roles this coordinator feeds.
func (c *Coordinator) Roles() []domain.StoreRole {
	return c.roles
}

// Submit schedules e for every derived role and returns without waiting for
// the applies. ctx only bounds the wait for queue space.
func (c *Coordinator) Submit(ctx context.Context, e domain.Entity) (Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, domain.ErrCoordinatorClosed
	}

	res := make(Result, len(c.roles))
	for _, role := range c.roles {
		if !c.slots.Acquire(role, e) {
			c.coalesced.Add(1)
			c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: domain.OutcomeCoalesced, Version: e.Version})
			res[role] = domain.OutcomeCoalesced
			continue
		}
		if !c.enqueue(ctx, task{role: role, entity: e}) {
			c.slots.Release(role, e.Key)
			c.shed.Add(1)
			c.logger.Warn(fmt.Sprintf("propagation queue full, shed %s for %s at version %d", role, e.Key, e.Version))
			c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: domain.OutcomeShed, Version: e.Version, Err: domain.ErrQueueFull})
			res[role] = domain.OutcomeShed
			continue
		}
		res[role] = domain.OutcomeQueued
	}
	return res, nil
}

func (c *Coordinator) enqueue(ctx context.Context, t task) bool {
	select {
	case c.queue <- t:
		return true
	default:
	}
	if c.policy.Overflow == domain.OverflowShed || c.policy.EnqueueTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(c.policy.EnqueueTimeout)
	defer timer.Stop()
	select {
	case c.queue <- t:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for t := range c.queue {
		c.drain(c.ctx, t.role, t.entity)
	}
}

// drain applies e and then every newer version coalesced into the slot meanwhile.
func (c *Coordinator) drain(ctx context.Context, role domain.StoreRole, e domain.Entity) {
	for {
		_, _ = c.apply(ctx, role, e, false)
		next, ok := c.slots.Next(role, e.Key)
		if !ok {
			return
		}
		e = next
	}
}

// Propagate synchronously applies e to every derived role and reports each outcome.
// Roles are independent: a failing role does not stop the others.
func (c *Coordinator) Propagate(ctx context.Context, e domain.Entity) Result {
	res := make(Result, len(c.roles))
	var mu sync.Mutex
	var g errgroup.Group
	for _, role := range c.roles {
		g.Go(func() error {
			outcome, _ := c.PropagateRole(ctx, e, role)
			mu.Lock()
			res[role] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// PropagateRole synchronously applies e to one role. When an apply for the
// same key and role is already in flight, e is coalesced into it instead.
func (c *Coordinator) PropagateRole(ctx context.Context, e domain.Entity, role domain.StoreRole) (domain.Outcome, error) {
	return c.propagateRole(ctx, e, role, false)
}

// Repair is PropagateRole without the version marker precheck. Reconciliation
// uses it because the store, not the marker, was observed to lag.
func (c *Coordinator) Repair(ctx context.Context, e domain.Entity, role domain.StoreRole) (domain.Outcome, error) {
	return c.propagateRole(ctx, e, role, true)
}

func (c *Coordinator) propagateRole(ctx context.Context, e domain.Entity, role domain.StoreRole, force bool) (domain.Outcome, error) {
	if _, ok := c.repos[role]; !ok {
		return domain.OutcomeFailed, zerr.With(zerr.Wrap(domain.ErrInvalidStoreRole, "propagate"), "role", string(role))
	}
	if !c.slots.Acquire(role, e) {
		c.coalesced.Add(1)
		c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: domain.OutcomeCoalesced, Version: e.Version})
		return domain.OutcomeCoalesced, nil
	}

	outcome, err := c.apply(ctx, role, e, force)
	for {
		next, ok := c.slots.Next(role, e.Key)
		if !ok {
			return outcome, err
		}
		e = next
		outcome, err = c.apply(ctx, role, e, false)
	}
}

// apply runs one propagation task to completion: marker precheck, projection,
// bounded retries, marker update and discrepancy resolution.
//
//nolint:cyclop // retry state machine
func (c *Coordinator) apply(ctx context.Context, role domain.StoreRole, e domain.Entity, force bool) (domain.Outcome, error) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "propagate",
		ports.WithAttribute("key", e.Key.String()),
		ports.WithAttribute("role", string(role)),
		ports.WithAttribute("version", int64(e.Version)),
	)
	defer span.End()

	t := domain.PropagationTask{Key: e.Key, Role: role, Version: e.Version, Status: domain.TaskInFlight}

	if force {
		span.SetAttribute("repair", true)
	} else if seen, err := c.markers.Seen(ctx, e.Key, role); err != nil {
		c.logger.Warn(fmt.Sprintf("version marker unavailable for %s %s: %v", role, e.Key, err))
	} else if seen >= e.Version {
		c.stale.Add(1)
		c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: domain.OutcomeStale, Version: e.Version, Latency: c.now().Sub(start)})
		return domain.OutcomeStale, nil
	}

	rec := domain.Project(e, role)
	if role == domain.RoleCache {
		rec.TTL = c.ttl.Load().For(e.Key.Type)
	}
	repo := c.repos[role]

	outcome := domain.OutcomeApplied
	for {
		t.Attempt++
		err := c.call(ctx, func(ctx context.Context) error {
			if e.Deleted {
				return repo.Delete(ctx, e.Key)
			}
			return repo.Put(ctx, rec)
		})
		if err == nil {
			break
		}

		class := domain.Classify(err)
		if class == domain.ClassStale {
			outcome = domain.OutcomeStale
			break
		}
		if class == domain.ClassPermanent || t.Attempt >= c.policy.Retry.MaxAttempts {
			t.Status = domain.TaskFailed
			c.fail(ctx, t, err, start)
			span.RecordError(err)
			return domain.OutcomeFailed, err
		}

		c.retried.Add(1)
		c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: domain.OutcomeRetry, Version: e.Version, Attempt: t.Attempt, Err: err})
		if werr := sleep(ctx, c.policy.Retry.Delay(t.Attempt)); werr != nil {
			// Shutdown mid-retry: no dead letter, reconciliation restores convergence.
			span.RecordError(werr)
			return domain.OutcomeFailed, werr
		}
	}

	t.Status = domain.TaskSucceeded
	if err := c.markers.Mark(ctx, e.Key, role, e.Version); err != nil {
		c.logger.Warn(fmt.Sprintf("failed to record version marker for %s %s: %v", role, e.Key, err))
	}
	c.resolveClosed(ctx, e, role)

	if outcome == domain.OutcomeStale {
		c.stale.Add(1)
	} else {
		c.applied.Add(1)
	}
	span.SetAttribute("outcome", string(outcome))
	c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: e.Key, Role: role, Outcome: outcome, Version: e.Version, Attempt: t.Attempt, Latency: c.now().Sub(start)})
	return outcome, nil
}

func (c *Coordinator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.policy.CallTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.policy.CallTimeout)
	defer cancel()
	return fn(ctx)
}

func (c *Coordinator) fail(ctx context.Context, t domain.PropagationTask, cause error, start time.Time) {
	c.failed.Add(1)
	dl := domain.DeadLetter{
		ID:       c.newID(),
		Key:      t.Key,
		Role:     t.Role,
		Version:  t.Version,
		Attempts: t.Attempt,
		Reason:   cause.Error(),
		FailedAt: c.now(),
	}
	if err := c.deadLetters.Append(ctx, dl); err != nil {
		c.logger.Error(zerr.With(zerr.Wrap(err, "failed to append dead letter"), "key", t.Key.String()))
	}
	c.emit(ctx, domain.Event{Kind: domain.EventPropagation, Key: t.Key, Role: t.Role, Outcome: domain.OutcomeFailed, Version: t.Version, Attempt: t.Attempt, Latency: c.now().Sub(start), Err: cause})
}

// resolveClosed drops a recorded discrepancy once the applied version closes it.
func (c *Coordinator) resolveClosed(ctx context.Context, e domain.Entity, role domain.StoreRole) {
	d, ok, err := c.discrepancies.Get(ctx, e.Key, role)
	if err != nil || !ok || e.Version < d.CanonicalVersion {
		return
	}
	if err := c.discrepancies.Resolve(ctx, e.Key, role); err != nil {
		c.logger.Warn(fmt.Sprintf("failed to resolve discrepancy for %s %s: %v", role, e.Key, err))
		return
	}
	c.emit(ctx, domain.Event{Kind: domain.EventDiscrepancy, Key: e.Key, Role: role, Outcome: domain.OutcomeResolved, Version: e.Version})
}

func (c *Coordinator) emit(ctx context.Context, ev domain.Event) {
	if ev.At.IsZero() {
		ev.At = c.now()
	}
	c.events.Emit(ctx, ev)
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Applied:   c.applied.Load(),
		Coalesced: c.coalesced.Load(),
		Stale:     c.stale.Load(),
		Retried:   c.retried.Load(),
		Failed:    c.failed.Load(),
		Shed:      c.shed.Load(),
		InFlight:  c.slots.InFlight(),
		Queued:    len(c.queue),
	}
}

// Close stops accepting work and waits for queued tasks to finish. When ctx
// expires first, in-flight retries are abandoned and ctx.Err() is returned.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
