// Package breaker guards a repository with a circuit breaker so that a
// failing store is skipped quickly instead of timing out on every call.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

const (
	// DefaultFailures is the number of consecutive failures that opens the breaker.
	DefaultFailures = 5
	// DefaultCooldown is how long the breaker stays open before probing again.
	DefaultCooldown = 10 * time.Second
)

var _ ports.Repository = (*Guard)(nil)

// Guard wraps a repository. While the breaker is open calls fail fast with
// an error classified as unavailable.
type Guard struct {
	next ports.Repository
	cb   *gobreaker.CircuitBreaker
}

// Option configures a Guard.
type Option func(*gobreaker.Settings)

// WithFailures sets the consecutive failure threshold.
func WithFailures(n uint32) Option {
	return func(st *gobreaker.Settings) {
		st.ReadyToTrip = func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= n
		}
	}
}

// WithCooldown sets the open-state duration.
func WithCooldown(d time.Duration) Option {
	return func(st *gobreaker.Settings) {
		st.Timeout = d
	}
}

// WithStateLogger reports breaker transitions to logger.
func WithStateLogger(logger ports.Logger) Option {
	return func(st *gobreaker.Settings) {
		st.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
		}
	}
}

// New wraps next.
func New(next ports.Repository, opts ...Option) *Guard {
	st := gobreaker.Settings{
		Name:         string(next.Role()),
		Timeout:      DefaultCooldown,
		IsSuccessful: healthy,
	}
	WithFailures(DefaultFailures)(&st)
	for _, opt := range opts {
		opt(&st)
	}
	return &Guard{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the current breaker state.
func (g *Guard) State() gobreaker.State {
	return g.cb.State()
}

// Role reports the role of the wrapped repository.
func (g *Guard) Role() domain.StoreRole {
	return g.next.Role()
}

// Get reads through the breaker.
func (g *Guard) Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Get(ctx, key)
	})
	if err != nil {
		return domain.StoreRecord{}, g.translate("get", err)
	}
	rec, _ := v.(domain.StoreRecord)
	return rec, nil
}

// Put writes through the breaker.
func (g *Guard) Put(ctx context.Context, rec domain.StoreRecord) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Put(ctx, rec)
	})
	return g.translate("put", err)
}

// Delete deletes through the breaker.
func (g *Guard) Delete(ctx context.Context, key domain.Key) error {
	_, err := g.cb.Execute(func() (interface{}, error) {
		return nil, g.next.Delete(ctx, key)
	})
	return g.translate("delete", err)
}

// Close closes the wrapped repository.
func (g *Guard) Close(ctx context.Context) error {
	return g.next.Close(ctx)
}

func (g *Guard) translate(op string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Unavailable(g.next.Role(), op, err)
	}
	return err
}

// healthy reports whether err says nothing about store health.
// Misses, version guards and caller cancellation do not count as failures.
func healthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	switch domain.Classify(err) {
	case domain.ClassStale, domain.ClassPermanent:
		return true
	default:
		return false
	}
}
