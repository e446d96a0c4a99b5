package domain

import "time"

// EventKind classifies an observability event.
type EventKind string

const (
	EventPropagation   EventKind = "propagation"
	EventCacheHit      EventKind = "cache_hit"
	EventCacheMiss     EventKind = "cache_miss"
	EventCacheBypass   EventKind = "cache_bypass"
	EventDiscrepancy   EventKind = "discrepancy"
	EventReconcilePass EventKind = "reconcile_pass"
	EventAlert         EventKind = "alert"
)

// Outcome is the result attached to an event.
type Outcome string

const (
	OutcomeQueued    Outcome = "queued"
	OutcomeApplied   Outcome = "applied"
	OutcomeCoalesced Outcome = "coalesced"
	OutcomeStale     Outcome = "stale"
	OutcomeRetry     Outcome = "retry"
	OutcomeFailed    Outcome = "failed"
	OutcomeShed      Outcome = "shed"
	OutcomeDetected  Outcome = "detected"
	OutcomeResolved  Outcome = "resolved"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeOK        Outcome = "ok"
)

// Event is emitted for every propagation attempt, cache lookup, discrepancy and reconciliation pass.
type Event struct {
	Kind    EventKind
	Key     Key
	Role    StoreRole
	Outcome Outcome
	Version Version
	Attempt int
	Latency time.Duration
	// Count carries the number of items a pass covered, when relevant.
	Count int
	Err   error
	At    time.Time
}
