package domain

import "time"

// TaskStatus is the lifecycle state of a propagation task.
type TaskStatus int

const (
	// TaskPending is queued but not yet picked up.
	TaskPending TaskStatus = iota
	// TaskInFlight is being applied to its store.
	TaskInFlight
	// TaskSucceeded was applied, or found already applied.
	TaskSucceeded
	// TaskFailed exhausted its retries or hit a permanent error.
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskInFlight:
		return "in_flight"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// PropagationTask is a unit of work applying one entity version to one derived role.
type PropagationTask struct {
	Key     Key
	Role    StoreRole
	Version Version
	Attempt int
	Status  TaskStatus
}

// DeadLetter records a propagation task that failed terminally.
type DeadLetter struct {
	ID       string
	Key      Key
	Role     StoreRole
	Version  Version
	Attempts int
	Reason   string
	FailedAt time.Time
}

// Discrepancy records a derived role lagging the canonical version.
type Discrepancy struct {
	Key              Key
	Role             StoreRole
	CanonicalVersion Version
	ObservedVersion  Version
	DetectedAt       time.Time
	// Attempts counts auto-resolution attempts that failed.
	Attempts int
	// Exhausted is set once auto-resolution gives up. Exhausted
	// discrepancies stay recorded but are no longer retried.
	Exhausted  bool
	Suppressed bool
}

// Closed reports whether the observed version has caught up.
func (d Discrepancy) Closed() bool {
	return d.ObservedVersion >= d.CanonicalVersion
}
