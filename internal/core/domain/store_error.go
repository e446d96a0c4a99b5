package domain

import "errors"

// ErrorClass is the propagation-relevant category of a store failure.
type ErrorClass int

const (
	// ClassTransient failures are retried with backoff.
	ClassTransient ErrorClass = iota
	// ClassPermanent failures are dead-lettered without retry.
	ClassPermanent
	// ClassStale failures mean the store is already ahead; they are dropped.
	ClassStale
	// ClassUnavailable failures mean the cache is down; reads bypass it.
	ClassUnavailable
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassStale:
		return "stale"
	case ClassUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

func (c ErrorClass) sentinel() error {
	switch c {
	case ClassPermanent:
		return ErrPermanentStore
	case ClassStale:
		return ErrStaleVersion
	case ClassUnavailable:
		return ErrCacheUnavailable
	default:
		return ErrTransientStore
	}
}

// StoreError is a classified adapter failure. It unwraps to both the
// class sentinel and the driver error.
type StoreError struct {
	Class ErrorClass
	Role  StoreRole
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	msg := string(e.Role) + " " + e.Op + ": " + e.Class.sentinel().Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the class sentinel and the cause to errors.Is and errors.As.
func (e *StoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Class.sentinel()}
	}
	return []error{e.Class.sentinel(), e.Err}
}

// Transient classifies err as retryable.
func Transient(role StoreRole, op string, err error) error {
	return &StoreError{Class: ClassTransient, Role: role, Op: op, Err: err}
}

// Permanent classifies err as not retryable.
func Permanent(role StoreRole, op string, err error) error {
	return &StoreError{Class: ClassPermanent, Role: role, Op: op, Err: err}
}

// Stale reports that role already holds a version at least as new.
func Stale(role StoreRole, op string) error {
	return &StoreError{Class: ClassStale, Role: role, Op: op}
}

// Unavailable reports that the cache cannot serve requests.
func Unavailable(role StoreRole, op string, err error) error {
	return &StoreError{Class: ClassUnavailable, Role: role, Op: op, Err: err}
}

// Classify returns the class of err. Errors that carry no class, including
// unknown driver errors and deadline expiry, are transient.
func Classify(err error) ErrorClass {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Class
	}
	switch {
	case errors.Is(err, ErrStaleVersion):
		return ClassStale
	case errors.Is(err, ErrPermanentStore), errors.Is(err, ErrMissingTTL):
		return ClassPermanent
	case errors.Is(err, ErrCacheUnavailable):
		return ClassUnavailable
	default:
		return ClassTransient
	}
}
