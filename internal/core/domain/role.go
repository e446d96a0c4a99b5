package domain

import (
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// StoreRole is the function a store plays. The core never branches on the engine behind a role.
type StoreRole string

const (
	// RoleCanonical is the authoritative document store.
	RoleCanonical StoreRole = "canonical"
	// RoleGraph holds relationship projections.
	RoleGraph StoreRole = "graph"
	// RoleCache holds TTL-bounded copies for reads.
	RoleCache StoreRole = "cache"
	// RoleAnalytics holds metric projections and version markers.
	RoleAnalytics StoreRole = "analytics"
)

// Roles lists every role, canonical first.
var Roles = []StoreRole{RoleCanonical, RoleGraph, RoleCache, RoleAnalytics}

// DerivedRoles are the roles fed by propagation, in fan-out order.
var DerivedRoles = []StoreRole{RoleGraph, RoleCache, RoleAnalytics}

// Derived reports whether r receives state through propagation.
func (r StoreRole) Derived() bool {
	return r == RoleGraph || r == RoleCache || r == RoleAnalytics
}

// ParseStoreRole converts a string into a StoreRole.
func ParseStoreRole(s string) (StoreRole, error) {
	r := StoreRole(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleCanonical, RoleGraph, RoleCache, RoleAnalytics:
		return r, nil
	default:
		return "", zerr.With(zerr.Wrap(ErrInvalidStoreRole, "parse store role"), "role", s)
	}
}

// StoreRecord is the projection of an entity held by one role.
type StoreRecord struct {
	Key         Key
	Role        StoreRole
	VersionSeen Version
	Payload     Payload
	// TTL bounds the lifetime of cache records. It is required for the cache role.
	TTL     time.Duration
	Deleted bool
}
