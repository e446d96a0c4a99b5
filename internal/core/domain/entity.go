package domain

import (
	"maps"
	"strings"
	"time"

	"go.trai.ch/zerr"
)

// EntityType names a class of logical entity managed across the stores.
type EntityType string

const (
	// EntityResearcher is a person with a profile, collaborators and metrics.
	EntityResearcher EntityType = "researcher"
	// EntityProject is a funded project with members.
	EntityProject EntityType = "project"
	// EntityPublication is a paper with authors and usage counters.
	EntityPublication EntityType = "publication"
)

// EntityTypes lists every supported entity type in a stable order.
var EntityTypes = []EntityType{EntityResearcher, EntityProject, EntityPublication}

// Valid reports whether t is a supported entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityResearcher, EntityProject, EntityPublication:
		return true
	default:
		return false
	}
}

// ParseEntityType converts a string into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", zerr.With(zerr.Wrap(ErrInvalidEntityType, "parse entity type"), "type", s)
	}
	return t, nil
}

// Key is the stable identity of an entity across all stores.
type Key struct {
	Type EntityType
	ID   string
}

// NewKey validates and builds a Key.
func NewKey(t EntityType, id string) (Key, error) {
	if !t.Valid() {
		return Key{}, zerr.With(zerr.Wrap(ErrInvalidEntityType, "build key"), "type", string(t))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Key{}, zerr.With(zerr.Wrap(ErrEmptyEntityID, "build key"), "type", string(t))
	}
	return Key{Type: t, ID: id}, nil
}

// ParseKey parses the "type:id" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, zerr.With(zerr.Wrap(ErrEmptyEntityID, "parse key"), "key", s)
	}
	t, err := ParseEntityType(typ)
	if err != nil {
		return Key{}, err
	}
	return NewKey(t, id)
}

// String returns the "type:id" form of the key.
func (k Key) String() string {
	return string(k.Type) + ":" + k.ID
}

// Version orders the states of a single entity. Higher is newer.
type Version int64

// Payload is the schema-less body of an entity.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return Payload{}
	}
	return maps.Clone(p)
}

// Entity is the authoritative state of a logical object as held by the canonical store.
type Entity struct {
	Key       Key
	Payload   Payload
	Version   Version
	UpdatedAt time.Time
	// Deleted marks a tombstone. Tombstones keep their version so that
	// derived stores never resurrect an older state.
	Deleted bool
}
