package neo4j

import (
	"fmt"

	"go.trai.ch/concord/internal/adapters/wire"
	"go.trai.ch/concord/internal/core/domain"
)

var labels = map[domain.EntityType]string{
	domain.EntityResearcher:  "Researcher",
	domain.EntityProject:     "Project",
	domain.EntityPublication: "Publication",
}

// relation describes one relationship field of a projection.
// Inbound relations point from the referenced node to the owner.
type relation struct {
	Field   string
	Type    string
	Target  string
	Inbound bool
}

var relations = map[domain.EntityType][]relation{
	domain.EntityResearcher: {
		{Field: domain.FieldCollaborators, Type: "COLLABORATES_WITH", Target: "Researcher"},
		{Field: domain.FieldSupervisor, Type: "SUPERVISES", Target: "Researcher", Inbound: true},
		{Field: domain.FieldMentors, Type: "MENTORS", Target: "Researcher", Inbound: true},
		{Field: domain.FieldDepartment, Type: "BELONGS_TO", Target: "Department"},
	},
	domain.EntityProject: {
		{Field: domain.FieldMembers, Type: "MEMBER_OF", Target: "Researcher", Inbound: true},
		{Field: domain.FieldDepartment, Type: "BELONGS_TO", Target: "Department"},
	},
	domain.EntityPublication: {
		{Field: domain.FieldAuthors, Type: "AUTHORED", Target: "Researcher", Inbound: true},
	},
}

func label(t domain.EntityType) (string, error) {
	l, ok := labels[t]
	if !ok {
		return "", domain.Permanent(domain.RoleGraph, "label", domain.ErrInvalidEntityType)
	}
	return l, nil
}

// linkQuery merges the edges of rel owned by the node identified by $id.
func linkQuery(owner string, rel relation) string {
	pattern := "(n)-[r:%s {owner: $key}]->(m)"
	if rel.Inbound {
		pattern = "(m)-[r:%s {owner: $key}]->(n)"
	}
	return fmt.Sprintf(`MATCH (n:%s {id: $id})
UNWIND $targets AS target
MERGE (m:%s {id: target})
MERGE `+pattern, owner, rel.Target, rel.Type)
}

// properties converts a projection into node properties. Neo4j stores only
// scalars and homogeneous lists, so other values live in the payload blob only.
func properties(rec domain.StoreRecord) (map[string]any, error) {
	blob, err := wire.EncodePayload(rec.Payload)
	if err != nil {
		return nil, err
	}
	props := map[string]any{
		"id":      rec.Key.ID,
		"version": int64(rec.VersionSeen),
		"payload": string(blob),
	}
	for k, v := range rec.Payload {
		if k == "id" || k == "version" || k == "payload" {
			continue
		}
		switch t := v.(type) {
		case string, bool, int64, float64:
			props[k] = t
		case int:
			props[k] = int64(t)
		case []string, []any:
			if list := domain.StringList(t); len(list) > 0 {
				props[k] = list
			}
		}
	}
	return props, nil
}
