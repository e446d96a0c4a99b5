package domain

// Relationship fields understood by the graph role.
const (
	FieldCollaborators = "collaborators"
	FieldSupervisor    = "supervisor"
	FieldMentors       = "mentors"
	FieldMembers       = "members"
	FieldAuthors       = "authors"
	FieldDepartment    = "department"
)

// graphFields are copied verbatim into the graph projection.
var graphFields = map[EntityType][]string{
	EntityResearcher: {
		"name", "email", FieldDepartment, "position", "h_index", "publication_count", "orcid_id",
		FieldCollaborators, FieldSupervisor, FieldMentors,
	},
	EntityProject: {
		"title", "status", FieldDepartment, FieldMembers,
	},
	EntityPublication: {
		"title", "year", "doi", "venue", FieldAuthors,
	},
}

// analyticsFields are copied verbatim into the analytics projection.
var analyticsFields = map[EntityType][]string{
	EntityResearcher: {
		FieldDepartment, "h_index", "total_publications", "citation_count", "collaboration_score",
	},
	EntityProject: {
		FieldDepartment, "status", "funding_total",
	},
	EntityPublication: {
		"year", "citation_count", "download_count", "view_count", "h_index_contribution",
	},
}

// Project maps an entity onto the schema of role. It has no side effects.
// Cache records carry the full payload; graph and analytics records keep only
// the fields those stores model. Tombstones project to deleted records.
func Project(e Entity, role StoreRole) StoreRecord {
	rec := StoreRecord{
		Key:         e.Key,
		Role:        role,
		VersionSeen: e.Version,
		Deleted:     e.Deleted,
	}
	if e.Deleted {
		return rec
	}

	switch role {
	case RoleGraph:
		rec.Payload = pick(e.Payload, graphFields[e.Key.Type])
	case RoleAnalytics:
		rec.Payload = pick(e.Payload, analyticsFields[e.Key.Type])
		addDerivedMetrics(e, rec.Payload)
	default:
		rec.Payload = e.Payload.Clone()
	}
	return rec
}

func pick(p Payload, fields []string) Payload {
	out := make(Payload, len(fields))
	for _, f := range fields {
		if v, ok := p[f]; ok {
			out[f] = v
		}
	}
	return out
}

func addDerivedMetrics(e Entity, out Payload) {
	switch e.Key.Type {
	case EntityResearcher:
		out["collaborator_count"] = len(StringList(e.Payload[FieldCollaborators]))
	case EntityProject:
		out["member_count"] = len(StringList(e.Payload[FieldMembers]))
	case EntityPublication:
		out["author_count"] = len(StringList(e.Payload[FieldAuthors]))
	}
}

// StringList normalizes a decoded payload value into a list of strings.
// Values decoded from JSON or YAML arrive as []any.
func StringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}
