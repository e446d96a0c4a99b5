package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.trai.ch/concord/internal/core/domain"
)

type entityDoc struct {
	ID        string    `bson:"_id"`
	Type      string    `bson:"type"`
	EntityID  string    `bson:"entity_id"`
	Version   int64     `bson:"version"`
	Payload   bson.M    `bson:"payload,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
	Deleted   bool      `bson:"deleted,omitempty"`
}

func toEntityDoc(e domain.Entity) entityDoc {
	return entityDoc{
		ID:        e.Key.String(),
		Type:      string(e.Key.Type),
		EntityID:  e.Key.ID,
		Version:   int64(e.Version),
		Payload:   bson.M(e.Payload),
		UpdatedAt: e.UpdatedAt.UTC(),
		Deleted:   e.Deleted,
	}
}

func (d entityDoc) entity() domain.Entity {
	payload, _ := normalize(d.Payload).(map[string]any)
	return domain.Entity{
		Key:       domain.Key{Type: domain.EntityType(d.Type), ID: d.EntityID},
		Payload:   domain.Payload(payload),
		Version:   domain.Version(d.Version),
		UpdatedAt: d.UpdatedAt,
		Deleted:   d.Deleted,
	}
}

type deadLetterDoc struct {
	ID       string    `bson:"_id"`
	Key      string    `bson:"key"`
	Role     string    `bson:"role"`
	Version  int64     `bson:"version"`
	Attempts int       `bson:"attempts"`
	Reason   string    `bson:"reason"`
	FailedAt time.Time `bson:"failed_at"`
}

func toDeadLetterDoc(dl domain.DeadLetter) deadLetterDoc {
	return deadLetterDoc{
		ID:       dl.ID,
		Key:      dl.Key.String(),
		Role:     string(dl.Role),
		Version:  int64(dl.Version),
		Attempts: dl.Attempts,
		Reason:   dl.Reason,
		FailedAt: dl.FailedAt.UTC(),
	}
}

func (d deadLetterDoc) deadLetter() (domain.DeadLetter, error) {
	key, err := domain.ParseKey(d.Key)
	if err != nil {
		return domain.DeadLetter{}, err
	}
	return domain.DeadLetter{
		ID:       d.ID,
		Key:      key,
		Role:     domain.StoreRole(d.Role),
		Version:  domain.Version(d.Version),
		Attempts: d.Attempts,
		Reason:   d.Reason,
		FailedAt: d.FailedAt,
	}, nil
}

type discrepancyDoc struct {
	ID               string    `bson:"_id"`
	Key              string    `bson:"key"`
	Role             string    `bson:"role"`
	CanonicalVersion int64     `bson:"canonical_version"`
	ObservedVersion  int64     `bson:"observed_version"`
	DetectedAt       time.Time `bson:"detected_at"`
	Attempts         int       `bson:"attempts"`
	Exhausted        bool      `bson:"exhausted"`
	Suppressed       bool      `bson:"suppressed"`
}

func discrepancyID(key domain.Key, role domain.StoreRole) string {
	return key.String() + "/" + string(role)
}

func toDiscrepancyDoc(d domain.Discrepancy) discrepancyDoc {
	return discrepancyDoc{
		ID:               discrepancyID(d.Key, d.Role),
		Key:              d.Key.String(),
		Role:             string(d.Role),
		CanonicalVersion: int64(d.CanonicalVersion),
		ObservedVersion:  int64(d.ObservedVersion),
		DetectedAt:       d.DetectedAt.UTC(),
		Attempts:         d.Attempts,
		Exhausted:        d.Exhausted,
		Suppressed:       d.Suppressed,
	}
}

func (d discrepancyDoc) discrepancy() (domain.Discrepancy, error) {
	key, err := domain.ParseKey(d.Key)
	if err != nil {
		return domain.Discrepancy{}, err
	}
	return domain.Discrepancy{
		Key:              key,
		Role:             domain.StoreRole(d.Role),
		CanonicalVersion: domain.Version(d.CanonicalVersion),
		ObservedVersion:  domain.Version(d.ObservedVersion),
		DetectedAt:       d.DetectedAt,
		Attempts:         d.Attempts,
		Exhausted:        d.Exhausted,
		Suppressed:       d.Suppressed,
	}, nil
}

// normalize converts decoded BSON containers into the plain maps and
// slices the rest of the system expects from a payload.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case int32:
		return int64(t)
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return v
	}
}
