package cassandra

import (
	"context"
	"errors"
	"time"

	"github.com/gocql/gocql"
	"go.trai.ch/concord/internal/adapters/wire"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Repository = (*Analytics)(nil)

// Analytics keeps one metrics row per entity. Writes are lightweight
// transactions guarded on the stored version.
type Analytics struct {
	session *gocql.Session
	now     func() time.Time
}

// Role reports the analytics role.
func (a *Analytics) Role() domain.StoreRole {
	return domain.RoleAnalytics
}

// Get returns the analytics row for key.
func (a *Analytics) Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	var (
		version int64
		payload string
	)
	err := a.session.Query(
		`SELECT version, payload FROM entity_metrics WHERE entity_type = ? AND entity_id = ?`,
		string(key.Type), key.ID,
	).WithContext(ctx).Scan(&version, &payload)
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "get analytics row"), "key", key.String())
	case err != nil:
		return domain.StoreRecord{}, classify("get", err)
	}

	p, err := wire.DecodePayload([]byte(payload))
	if err != nil {
		return domain.StoreRecord{}, domain.Permanent(domain.RoleAnalytics, "get", err)
	}
	return domain.StoreRecord{Key: key, Role: domain.RoleAnalytics, VersionSeen: domain.Version(version), Payload: p}, nil
}

// Put inserts the row, or updates it while the stored version is older.
func (a *Analytics) Put(ctx context.Context, rec domain.StoreRecord) error {
	payload, err := wire.EncodePayload(rec.Payload)
	if err != nil {
		return domain.Permanent(domain.RoleAnalytics, "put", err)
	}
	metrics := numericFields(rec.Payload)
	updated := a.clock()

	applied, err := a.session.Query(
		`INSERT INTO entity_metrics (entity_type, entity_id, version, payload, metrics, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		string(rec.Key.Type), rec.Key.ID, int64(rec.VersionSeen), string(payload), metrics, updated,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return classify("put", err)
	}
	if applied {
		return nil
	}

	applied, err = a.session.Query(
		`UPDATE entity_metrics SET version = ?, payload = ?, metrics = ?, updated_at = ?
		 WHERE entity_type = ? AND entity_id = ? IF version < ?`,
		int64(rec.VersionSeen), string(payload), metrics, updated,
		string(rec.Key.Type), rec.Key.ID, int64(rec.VersionSeen),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return classify("put", err)
	}
	if !applied {
		return domain.Stale(domain.RoleAnalytics, "put")
	}
	return nil
}

// Delete removes the row for key.
func (a *Analytics) Delete(ctx context.Context, key domain.Key) error {
	err := a.session.Query(
		`DELETE FROM entity_metrics WHERE entity_type = ? AND entity_id = ?`,
		string(key.Type), key.ID,
	).WithContext(ctx).Exec()
	if err != nil {
		return classify("delete", err)
	}
	return nil
}

// Close is a no-op; the session belongs to the Cluster.
func (a *Analytics) Close(context.Context) error {
	return nil
}

func (a *Analytics) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

// numericFields collects the numeric payload fields into the metrics map.
func numericFields(p domain.Payload) map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		switch n := v.(type) {
		case float64:
			out[k] = n
		case float32:
			out[k] = float64(n)
		case int:
			out[k] = float64(n)
		case int32:
			out[k] = float64(n)
		case int64:
			out[k] = float64(n)
		}
	}
	return out
}
