package cassandra

import (
	"context"
	"errors"

	"github.com/gocql/gocql"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
)

var _ ports.MarkerStore = (*Markers)(nil)

// Markers stores the highest acknowledged version per key and role.
type Markers struct {
	session *gocql.Session
}

// Seen returns the acknowledged version, zero when none was recorded.
func (m *Markers) Seen(ctx context.Context, key domain.Key, role domain.StoreRole) (domain.Version, error) {
	var v int64
	err := m.session.Query(
		`SELECT version FROM store_markers WHERE entity_key = ? AND role = ?`,
		key.String(), string(role),
	).WithContext(ctx).Scan(&v)
	switch {
	case errors.Is(err, gocql.ErrNotFound):
		return 0, nil
	case err != nil:
		return 0, classify("seen", err)
	}
	return domain.Version(v), nil
}

// Mark raises the acknowledged version. A lower or equal version is ignored.
func (m *Markers) Mark(ctx context.Context, key domain.Key, role domain.StoreRole, v domain.Version) error {
	applied, err := m.session.Query(
		`INSERT INTO store_markers (entity_key, role, version) VALUES (?, ?, ?) IF NOT EXISTS`,
		key.String(), string(role), int64(v),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return classify("mark", err)
	}
	if applied {
		return nil
	}

	_, err = m.session.Query(
		`UPDATE store_markers SET version = ? WHERE entity_key = ? AND role = ? IF version < ?`,
		int64(v), key.String(), string(role), int64(v),
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return classify("mark", err)
	}
	return nil
}
