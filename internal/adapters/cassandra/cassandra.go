// Package cassandra serves the analytics role and the version marker table from Cassandra.
package cassandra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	// DefaultKeyspace is used when the store configuration names none.
	DefaultKeyspace = "concord"

	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS entity_metrics (
		entity_type text,
		entity_id text,
		version bigint,
		payload text,
		metrics map<text, double>,
		updated_at timestamp,
		PRIMARY KEY ((entity_type), entity_id)
	)`,
	`CREATE TABLE IF NOT EXISTS store_markers (
		entity_key text,
		role text,
		version bigint,
		PRIMARY KEY ((entity_key), role)
	)`,
}

// Cluster is an open session shared by the analytics repository and the marker store.
type Cluster struct {
	session *gocql.Session
}

// Open connects to the hosts in cfg.DSN, a comma-separated list, and
// creates the tables in the configured keyspace.
func Open(ctx context.Context, cfg domain.StoreConfig) (*Cluster, error) {
	hosts := strings.Split(cfg.DSN, ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = cfg.Database
	if cluster.Keyspace == "" {
		cluster.Keyspace = DefaultKeyspace
	}
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{NumRetries: 3, Min: 100 * time.Millisecond, Max: time.Second}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.Username, Password: cfg.Password}
	}

	var (
		session *gocql.Session
		err     error
	)
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if session, err = cluster.CreateSession(); err == nil {
			break
		}
		if attempt == connectAttempts {
			return nil, zerr.With(zerr.Wrap(err, "connect to cassandra"), "hosts", cfg.DSN)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(connectBackoff):
		}
	}

	for _, stmt := range schema {
		if err := session.Query(stmt).WithContext(ctx).Exec(); err != nil {
			session.Close()
			return nil, zerr.Wrap(err, "create cassandra schema")
		}
	}
	return &Cluster{session: session}, nil
}

// Analytics returns the analytics repository.
func (c *Cluster) Analytics() *Analytics {
	return &Analytics{session: c.session}
}

// Markers returns the version marker store.
func (c *Cluster) Markers() *Markers {
	return &Markers{session: c.session}
}

// Close closes the session.
func (c *Cluster) Close(context.Context) error {
	c.session.Close()
	return nil
}

// classify maps a driver error onto the store error classes. Coordinator
// timeouts and unavailable replicas are retryable, other server errors are not.
func classify(op string, err error) error {
	var (
		unavailable  *gocql.RequestErrUnavailable
		writeTimeout *gocql.RequestErrWriteTimeout
		readTimeout  *gocql.RequestErrReadTimeout
		reqErr       gocql.RequestError
	)
	switch {
	case errors.As(err, &unavailable), errors.As(err, &writeTimeout), errors.As(err, &readTimeout),
		errors.Is(err, gocql.ErrNoConnections), errors.Is(err, gocql.ErrTimeoutNoResponse):
		return domain.Transient(domain.RoleAnalytics, op, err)
	case errors.As(err, &reqErr):
		return domain.Permanent(domain.RoleAnalytics, op, err)
	default:
		return domain.Transient(domain.RoleAnalytics, op, err)
	}
}
