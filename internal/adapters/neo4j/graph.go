// Package neo4j serves the graph role from a Neo4j database.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.trai.ch/concord/internal/adapters/wire"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

const connectTimeout = 10 * time.Second

var _ ports.Repository = (*Graph)(nil)

// Graph maps entity projections onto labelled nodes and owned relationships.
// Every edge carries the key of the entity that declared it, so an update
// only rewrites the edges its own projection produces.
type Graph struct {
	driver   neo4j.DriverWithContext
	database string
}

// Open connects to the server described by cfg.
func Open(ctx context.Context, cfg domain.StoreConfig) (*Graph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.DSN, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "create neo4j driver"), "dsn", cfg.DSN)
	}

	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(cctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, zerr.With(zerr.Wrap(err, "verify neo4j connectivity"), "dsn", cfg.DSN)
	}
	return &Graph{driver: driver, database: cfg.Database}, nil
}

// Role reports the graph role.
func (g *Graph) Role() domain.StoreRole {
	return domain.RoleGraph
}

// Get returns the projection stored on the node for key. Nodes created only
// as relationship targets carry no version and are reported as not found.
func (g *Graph) Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	l, err := label(key.Type)
	if err != nil {
		return domain.StoreRecord{}, err
	}

	session := g.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s {id: $id}) WHERE n.version IS NOT NULL
RETURN n.version AS version, n.payload AS payload`, l)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, map[string]any{"id": key.ID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		return result.Record(), nil
	})
	if err != nil {
		return domain.StoreRecord{}, classify("get", err)
	}
	record, ok := res.(*neo4j.Record)
	if !ok || record == nil {
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "get graph node"), "key", key.String())
	}

	rec := domain.StoreRecord{Key: key, Role: domain.RoleGraph}
	if v, ok := record.Get("version"); ok {
		n, _ := v.(int64)
		rec.VersionSeen = domain.Version(n)
	}
	blob, _ := record.Get("payload")
	s, _ := blob.(string)
	if rec.Payload, err = wire.DecodePayload([]byte(s)); err != nil {
		return domain.StoreRecord{}, domain.Permanent(domain.RoleGraph, "get", err)
	}
	return rec, nil
}

// Put writes the node and its owned relationships in one transaction unless
// the node already holds rec.VersionSeen or newer.
func (g *Graph) Put(ctx context.Context, rec domain.StoreRecord) error {
	l, err := label(rec.Key.Type)
	if err != nil {
		return err
	}
	props, err := properties(rec)
	if err != nil {
		return domain.Permanent(domain.RoleGraph, "put", err)
	}

	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	upsert := fmt.Sprintf(`MERGE (n:%s {id: $id})
WITH n WHERE coalesce(n.version, -1) < $version
SET n = $props
RETURN n.version AS version`, l)
	unlink := fmt.Sprintf(`MATCH (n:%s {id: $id})-[r {owner: $key}]-() DELETE r`, l)

	written, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, upsert, map[string]any{
			"id":      rec.Key.ID,
			"version": int64(rec.VersionSeen),
			"props":   props,
		})
		if err != nil {
			return false, err
		}
		if !result.Next(ctx) {
			return false, result.Err()
		}

		if _, err := tx.Run(ctx, unlink, map[string]any{"id": rec.Key.ID, "key": rec.Key.String()}); err != nil {
			return false, err
		}
		for _, rel := range relations[rec.Key.Type] {
			targets := domain.StringList(rec.Payload[rel.Field])
			if len(targets) == 0 {
				continue
			}
			_, err := tx.Run(ctx, linkQuery(l, rel), map[string]any{
				"id":      rec.Key.ID,
				"key":     rec.Key.String(),
				"targets": targets,
			})
			if err != nil {
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return classify("put", err)
	}
	if ok, _ := written.(bool); !ok {
		return domain.Stale(domain.RoleGraph, "put")
	}
	return nil
}

// Delete removes the node's owned relationships and its projection. The node
// itself survives as a bare target while other entities still point at it.
func (g *Graph) Delete(ctx context.Context, key domain.Key) error {
	l, err := label(key.Type)
	if err != nil {
		return err
	}

	session := g.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := fmt.Sprintf(`MATCH (n:%s {id: $id})
OPTIONAL MATCH (n)-[r {owner: $key}]-()
DELETE r
WITH DISTINCT n
SET n = {id: $id}
WITH n WHERE NOT (n)--()
DELETE n`, l)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, map[string]any{"id": key.ID, "key": key.String()})
		return nil, err
	})
	if err != nil {
		return classify("delete", err)
	}
	return nil
}

// Close closes the driver.
func (g *Graph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Graph) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: g.database})
}

func classify(op string, err error) error {
	switch {
	case neo4j.IsRetryable(err), neo4j.IsConnectivityError(err):
		return domain.Transient(domain.RoleGraph, op, err)
	case neo4j.IsNeo4jError(err), neo4j.IsUsageError(err):
		return domain.Permanent(domain.RoleGraph, op, err)
	default:
		return domain.Transient(domain.RoleGraph, op, err)
	}
}
