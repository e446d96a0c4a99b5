// Package badger serves the cache role from an embedded BadgerDB.
//
// It is meant for single-node deployments and tests that want the real
// expiry semantics of a key-value engine without a server.
package badger

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.trai.ch/concord/internal/adapters/wire"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

const keyPrefix = "cache/"

var _ ports.Repository = (*Cache)(nil)

// Cache is a BadgerDB-backed cache repository.
type Cache struct {
	db *badger.DB
}

// Open opens the database at path, or an in-memory one when path is empty.
func Open(path string) (*Cache, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, domain.DirPerm); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "create badger directory"), "path", path)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil).WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "open badger database"), "path", path)
	}
	return &Cache{db: db}, nil
}

// Role reports the cache role.
func (c *Cache) Role() domain.StoreRole {
	return domain.RoleCache
}

// Get returns the live record for key.
func (c *Cache) Get(_ context.Context, key domain.Key) (domain.StoreRecord, error) {
	var rec domain.StoreRecord
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dbKey(key))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = wire.DecodeRecord(key, domain.RoleCache, raw)
		if err != nil {
			return err
		}
		if exp := item.ExpiresAt(); exp > 0 {
			rec.TTL = time.Until(time.Unix(int64(exp), 0))
		}
		return nil
	})
	switch {
	case err == nil:
		return rec, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "get cache record"), "key", key.String())
	default:
		return domain.StoreRecord{}, domain.Unavailable(domain.RoleCache, "get", err)
	}
}

// Put writes rec with its TTL unless a newer version is cached.
func (c *Cache) Put(_ context.Context, rec domain.StoreRecord) error {
	if rec.TTL <= 0 {
		return domain.Permanent(domain.RoleCache, "put", domain.ErrMissingTTL)
	}
	raw, err := wire.EncodeRecord(rec)
	if err != nil {
		return domain.Permanent(domain.RoleCache, "put", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		k := dbKey(rec.Key)
		item, err := txn.Get(k)
		switch {
		case err == nil:
			cur, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if v, err := wire.RecordVersion(cur); err == nil && v >= rec.VersionSeen {
				return domain.Stale(domain.RoleCache, "put")
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		return txn.SetEntry(badger.NewEntry(k, raw).WithTTL(rec.TTL))
	})
	if err == nil || domain.Classify(err) == domain.ClassStale {
		return err
	}
	return domain.Unavailable(domain.RoleCache, "put", err)
}

// Delete evicts key.
func (c *Cache) Delete(_ context.Context, key domain.Key) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(dbKey(key))
	})
	if err != nil {
		return domain.Unavailable(domain.RoleCache, "delete", err)
	}
	return nil
}

// Close closes the database.
func (c *Cache) Close(context.Context) error {
	return c.db.Close()
}

func dbKey(key domain.Key) []byte {
	return []byte(keyPrefix + key.String())
}
