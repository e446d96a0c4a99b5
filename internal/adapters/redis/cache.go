// Package redis serves the cache role from Redis.
package redis

import (
	"context"
	"errors"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"go.trai.ch/concord/internal/adapters/wire"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports"
	"go.trai.ch/zerr"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "concord:cache:"

// putScript writes the record only when the stored version is older, and
// always with an expiry. Returns 1 when written, 0 when stale.
var putScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'v')
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return 0
end
redis.call('HSET', KEYS[1], 'v', ARGV[1], 'p', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

var _ ports.Repository = (*Cache)(nil)

// Cache is a Redis-backed cache repository. Records are hashes holding the
// version and the JSON payload.
type Cache struct {
	client goredis.UniversalClient
}

// Open connects to the Redis server at dsn, a redis:// URL.
func Open(ctx context.Context, dsn string) (*Cache, error) {
	opts, err := goredis.ParseURL(dsn)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "parse redis url"), "dsn", dsn)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.Unavailable(domain.RoleCache, "connect", err)
	}
	return New(client), nil
}

// New wraps an existing client.
func New(client goredis.UniversalClient) *Cache {
	return &Cache{client: client}
}

// Role reports the cache role.
func (c *Cache) Role() domain.StoreRole {
	return domain.RoleCache
}

// Get returns the live record for key.
func (c *Cache) Get(ctx context.Context, key domain.Key) (domain.StoreRecord, error) {
	vals, err := c.client.HMGet(ctx, redisKey(key), "v", "p").Result()
	if err != nil {
		return domain.StoreRecord{}, domain.Unavailable(domain.RoleCache, "get", err)
	}
	v, ok := vals[0].(string)
	if !ok {
		return domain.StoreRecord{}, zerr.With(zerr.Wrap(domain.ErrNotFound, "get cache record"), "key", key.String())
	}
	raw, _ := vals[1].(string)

	version, err := parseVersion(v)
	if err != nil {
		return domain.StoreRecord{}, domain.Permanent(domain.RoleCache, "get", err)
	}
	payload, err := wire.DecodePayload([]byte(raw))
	if err != nil {
		return domain.StoreRecord{}, domain.Permanent(domain.RoleCache, "get", err)
	}

	rec := domain.StoreRecord{Key: key, Role: domain.RoleCache, VersionSeen: version, Payload: payload}
	if ttl, err := c.client.PTTL(ctx, redisKey(key)).Result(); err == nil && ttl > 0 {
		rec.TTL = ttl
	}
	return rec, nil
}

// Put writes rec with its TTL unless a newer version is cached.
func (c *Cache) Put(ctx context.Context, rec domain.StoreRecord) error {
	if rec.TTL <= 0 {
		return domain.Permanent(domain.RoleCache, "put", domain.ErrMissingTTL)
	}
	payload, err := wire.EncodePayload(rec.Payload)
	if err != nil {
		return domain.Permanent(domain.RoleCache, "put", err)
	}

	written, err := putScript.Run(ctx, c.client, []string{redisKey(rec.Key)},
		int64(rec.VersionSeen), payload, rec.TTL.Milliseconds()).Int()
	if err != nil {
		return domain.Unavailable(domain.RoleCache, "put", err)
	}
	if written == 0 {
		return domain.Stale(domain.RoleCache, "put")
	}
	return nil
}

// Delete evicts key.
func (c *Cache) Delete(ctx context.Context, key domain.Key) error {
	if err := c.client.Del(ctx, redisKey(key)).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return domain.Unavailable(domain.RoleCache, "delete", err)
	}
	return nil
}

// Close closes the client.
func (c *Cache) Close(context.Context) error {
	return c.client.Close()
}

func redisKey(key domain.Key) string {
	return KeyPrefix + key.String()
}

func parseVersion(s string) (domain.Version, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, zerr.With(zerr.Wrap(err, "parse cached version"), "value", s)
	}
	return domain.Version(n), nil
}
