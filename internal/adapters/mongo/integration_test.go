package mongo_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/mongo"
	"go.trai.ch/concord/internal/core/domain"
)

// openTestDB connects to CONCORD_TEST_MONGO_URI using a throwaway database.
func openTestDB(t *testing.T) *mongo.Canonical {
	t.Helper()
	uri := os.Getenv("CONCORD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CONCORD_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c, err := mongo.Open(ctx, domain.StoreConfig{Driver: domain.DriverMongo, DSN: uri, Database: "concord_test_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c
}

func TestCanonical_CommitCompareAndSet(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	key := domain.Key{Type: domain.EntityPublication, ID: "pub-1"}

	_, err := c.Load(ctx, key)
	require.ErrorIs(t, err, domain.ErrNotFound)

	e := domain.Entity{Key: key, Version: 1, Payload: domain.Payload{"title": "On Caches"}}
	require.NoError(t, c.Commit(ctx, e, 0))
	require.ErrorIs(t, c.Commit(ctx, e, 0), domain.ErrVersionConflict)

	e.Version = 2
	require.NoError(t, c.Commit(ctx, e, 1))
	require.ErrorIs(t, c.Commit(ctx, e, 1), domain.ErrVersionConflict)

	got, err := c.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(2), got.Version)
	assert.Equal(t, "On Caches", got.Payload["title"])
}

func TestCanonical_ScanPages(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Commit(ctx, domain.Entity{Key: domain.Key{Type: domain.EntityProject, ID: id}, Version: 1}, 0))
	}

	first, err := c.Scan(ctx, domain.Key{}, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)

	rest, err := c.Scan(ctx, first[1].Key, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].Key.ID)
}

func TestLedgers(t *testing.T) {
	c := openTestDB(t)
	ctx := context.Background()
	key := domain.Key{Type: domain.EntityResearcher, ID: "r1"}

	markers := c.Markers()
	require.NoError(t, markers.Mark(ctx, key, domain.RoleGraph, 5))
	require.NoError(t, markers.Mark(ctx, key, domain.RoleGraph, 3))
	seen, err := markers.Seen(ctx, key, domain.RoleGraph)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(5), seen)

	dls := c.DeadLetters()
	require.NoError(t, dls.Append(ctx, domain.DeadLetter{ID: "dl-1", Key: key, Role: domain.RoleCache, Version: 5, FailedAt: time.Now()}))
	list, err := dls.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NoError(t, dls.Remove(ctx, "dl-1"))

	discs := c.Discrepancies()
	require.NoError(t, discs.Upsert(ctx, domain.Discrepancy{Key: key, Role: domain.RoleAnalytics, CanonicalVersion: 5}))
	d, ok, err := discs.Get(ctx, key, domain.RoleAnalytics)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Version(5), d.CanonicalVersion)
	require.NoError(t, discs.Resolve(ctx, key, domain.RoleAnalytics))
	_, ok, err = discs.Get(ctx, key, domain.RoleAnalytics)
	require.NoError(t, err)
	assert.False(t, ok)
}
