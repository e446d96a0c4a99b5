package neo4j_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/neo4j"
	"go.trai.ch/concord/internal/core/domain"
)

func openTestGraph(t *testing.T) *neo4j.Graph {
	t.Helper()
	uri := os.Getenv("CONCORD_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("CONCORD_TEST_NEO4J_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	g, err := neo4j.Open(ctx, domain.StoreConfig{
		Driver:   domain.DriverNeo4j,
		DSN:      uri,
		Username: os.Getenv("CONCORD_TEST_NEO4J_USER"),
		Password: os.Getenv("CONCORD_TEST_NEO4J_PASSWORD"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = g.Close(context.Background()) })
	return g
}

func TestGraph_PutGetDelete(t *testing.T) {
	g := openTestGraph(t)
	ctx := context.Background()
	key := domain.Key{Type: domain.EntityResearcher, ID: "it-" + uuid.NewString()}

	rec := domain.StoreRecord{
		Key:         key,
		Role:        domain.RoleGraph,
		VersionSeen: 2,
		Payload:     domain.Payload{"name": "Grace", domain.FieldCollaborators: []any{"it-peer"}},
	}
	require.NoError(t, g.Put(ctx, rec))

	err := g.Put(ctx, rec)
	assert.Equal(t, domain.ClassStale, domain.Classify(err))

	got, err := g.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(2), got.VersionSeen)
	assert.Equal(t, "Grace", got.Payload["name"])

	require.NoError(t, g.Delete(ctx, key))
	_, err = g.Get(ctx, key)
	require.ErrorIs(t, err, domain.ErrNotFound)
}
