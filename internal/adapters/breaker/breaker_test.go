package breaker_test

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/breaker"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

var key = domain.Key{Type: domain.EntityResearcher, ID: "r1"}

func newGuard(t *testing.T) (*breaker.Guard, *mocks.MockRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRepository(ctrl)
	repo.EXPECT().Role().Return(domain.RoleCache).AnyTimes()
	return breaker.New(repo, breaker.WithFailures(2), breaker.WithCooldown(time.Second)), repo
}

func TestGuard_OpensAfterConsecutiveFailures(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		g, repo := newGuard(t)
		ctx := context.Background()
		down := domain.Unavailable(domain.RoleCache, "get", errors.New("connection refused"))

		repo.EXPECT().Get(gomock.Any(), key).Return(domain.StoreRecord{}, down).Times(2)
		for range 2 {
			_, err := g.Get(ctx, key)
			require.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateOpen, g.State())

		// Open: the store is not called.
		_, err := g.Get(ctx, key)
		require.ErrorIs(t, err, domain.ErrCacheUnavailable)
		require.ErrorIs(t, err, gobreaker.ErrOpenState)

		time.Sleep(time.Second + time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, g.State())

		repo.EXPECT().Get(gomock.Any(), key).Return(domain.StoreRecord{Key: key, VersionSeen: 4}, nil)
		rec, err := g.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.Version(4), rec.VersionSeen)
		assert.Equal(t, gobreaker.StateClosed, g.State())
	})
}

func TestGuard_MissesAndStaleWritesDoNotTrip(t *testing.T) {
	g, repo := newGuard(t)
	ctx := context.Background()

	repo.EXPECT().Get(gomock.Any(), key).Return(domain.StoreRecord{}, domain.ErrNotFound).Times(3)
	repo.EXPECT().Put(gomock.Any(), gomock.Any()).Return(domain.Stale(domain.RoleCache, "put")).Times(3)
	for range 3 {
		_, err := g.Get(ctx, key)
		require.ErrorIs(t, err, domain.ErrNotFound)
		err = g.Put(ctx, domain.StoreRecord{Key: key})
		assert.Equal(t, domain.ClassStale, domain.Classify(err))
	}
	assert.Equal(t, gobreaker.StateClosed, g.State())
}

func TestGuard_PassesThroughDelete(t *testing.T) {
	g, repo := newGuard(t)
	repo.EXPECT().Delete(gomock.Any(), key).Return(nil)
	repo.EXPECT().Close(gomock.Any()).Return(nil)

	require.NoError(t, g.Delete(context.Background(), key))
	require.NoError(t, g.Close(context.Background()))
	assert.Equal(t, domain.RoleCache, g.Role())
}
