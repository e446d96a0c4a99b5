package versioning_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/memory"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.trai.ch/concord/internal/engine/versioning"
	"go.uber.org/mock/gomock"
)

var researcher = domain.Key{Type: domain.EntityResearcher, ID: "r1"}

func TestStamp_CounterModeIncrements(t *testing.T) {
	store := memory.NewCanonical()
	s := versioning.NewStamper(store, domain.VersionCounter)

	e1, err := s.Stamp(context.Background(), researcher, domain.Payload{"name": "Ada"}, false)
	require.NoError(t, err)
	e2, err := s.Stamp(context.Background(), researcher, domain.Payload{"name": "Ada L."}, false)
	require.NoError(t, err)

	assert.Equal(t, domain.Version(1), e1.Version)
	assert.Equal(t, domain.Version(2), e2.Version)

	got, err := store.Load(context.Background(), researcher)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(2), got.Version)
	assert.Equal(t, "Ada L.", got.Payload["name"])
}

func TestStamp_HybridModeFollowsClockButStaysMonotonic(t *testing.T) {
	store := memory.NewCanonical()
	s := versioning.NewStamper(store, domain.VersionHybrid)

	clock := time.UnixMilli(1_000)
	s.SetClock(func() time.Time { return clock })

	e1, err := s.Stamp(context.Background(), researcher, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(1_000), e1.Version)

	// Clock stepped backwards: the version still advances.
	clock = time.UnixMilli(500)
	e2, err := s.Stamp(context.Background(), researcher, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(1_001), e2.Version)

	clock = time.UnixMilli(5_000)
	e3, err := s.Stamp(context.Background(), researcher, nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(5_000), e3.Version)
}

func TestStamp_ConcurrentWritersGetDistinctIncreasingVersions(t *testing.T) {
	store := memory.NewCanonical()
	s := versioning.NewStamper(store, domain.VersionCounter)

	const writers = 50
	versions := make([]domain.Version, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := s.Stamp(context.Background(), researcher, domain.Payload{"n": i}, false)
			assert.NoError(t, err)
			versions[i] = e.Version
		}()
	}
	wg.Wait()

	seen := make(map[domain.Version]bool, writers)
	for _, v := range versions {
		assert.False(t, seen[v], "version %d assigned twice", v)
		seen[v] = true
	}
	got, err := store.Load(context.Background(), researcher)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(writers), got.Version)
}

func TestStamp_DeleteWritesTombstone(t *testing.T) {
	store := memory.NewCanonical()
	s := versioning.NewStamper(store, domain.VersionCounter)

	_, err := s.Stamp(context.Background(), researcher, domain.Payload{"name": "Ada"}, false)
	require.NoError(t, err)

	tomb, err := s.Stamp(context.Background(), researcher, nil, true)
	require.NoError(t, err)
	assert.True(t, tomb.Deleted)
	assert.Equal(t, domain.Version(2), tomb.Version)
	assert.Empty(t, tomb.Payload)

	_, err = s.Stamp(context.Background(), researcher, nil, true)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// Recreating after a delete continues from the tombstone version.
	e, err := s.Stamp(context.Background(), researcher, domain.Payload{"name": "Ada"}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(3), e.Version)
}

func TestStamp_DeleteMissingEntity(t *testing.T) {
	s := versioning.NewStamper(memory.NewCanonical(), domain.VersionCounter)

	_, err := s.Stamp(context.Background(), researcher, nil, true)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStamp_RetriesOnConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCanonicalStore(ctrl)
	s := versioning.NewStamper(store, domain.VersionCounter)

	gomock.InOrder(
		store.EXPECT().Load(gomock.Any(), researcher).Return(domain.Entity{Key: researcher, Version: 4}, nil),
		store.EXPECT().Commit(gomock.Any(), gomock.Any(), domain.Version(4)).Return(domain.ErrVersionConflict),
		// Another process committed version 5 meanwhile.
		store.EXPECT().Load(gomock.Any(), researcher).Return(domain.Entity{Key: researcher, Version: 5}, nil),
		store.EXPECT().Commit(gomock.Any(), gomock.Any(), domain.Version(5)).
			DoAndReturn(func(_ context.Context, e domain.Entity, _ domain.Version) error {
				assert.Equal(t, domain.Version(6), e.Version)
				return nil
			}),
	)

	e, err := s.Stamp(context.Background(), researcher, domain.Payload{}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(6), e.Version)
}

func TestStamp_GivesUpAfterRepeatedConflicts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockCanonicalStore(ctrl)
	s := versioning.NewStamper(store, domain.VersionCounter)

	store.EXPECT().Load(gomock.Any(), researcher).Return(domain.Entity{}, domain.ErrNotFound).Times(versioning.MaxConflictRetries + 1)
	store.EXPECT().Commit(gomock.Any(), gomock.Any(), domain.Version(0)).Return(domain.ErrVersionConflict).Times(versioning.MaxConflictRetries + 1)

	_, err := s.Stamp(context.Background(), researcher, domain.Payload{}, false)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestStamp_StoreFailureAssignsNoVersion(t *testing.T) {
	store := memory.NewCanonical()
	s := versioning.NewStamper(store, domain.VersionCounter)

	store.FailNext(1, errors.New("connection reset"))
	_, err := s.Stamp(context.Background(), researcher, domain.Payload{}, false)
	require.ErrorIs(t, err, domain.ErrTransientStore)

	e, err := s.Stamp(context.Background(), researcher, domain.Payload{}, false)
	require.NoError(t, err)
	assert.Equal(t, domain.Version(1), e.Version)
}
