package app_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/memory"
	"go.trai.ch/concord/internal/adapters/storage"
	"go.trai.ch/concord/internal/app"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.trai.ch/concord/internal/engine/readpath"
	"go.uber.org/mock/gomock"
)

const waitFor = 2 * time.Second

func testConfig() *domain.Config {
	cfg := domain.DefaultConfig()
	cfg.Settings.Propagation.Workers = 2
	cfg.Settings.Propagation.Retry = domain.RetryPolicy{Base: time.Millisecond, Cap: 2 * time.Millisecond, MaxAttempts: 2}
	cfg.Settings.Reconcile.Interval = 0
	cfg.Settings.Reconcile.GracePeriod = 0
	cfg.Settings.Reconcile.RatePerSecond = 0
	return cfg
}

type fixture struct {
	app     *app.App
	loader  *mocks.MockConfigLoader
	watcher *mocks.MockConfigWatcher
}

func newFixture(t *testing.T, cfg *domain.Config) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Info(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Error(gomock.Any()).AnyTimes()

	loader := mocks.NewMockConfigLoader(ctrl)
	if cfg != nil {
		loader.EXPECT().Load("/srv/concord").Return(cfg, nil).AnyTimes()
	}
	w := mocks.NewMockConfigWatcher(ctrl)

	a := app.New(loader, w, storage.NewOpener(log), log).WithWorkDir("/srv/concord")
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return &fixture{app: a, loader: loader, watcher: w}
}

func waitApplied(t *testing.T, a *app.App, n int64) {
	t.Helper()
	require.Eventually(t, func() bool {
		st, err := a.Stats(context.Background())
		return err == nil && st.Propagation.Applied >= n
	}, waitFor, 5*time.Millisecond)
}

func TestApp_WriteThenRead(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	res, err := f.app.WriteEntity(ctx, domain.EntityResearcher, "r-42", domain.Payload{"name": "Ada", "h_index": 12})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Positive(t, int64(res.Version))
	assert.Len(t, res.Propagation, len(domain.DerivedRoles))

	waitApplied(t, f.app, 3)

	got, err := f.app.ReadEntity(ctx, domain.EntityResearcher, "r-42")
	require.NoError(t, err)
	assert.Equal(t, readpath.ServedFromCache, got.ServedFrom)
	assert.Equal(t, res.Version, got.Version)
	assert.Equal(t, "Ada", got.Payload["name"])

	// A second write yields a strictly greater version.
	res2, err := f.app.WriteEntity(ctx, domain.EntityResearcher, "r-42", domain.Payload{"name": "Ada L."})
	require.NoError(t, err)
	assert.Greater(t, res2.Version, res.Version)
}

func TestApp_WithoutSpanMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.SpanMetrics = false
	f := newFixture(t, cfg)
	ctx := context.Background()

	_, err := f.app.WriteEntity(ctx, domain.EntityProject, "p1", domain.Payload{"title": "Atlas"})
	require.NoError(t, err)
	waitApplied(t, f.app, 3)

	got, err := f.app.ReadEntity(ctx, domain.EntityProject, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Atlas", got.Payload["title"])
	require.NoError(t, f.app.Close(ctx))
}

func TestApp_ReadMissing(t *testing.T) {
	f := newFixture(t, testConfig())

	_, err := f.app.ReadEntity(context.Background(), domain.EntityProject, "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApp_InvalidKey(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.app.WriteEntity(ctx, domain.EntityType("grant"), "g1", domain.Payload{})
	require.ErrorIs(t, err, domain.ErrInvalidEntityType)

	_, err = f.app.ReadEntity(ctx, domain.EntityProject, "  ")
	require.ErrorIs(t, err, domain.ErrEmptyEntityID)
}

func TestApp_Invalidate(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.app.WriteEntity(ctx, domain.EntityPublication, "p1", domain.Payload{"title": "On Caches"})
	require.NoError(t, err)
	waitApplied(t, f.app, 3)

	require.NoError(t, f.app.Invalidate(ctx, domain.EntityPublication, "p1"))

	got, err := f.app.ReadEntity(ctx, domain.EntityPublication, "p1")
	require.NoError(t, err)
	assert.Equal(t, readpath.ServedFromCanonical, got.ServedFrom)

	got, err = f.app.ReadEntity(ctx, domain.EntityPublication, "p1")
	require.NoError(t, err)
	assert.Equal(t, readpath.ServedFromCache, got.ServedFrom)
}

func TestApp_Delete(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	_, err := f.app.DeleteEntity(ctx, domain.EntityProject, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)

	w, err := f.app.WriteEntity(ctx, domain.EntityProject, "p7", domain.Payload{"title": "Grid"})
	require.NoError(t, err)
	waitApplied(t, f.app, 3)

	d, err := f.app.DeleteEntity(ctx, domain.EntityProject, "p7")
	require.NoError(t, err)
	assert.Greater(t, d.Version, w.Version)
	waitApplied(t, f.app, 6)

	_, err = f.app.ReadEntity(ctx, domain.EntityProject, "p7")
	require.ErrorIs(t, err, domain.ErrNotFound)

	key, err := domain.NewKey(domain.EntityProject, "p7")
	require.NoError(t, err)
	for _, role := range domain.DerivedRoles {
		_, err := f.app.OpenStores().Repository(role).Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, role)
	}
}

func TestApp_DeadLetterReplay(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.app.Open(ctx))

	graph, ok := f.app.OpenStores().Repository(domain.RoleGraph).(*memory.Store)
	require.True(t, ok)
	graph.SetDown(domain.Permanent(domain.RoleGraph, "put", errors.New("constraint violated")))

	res, err := f.app.WriteEntity(ctx, domain.EntityResearcher, "r9", domain.Payload{"name": "Grace"})
	require.NoError(t, err, "derived failures never fail the write")

	require.Eventually(t, func() bool {
		letters, err := f.app.DeadLetters(ctx)
		return err == nil && len(letters) == 1
	}, waitFor, 5*time.Millisecond)

	letters, err := f.app.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGraph, letters[0].Role)
	assert.Equal(t, res.Version, letters[0].Version)
	assert.Equal(t, 1, letters[0].Attempts)

	graph.SetDown(nil)
	report, err := f.app.ReplayDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.ReplayReport{Replayed: 1}, report)

	letters, err = f.app.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)

	rec, err := graph.Get(ctx, res.Key)
	require.NoError(t, err)
	assert.Equal(t, res.Version, rec.VersionSeen)
}

func TestApp_FailedReplayKeepsOneDeadLetter(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.app.Open(ctx))

	graph, ok := f.app.OpenStores().Repository(domain.RoleGraph).(*memory.Store)
	require.True(t, ok)
	graph.SetDown(domain.Permanent(domain.RoleGraph, "put", errors.New("constraint violated")))

	res, err := f.app.WriteEntity(ctx, domain.EntityResearcher, "r9", domain.Payload{"name": "Grace"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		letters, err := f.app.DeadLetters(ctx)
		return err == nil && len(letters) == 1
	}, waitFor, 5*time.Millisecond)

	letters, err := f.app.DeadLetters(ctx)
	require.NoError(t, err)
	previous := letters[0].ID

	for range 2 {
		report, err := f.app.ReplayDeadLetters(ctx)
		require.NoError(t, err)
		assert.Equal(t, app.ReplayReport{Failed: 1}, report)

		letters, err = f.app.DeadLetters(ctx)
		require.NoError(t, err)
		require.Len(t, letters, 1)
		assert.NotEqual(t, previous, letters[0].ID, "the fresh failure replaces the replayed entry")
		assert.Equal(t, res.Key, letters[0].Key)
		assert.Equal(t, domain.RoleGraph, letters[0].Role)
		previous = letters[0].ID
	}

	graph.SetDown(nil)
	report, err := f.app.ReplayDeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, app.ReplayReport{Replayed: 1}, report)

	letters, err = f.app.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestApp_ReconcileAndStats(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()
	require.NoError(t, f.app.Open(ctx))

	analytics, ok := f.app.OpenStores().Repository(domain.RoleAnalytics).(*memory.Store)
	require.True(t, ok)

	_, err := f.app.WriteEntity(ctx, domain.EntityResearcher, "r1", domain.Payload{"h_index": 3})
	require.NoError(t, err)
	waitApplied(t, f.app, 3)

	// The analytics row disappears behind the coordinator's back.
	key, err := domain.NewKey(domain.EntityResearcher, "r1")
	require.NoError(t, err)
	require.NoError(t, analytics.Delete(ctx, key))

	report, err := f.app.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Detected)
	assert.Equal(t, 1, report.Resolved)
	assert.Zero(t, report.Open)

	report, err = f.app.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Detected)

	_, err = f.app.ReadEntity(ctx, domain.EntityResearcher, "r1")
	require.NoError(t, err)

	st, err := f.app.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.ReconcilePasses)
	assert.Equal(t, int64(1), st.CacheHits)
	assert.Zero(t, st.DeadLetters)
	assert.Zero(t, st.OpenDiscrepancies)
}

func TestApp_SuppressUnknownDiscrepancy(t *testing.T) {
	f := newFixture(t, testConfig())

	err := f.app.Suppress(context.Background(), domain.EntityResearcher, "r1", domain.RoleGraph)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApp_ConfigError(t *testing.T) {
	f := newFixture(t, nil)
	f.loader.EXPECT().Load("/srv/concord").Return(nil, domain.ErrConfigInvalid)

	_, err := f.app.WriteEntity(context.Background(), domain.EntityProject, "p1", domain.Payload{})
	require.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestApp_CloseWithoutOpen(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.app.Close(context.Background()))
}

func TestApp_ApplySettings(t *testing.T) {
	f := newFixture(t, testConfig())
	ctx := context.Background()

	s := testConfig().Settings
	s.TTL.Profile = time.Minute
	s.Reconcile.GracePeriod = 42 * time.Second
	require.NoError(t, f.app.ApplySettings(ctx, s))

	cfg, err := f.app.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Settings.TTL.Profile)
	assert.Equal(t, 42*time.Second, cfg.Settings.Reconcile.GracePeriod)
}

func TestApp_Serve(t *testing.T) {
	cfg := testConfig()
	cfg.Path = "/srv/concord/concord.yaml"
	f := newFixture(t, cfg)

	reloaded := testConfig()
	reloaded.Settings.TTL.Profile = 5 * time.Minute
	f.watcher.EXPECT().Start(gomock.Any(), cfg.Path).Return(nil)
	f.watcher.EXPECT().Changes().Return(iter.Seq[string](func(yield func(string) bool) {
		yield(cfg.Path)
	}))
	f.watcher.EXPECT().Stop().Return(nil)
	f.loader.EXPECT().LoadFile(cfg.Path).Return(reloaded, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- f.app.Serve(ctx, app.ServeOptions{
			MetricsListen: "127.0.0.1:0",
			Watch:         true,
			Ready:         func(addr string) { ready <- addr },
		})
	}()

	var addr string
	select {
	case addr = <-ready:
	case <-time.After(waitFor):
		t.Fatal("serve did not start")
	}

	_, err := f.app.WriteEntity(ctx, domain.EntityProject, "p1", domain.Payload{"title": "Mesh"})
	require.NoError(t, err)
	waitApplied(t, f.app, 3)

	resp, err := http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "concord_propagations_total"))

	require.Eventually(t, func() bool {
		c, err := f.app.Config(ctx)
		return err == nil && c.Settings.TTL.Profile == 5*time.Minute
	}, waitFor, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("serve did not stop")
	}
}
