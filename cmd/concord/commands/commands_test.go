package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/cmd/concord/commands"
	"go.trai.ch/concord/internal/app"
	"go.trai.ch/concord/internal/build"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/engine/propagation"
	"go.trai.ch/concord/internal/engine/readpath"
	"go.trai.ch/concord/internal/engine/reconcile"
)

type mockApp struct {
	writeFunc         func(ctx context.Context, t domain.EntityType, id string, payload domain.Payload) (app.WriteResult, error)
	deleteFunc        func(ctx context.Context, t domain.EntityType, id string) (app.WriteResult, error)
	readFunc          func(ctx context.Context, t domain.EntityType, id string) (app.ReadResult, error)
	invalidateFunc    func(ctx context.Context, t domain.EntityType, id string) error
	reconcileFunc     func(ctx context.Context) (reconcile.Report, error)
	discrepanciesFunc func(ctx context.Context) ([]domain.Discrepancy, error)
	suppressFunc      func(ctx context.Context, t domain.EntityType, id string, role domain.StoreRole) error
	deadLettersFunc   func(ctx context.Context) ([]domain.DeadLetter, error)
	replayFunc        func(ctx context.Context) (app.ReplayReport, error)
	statsFunc         func(ctx context.Context) (app.Stats, error)
	serveFunc         func(ctx context.Context, opts app.ServeOptions) error
}

func (m *mockApp) WriteEntity(ctx context.Context, t domain.EntityType, id string, p domain.Payload) (app.WriteResult, error) {
	if m.writeFunc != nil {
		return m.writeFunc(ctx, t, id, p)
	}
	return app.WriteResult{}, nil
}

func (m *mockApp) DeleteEntity(ctx context.Context, t domain.EntityType, id string) (app.WriteResult, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, t, id)
	}
	return app.WriteResult{}, nil
}

func (m *mockApp) ReadEntity(ctx context.Context, t domain.EntityType, id string) (app.ReadResult, error) {
	if m.readFunc != nil {
		return m.readFunc(ctx, t, id)
	}
	return app.ReadResult{}, nil
}

func (m *mockApp) Invalidate(ctx context.Context, t domain.EntityType, id string) error {
	if m.invalidateFunc != nil {
		return m.invalidateFunc(ctx, t, id)
	}
	return nil
}

func (m *mockApp) Reconcile(ctx context.Context) (reconcile.Report, error) {
	if m.reconcileFunc != nil {
		return m.reconcileFunc(ctx)
	}
	return reconcile.Report{}, nil
}

func (m *mockApp) Discrepancies(ctx context.Context) ([]domain.Discrepancy, error) {
	if m.discrepanciesFunc != nil {
		return m.discrepanciesFunc(ctx)
	}
	return nil, nil
}

func (m *mockApp) Suppress(ctx context.Context, t domain.EntityType, id string, role domain.StoreRole) error {
	if m.suppressFunc != nil {
		return m.suppressFunc(ctx, t, id, role)
	}
	return nil
}

func (m *mockApp) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	if m.deadLettersFunc != nil {
		return m.deadLettersFunc(ctx)
	}
	return nil, nil
}

func (m *mockApp) ReplayDeadLetters(ctx context.Context) (app.ReplayReport, error) {
	if m.replayFunc != nil {
		return m.replayFunc(ctx)
	}
	return app.ReplayReport{}, nil
}

func (m *mockApp) Stats(ctx context.Context) (app.Stats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx)
	}
	return app.Stats{}, nil
}

func (m *mockApp) Serve(ctx context.Context, opts app.ServeOptions) error {
	if m.serveFunc != nil {
		return m.serveFunc(ctx, opts)
	}
	return nil
}

// execute runs args against m and returns stdout.
func execute(t *testing.T, m *mockApp, stdin string, args ...string) (string, error) {
	t.Helper()
	cli := commands.New(m)
	out := new(bytes.Buffer)
	cli.SetOutput(out, new(bytes.Buffer))
	cli.SetIn(strings.NewReader(stdin))
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return out.String(), err
}

func researcher(t *testing.T, id string) domain.Key {
	t.Helper()
	k, err := domain.NewKey(domain.EntityResearcher, id)
	require.NoError(t, err)
	return k
}

func TestCommands_Write(t *testing.T) {
	t.Run("reads payload from stdin", func(t *testing.T) {
		var got domain.Payload
		m := &mockApp{
			writeFunc: func(_ context.Context, typ domain.EntityType, id string, p domain.Payload) (app.WriteResult, error) {
				assert.Equal(t, domain.EntityResearcher, typ)
				assert.Equal(t, "r1", id)
				got = p
				return app.WriteResult{
					Key:      researcher(t, "r1"),
					Version:  7,
					Accepted: true,
					Propagation: propagation.Result{
						domain.RoleGraph:     domain.OutcomeApplied,
						domain.RoleCache:     domain.OutcomeQueued,
						domain.RoleAnalytics: domain.OutcomeCoalesced,
					},
				}, nil
			},
		}

		out, err := execute(t, m, `{"name": "Ada", "h_index": 12}`, "write", "researcher", "r1")
		require.NoError(t, err)
		assert.Equal(t, "Ada", got["name"])
		assert.Equal(t, 12, got["h_index"])

		g := goldie.New(t)
		g.Assert(t, "write", []byte(out))
	})

	t.Run("reads payload from a yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "project.yaml")
		require.NoError(t, os.WriteFile(path, []byte("title: Engines\nmembers: 3\n"), 0o600))

		var got domain.Payload
		m := &mockApp{
			writeFunc: func(_ context.Context, _ domain.EntityType, _ string, p domain.Payload) (app.WriteResult, error) {
				got = p
				return app.WriteResult{}, nil
			},
		}

		_, err := execute(t, m, "", "write", "project", "p1", path)
		require.NoError(t, err)
		assert.Equal(t, domain.Payload{"title": "Engines", "members": 3}, got)
	})

	t.Run("empty input writes an empty payload", func(t *testing.T) {
		var got domain.Payload
		m := &mockApp{
			writeFunc: func(_ context.Context, _ domain.EntityType, _ string, p domain.Payload) (app.WriteResult, error) {
				got = p
				return app.WriteResult{}, nil
			},
		}

		_, err := execute(t, m, "\n", "write", "researcher", "r1", "-")
		require.NoError(t, err)
		assert.Equal(t, domain.Payload{}, got)
	})

	t.Run("rejects a payload that is not an object", func(t *testing.T) {
		m := &mockApp{
			writeFunc: func(context.Context, domain.EntityType, string, domain.Payload) (app.WriteResult, error) {
				panic("should not be called")
			},
		}

		_, err := execute(t, m, "[1, 2]", "write", "researcher", "r1")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	})

	t.Run("rejects an unknown entity type", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "{}", "write", "grant", "g1")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidEntityType)
	})

	t.Run("returns canonical failure", func(t *testing.T) {
		m := &mockApp{
			writeFunc: func(context.Context, domain.EntityType, string, domain.Payload) (app.WriteResult, error) {
				return app.WriteResult{}, errors.New("canonical down")
			},
		}

		_, err := execute(t, m, "{}", "write", "researcher", "r1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "canonical down")
	})
}

func TestCommands_Delete(t *testing.T) {
	m := &mockApp{
		deleteFunc: func(_ context.Context, typ domain.EntityType, id string) (app.WriteResult, error) {
			return app.WriteResult{Key: researcher(t, id), Version: 9, Accepted: true}, nil
		},
	}

	out, err := execute(t, m, "", "delete", "researcher", "r1")
	require.NoError(t, err)
	assert.Equal(t, "✓ researcher:r1 deleted at version 9\n", out)
}

func TestCommands_Read(t *testing.T) {
	res := app.ReadResult{
		Key:        researcher(t, "r1"),
		Version:    42,
		ServedFrom: readpath.ServedFromCache,
		Payload: domain.Payload{
			"name":        "Ada Lovelace",
			"h_index":     12,
			"affiliation": map[string]any{"org": "Analytical Society"},
		},
	}
	m := &mockApp{
		readFunc: func(context.Context, domain.EntityType, string) (app.ReadResult, error) {
			return res, nil
		},
	}

	t.Run("yaml", func(t *testing.T) {
		out, err := execute(t, m, "", "read", "researcher", "r1")
		require.NoError(t, err)

		g := goldie.New(t)
		g.Assert(t, "read", []byte(out))
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, m, "", "read", "researcher", "r1", "-o", "json")
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"key": "researcher:r1",
			"version": 42,
			"served_from": "cache",
			"payload": {"name": "Ada Lovelace", "h_index": 12, "affiliation": {"org": "Analytical Society"}}
		}`, out)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, m, "", "read", "researcher", "r1", "-o", "toml")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	})

	t.Run("not found", func(t *testing.T) {
		missing := &mockApp{
			readFunc: func(context.Context, domain.EntityType, string) (app.ReadResult, error) {
				return app.ReadResult{}, domain.ErrNotFound
			},
		}
		_, err := execute(t, missing, "", "read", "researcher", "r404")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("requires two arguments", func(t *testing.T) {
		_, err := execute(t, m, "", "read", "researcher")
		require.Error(t, err)
	})
}

func TestCommands_Invalidate(t *testing.T) {
	called := false
	m := &mockApp{
		invalidateFunc: func(_ context.Context, typ domain.EntityType, id string) error {
			called = true
			assert.Equal(t, domain.EntityPublication, typ)
			assert.Equal(t, "x9", id)
			return nil
		},
	}

	out, err := execute(t, m, "", "invalidate", "Publication", "x9")
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "✓ invalidated publication:x9\n", out)
}

func TestCommands_Reconcile(t *testing.T) {
	m := &mockApp{
		reconcileFunc: func(context.Context) (reconcile.Report, error) {
			return reconcile.Report{Scanned: 30, Detected: 2, Resolved: 1, Open: 1, Duration: 1500 * time.Millisecond}, nil
		},
	}

	out, err := execute(t, m, "", "reconcile")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "reconcile", []byte(out))
}

func TestCommands_Discrepancies(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		project, err := domain.NewKey(domain.EntityProject, "p2")
		require.NoError(t, err)
		publication, err := domain.NewKey(domain.EntityPublication, "x9")
		require.NoError(t, err)

		m := &mockApp{
			discrepanciesFunc: func(context.Context) ([]domain.Discrepancy, error) {
				return []domain.Discrepancy{
					{Key: researcher(t, "r1"), Role: domain.RoleGraph, CanonicalVersion: 5, ObservedVersion: 3, Attempts: 1},
					{Key: project, Role: domain.RoleAnalytics, CanonicalVersion: 9, Attempts: 3, Exhausted: true},
					{Key: publication, Role: domain.RoleCache, CanonicalVersion: 4, ObservedVersion: 2, Suppressed: true},
				}, nil
			},
		}

		out, err := execute(t, m, "", "discrepancies")
		require.NoError(t, err)

		g := goldie.New(t)
		g.Assert(t, "discrepancies", []byte(out))
	})

	t.Run("empty", func(t *testing.T) {
		out, err := execute(t, &mockApp{}, "", "disc")
		require.NoError(t, err)
		assert.Equal(t, "✓ no discrepancies\n", out)
	})
}

func TestCommands_Suppress(t *testing.T) {
	t.Run("parses role", func(t *testing.T) {
		var gotRole domain.StoreRole
		m := &mockApp{
			suppressFunc: func(_ context.Context, _ domain.EntityType, _ string, role domain.StoreRole) error {
				gotRole = role
				return nil
			},
		}

		out, err := execute(t, m, "", "suppress", "researcher", "r1", "graph")
		require.NoError(t, err)
		assert.Equal(t, domain.RoleGraph, gotRole)
		assert.Equal(t, "✓ suppressed researcher:r1 on graph\n", out)
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		_, err := execute(t, &mockApp{}, "", "suppress", "researcher", "r1", "search")
		assert.ErrorIs(t, err, domain.ErrInvalidStoreRole)
	})
}

func TestCommands_DeadLetters(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		m := &mockApp{
			deadLettersFunc: func(context.Context) ([]domain.DeadLetter, error) {
				return []domain.DeadLetter{{
					ID:       "dl-1",
					Key:      researcher(t, "r1"),
					Role:     domain.RoleGraph,
					Version:  5,
					Attempts: 4,
					Reason:   "graph write: permanent store failure",
					FailedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
				}}, nil
			},
		}

		out, err := execute(t, m, "", "deadletters")
		require.NoError(t, err)

		g := goldie.New(t)
		g.Assert(t, "deadletters", []byte(out))
	})

	t.Run("replay", func(t *testing.T) {
		m := &mockApp{
			deadLettersFunc: func(context.Context) ([]domain.DeadLetter, error) {
				panic("should not be called")
			},
			replayFunc: func(context.Context) (app.ReplayReport, error) {
				return app.ReplayReport{Replayed: 2, Failed: 1, Dropped: 1}, nil
			},
		}

		out, err := execute(t, m, "", "deadletters", "--replay")
		require.NoError(t, err)
		assert.Equal(t, "! replayed 2, 1 still failing\n  dropped:      1\n", out)
	})
}

func TestCommands_Stats(t *testing.T) {
	m := &mockApp{
		statsFunc: func(context.Context) (app.Stats, error) {
			return app.Stats{
				Propagation:       propagation.Stats{Applied: 12, Coalesced: 3, Stale: 1, Retried: 2, Failed: 1},
				DeadLetters:       2,
				OpenDiscrepancies: 1,
				Exhausted:         1,
				CacheHits:         40,
				CacheMisses:       5,
				CacheBypasses:     1,
				ReconcilePasses:   6,
			}, nil
		},
	}

	out, err := execute(t, m, "", "stats")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "stats", []byte(out))
}

func TestCommands_Serve(t *testing.T) {
	var got app.ServeOptions
	m := &mockApp{
		serveFunc: func(_ context.Context, opts app.ServeOptions) error {
			got = opts
			opts.Ready("127.0.0.1:9464")
			return nil
		},
	}

	out, err := execute(t, m, "", "serve", "--metrics-listen", "127.0.0.1:0", "--watch")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", got.MetricsListen)
	assert.True(t, got.Watch)
	assert.Equal(t, "✓ serving metrics on http://127.0.0.1:9464/metrics\n", out)
}

func TestCommands_Version(t *testing.T) {
	out, err := execute(t, &mockApp{}, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "concord version "+build.Version+" (commit: "+build.Commit+", date: "+build.Date+")\n", out)

	out, err = execute(t, &mockApp{}, "", "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "concord version "+build.Version)
}

func TestCommands_Top_StopsWhenServeFails(t *testing.T) {
	m := &mockApp{
		serveFunc: func(context.Context, app.ServeOptions) error {
			return errors.New("listen failed")
		},
	}

	_, err := execute(t, m, "", "top", "--interval", "10ms")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen failed")
}
