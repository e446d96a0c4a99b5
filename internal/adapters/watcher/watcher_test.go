package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/watcher"
	"go.trai.ch/concord/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

const settleTimeout = 5 * time.Second

func startWatcher(t *testing.T, path string) (*watcher.ConfigWatcher, <-chan string) {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Warn(gomock.Any()).AnyTimes()

	w, err := watcher.NewConfigWatcher(log, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx, path))

	out := make(chan string, 8)
	go func() {
		defer close(out)
		for p := range w.Changes() {
			out <- p
		}
	}()
	t.Cleanup(func() { _ = w.Stop() })
	return w, out
}

func TestConfigWatcher_ReportsContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("propagation: {workers: 2}\n"), 0o600))

	_, changes := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("propagation: {workers: 4}\n"), 0o600))

	select {
	case got := <-changes:
		assert.Equal(t, path, got)
	case <-time.After(settleTimeout):
		t.Fatal("no change reported")
	}
}

func TestConfigWatcher_IgnoresIdenticalRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	content := []byte("versioning: {mode: hybrid}\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	_, changes := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, content, 0o600))
	// A sibling file in the same directory is not the watched file.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600))

	select {
	case got := <-changes:
		t.Fatalf("unexpected change %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ttl: {profile: 30m}\n"), 0o600))

	_, changes := startWatcher(t, path)

	tmp := filepath.Join(dir, ".concord.yaml.swp")
	require.NoError(t, os.WriteFile(tmp, []byte("ttl: {profile: 10m}\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case got := <-changes:
		assert.Equal(t, path, got)
	case <-time.After(settleTimeout):
		t.Fatal("no change reported after rename")
	}
}

func TestConfigWatcher_StopClosesChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))

	w, changes := startWatcher(t, path)
	require.NoError(t, w.Stop())

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(settleTimeout):
		t.Fatal("changes not closed after stop")
	}
}
