package telemetry_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/telemetry"
)

type flushes struct {
	mu      sync.Mutex
	batches [][]int
}

func (f *flushes) record(batch []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
}

func (f *flushes) get() [][]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func TestBatcher_FlushesOnSize(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var f flushes
		b := telemetry.NewBatcher(3, time.Hour, f.record)
		defer func() { _ = b.Close() }()

		for i := range 7 {
			require.NoError(t, b.Add(i))
		}

		assert.Equal(t, [][]int{{0, 1, 2}, {3, 4, 5}}, f.get())
	})
}

func TestBatcher_FlushesOnTime(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var f flushes
		b := telemetry.NewBatcher(100, 50*time.Millisecond, f.record)
		defer func() { _ = b.Close() }()

		require.NoError(t, b.Add(1))
		assert.Empty(t, f.get())

		time.Sleep(60 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, [][]int{{1}}, f.get())
	})
}

func TestBatcher_CloseFlushesAndRejects(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var f flushes
		b := telemetry.NewBatcher(100, time.Hour, f.record)

		require.NoError(t, b.Add(1))
		require.NoError(t, b.Add(2))
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		assert.Equal(t, [][]int{{1, 2}}, f.get())
		require.ErrorIs(t, b.Add(3), telemetry.ErrBatcherClosed)

		b.Flush()
		assert.Len(t, f.get(), 1)
	})
}
