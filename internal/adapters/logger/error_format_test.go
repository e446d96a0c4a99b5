package logger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/concord/internal/adapters/logger"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries_StoreFailures(t *testing.T) {
	key := domain.Key{Type: domain.EntityProject, ID: "p-3"}
	missingTTL := domain.Permanent(domain.RoleCache, "put", domain.ErrMissingTTL)

	tests := []struct {
		name     string
		err      error
		messages []string
		// meta lists the expected metadata per entry; nil expects none.
		meta []map[string]any
	}{
		{
			name:     "classified store error ends the walk",
			err:      zerr.With(zerr.Wrap(missingTTL, "apply projection"), "key", key.String()),
			messages: []string{"apply projection", missingTTL.Error()},
			meta:     []map[string]any{{"key": "project:p-3"}, nil},
		},
		{
			name:     "sentinel cause keeps its own message",
			err:      zerr.Wrap(domain.ErrReconciliationExhausted, "repair graph"),
			messages: []string{"repair graph", "reconciliation attempts exhausted"},
			meta:     []map[string]any{nil, nil},
		},
		{
			name: "metadata stays on the level it was attached to",
			err: func() error {
				inner := zerr.With(zerr.Wrap(errors.New("i/o timeout"), "load entity"), "attempt", 2)
				return zerr.With(zerr.Wrap(inner, "reconcile pass"), "batch", 100)
			}(),
			messages: []string{"reconcile pass", "load entity", "i/o timeout"},
			meta:     []map[string]any{{"batch": 100}, {"attempt": 2}, nil},
		},
		{
			name:     "stdlib wrapping is one entry",
			err:      fmt.Errorf("dial cassandra: %w", errors.New("connection refused")),
			messages: []string{"dial cassandra: connection refused"},
			meta:     []map[string]any{nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntriesExported(tt.err)
			require.Len(t, entries, len(tt.messages))

			for i, entry := range entries {
				assert.Equal(t, tt.messages[i], entry.Message, "entry %d", i)
				if tt.meta[i] == nil {
					assert.Empty(t, entry.Metadata, "entry %d", i)
					continue
				}
				assert.Equal(t, tt.meta[i], entry.Metadata, "entry %d", i)
			}
		})
	}
}

func TestCollectErrorEntries_Nil(t *testing.T) {
	assert.Empty(t, logger.CollectErrorEntriesExported(nil))
}

func TestFormatErrorEntries_Layout(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{
			name: "none",
		},
		{
			name:    "single",
			entries: []logger.ErrorEntry{{Message: "queue full"}},
			want:    "Error: queue full",
		},
		{
			name: "causes are indented under the main error",
			entries: []logger.ErrorEntry{
				{Message: "propagate entity", Metadata: map[string]any{"role": "graph", "key": "researcher:r1"}},
				{Message: "put node", Metadata: map[string]any{"attempt": 5}},
				{Message: "neo4j: connection reset"},
			},
			want: "Error: propagate entity\n" +
				"       key: researcher:r1\n" +
				"       role: graph\n" +
				"\n" +
				"  Caused by:\n" +
				"    → put node\n" +
				"      attempt: 5\n" +
				"    → neo4j: connection reset",
		},
		{
			name: "continuation lines align with the first",
			entries: []logger.ErrorEntry{
				{Message: "load concord.yaml"},
				{Message: "yaml: unmarshal errors:\n  line 3: unknown field"},
			},
			want: "Error: load concord.yaml\n" +
				"\n" +
				"  Caused by:\n" +
				"    → yaml: unmarshal errors:\n" +
				"        line 3: unknown field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntriesExported(tt.entries))
		})
	}
}
