package domain_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/concord/internal/core/domain"
)

func TestDefaultCachePath(t *testing.T) {
	assert.Equal(t, filepath.Join(".concord", "cache"), domain.DefaultCachePath())
}

func TestResolveStorePath(t *testing.T) {
	base := filepath.Join("/srv", "concord")
	tests := []struct {
		name string
		path string
		want string
	}{
		{"empty uses default", "", filepath.Join(base, ".concord", "cache")},
		{"relative is anchored", "data/cache", filepath.Join(base, "data", "cache")},
		{"absolute is kept", "/var/lib/concord", "/var/lib/concord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ResolveStorePath(base, tt.path))
		})
	}
}
