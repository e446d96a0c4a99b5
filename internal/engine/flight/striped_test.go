package flight_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/concord/internal/core/domain"
	"go.trai.ch/concord/internal/engine/flight"
)

func TestStriped_SerializesSameKey(t *testing.T) {
	s := flight.NewStriped(16)
	key := domain.Key{Type: domain.EntityResearcher, ID: "r1"}

	counter := 0
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.Lock(key)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}
