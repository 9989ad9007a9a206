package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/pricescout/internal/domain"
	"github.com/jonesrussell/pricescout/internal/logger"
	"github.com/jonesrussell/pricescout/internal/stream"
)

func terminalSearch(t *testing.T, hub *stream.Hub, id string) *domain.Search {
	t.Helper()
	s := domain.NewSearch(id, "tv", domain.Filters{}, domain.Options{})
	require.NoError(t, s.Start())
	hub.Register(s)
	_, err := hub.Publish(id, domain.EventSearchStarted, nil)
	require.NoError(t, err)
	require.NoError(t, s.Complete(nil, false))
	_, err = hub.Publish(id, domain.EventSearchCompleted, nil)
	require.NoError(t, err)
	return s
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry(time.Minute, nil, logger.NewNop())
	s := domain.NewSearch("s1", "tv", domain.Filters{}, domain.Options{})
	reg.Add(s)

	got, ok := reg.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
}

func TestRegistryEvictsAfterRetention(t *testing.T) {
	hub := stream.NewHub(logger.NewNop(), 8)
	reg := NewRegistry(50*time.Millisecond, hub, logger.NewNop())

	s := terminalSearch(t, hub, "s1")
	reg.Add(s)

	// Retention has not elapsed yet.
	reg.evictExpired(time.Now())
	assert.Equal(t, 1, reg.Len())

	reg.evictExpired(time.Now().Add(time.Second))
	assert.Zero(t, reg.Len())

	// The hub room went with it.
	_, _, err := hub.Subscribe("s1")
	assert.ErrorIs(t, err, stream.ErrUnknownSearch)
}

func TestRegistryKeepsRunningSearches(t *testing.T) {
	reg := NewRegistry(time.Millisecond, nil, logger.NewNop())
	s := domain.NewSearch("s1", "tv", domain.Filters{}, domain.Options{})
	require.NoError(t, s.Start())
	reg.Add(s)

	reg.evictExpired(time.Now().Add(time.Hour))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistrySkipsSearchWithSubscribers(t *testing.T) {
	hub := stream.NewHub(logger.NewNop(), 8)
	reg := NewRegistry(time.Millisecond, hub, logger.NewNop())

	s := domain.NewSearch("s1", "tv", domain.Filters{}, domain.Options{})
	require.NoError(t, s.Start())
	hub.Register(s)
	reg.Add(s)

	_, cancel, err := hub.Subscribe("s1")
	require.NoError(t, err)

	require.NoError(t, s.Complete(nil, false))

	reg.evictExpired(time.Now().Add(time.Hour))
	assert.Equal(t, 1, reg.Len(), "attached subscriber must block eviction")

	cancel()
	reg.evictExpired(time.Now().Add(time.Hour))
	assert.Zero(t, reg.Len())
}
