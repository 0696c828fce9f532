package fleet

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmatch/internal/types"
)

func setupPositionStore(t *testing.T) *PositionStore {
	t.Helper()
	addr := os.Getenv("FLEETMATCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FLEETMATCH_TEST_REDIS_ADDR not set; skipping Redis-backed position tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	require.NoError(t, client.Del(ctx, positionsGeoKey, positionsTsKey).Err())
	return NewPositionStore(client)
}

func TestPositionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupPositionStore(t)
	at := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.Update(ctx, "v1", types.Point{Lat: 52.52, Lng: 13.405}, at))
	require.NoError(t, s.Update(ctx, "v2", types.Point{Lat: 48.1351, Lng: 11.582}, at))

	got, err := s.Positions(ctx, []types.ID{"v1", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 52.52, got[0].Point.Lat, 0.001)
	assert.True(t, got[0].RecordedAt.Equal(at))

	all, err := s.Positions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	near, err := s.Nearby(ctx, types.Point{Lat: 52.5, Lng: 13.4}, 50)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{"v1"}, near)

	require.NoError(t, s.Remove(ctx, "v1"))
	all, err = s.Positions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
