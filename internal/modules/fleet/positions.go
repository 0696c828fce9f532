// README: Telemetry positions kept in a Redis GEO set.
package fleet

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetmatch/internal/types"
)

const (
	positionsGeoKey = "fleet:positions"
	positionsTsKey  = "fleet:positions:ts"
)

type PositionStore struct {
	redis *redis.Client
}

func NewPositionStore(redis *redis.Client) *PositionStore {
	return &PositionStore{redis: redis}
}

// Update records the latest fix for a vehicle.
func (s *PositionStore) Update(ctx context.Context, id types.ID, p types.Point, at time.Time) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, positionsGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.HSet(ctx, positionsTsKey, string(id), at.UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fleet.PositionStore.Update: %w", err)
	}
	return nil
}

func (s *PositionStore) Remove(ctx context.Context, id types.ID) error {
	pipe := s.redis.TxPipeline()
	pipe.ZRem(ctx, positionsGeoKey, string(id))
	pipe.HDel(ctx, positionsTsKey, string(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Positions returns the last known fix for ids, or for every tracked vehicle
// when ids is empty. Vehicles without a fix are omitted.
func (s *PositionStore) Positions(ctx context.Context, ids []types.ID) ([]Position, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	if len(names) == 0 {
		all, err := s.redis.ZRange(ctx, positionsGeoKey, 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("fleet.PositionStore.Positions: %w", err)
		}
		names = all
	}
	if len(names) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	geo := pipe.GeoPos(ctx, positionsGeoKey, names...)
	ts := pipe.HMGet(ctx, positionsTsKey, names...)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("fleet.PositionStore.Positions: %w", err)
	}

	coords := geo.Val()
	stamps := ts.Val()
	out := make([]Position, 0, len(names))
	for i, name := range names {
		if i >= len(coords) || coords[i] == nil {
			continue
		}
		p := Position{
			VehicleID: types.ID(name),
			Point:     types.Point{Lat: coords[i].Latitude, Lng: coords[i].Longitude},
		}
		if i < len(stamps) {
			p.RecordedAt = parseMillis(stamps[i])
		}
		out = append(out, p)
	}
	return out, nil
}

// Nearby returns vehicle ids within radiusKm of p, closest first.
func (s *PositionStore) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := s.redis.GeoSearch(ctx, positionsGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

func parseMillis(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
