package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"fleetmatch/internal/types"
)

var ErrNoResult = errors.New("no geocoding result")

// GeocodeService resolves city-level places to coordinates.
type GeocodeService struct {
	client *maps.Client
}

func NewGeocodeService(apiKey string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client}, nil
}

func (s *GeocodeService) Geocode(ctx context.Context, p types.Place) (types.Point, error) {
	r := geocodeRequest(p)
	if r.Address == "" {
		return types.Point{}, ErrNoResult
	}
	results, err := s.client.Geocode(ctx, r)
	if err != nil {
		return types.Point{}, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, ErrNoResult
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func geocodeRequest(p types.Place) *maps.GeocodingRequest {
	r := &maps.GeocodingRequest{Address: strings.TrimSpace(p.City)}
	if c := strings.TrimSpace(p.Country); c != "" {
		r.Components = map[maps.Component]string{maps.ComponentCountry: c}
	}
	return r
}
