package maps

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"googlemaps.github.io/maps"

	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// RouteService estimates road distance and driving time with the Google Maps Directions API.
type RouteService struct {
	client *maps.Client
	region string
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey, region string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, region: region}, nil
}

// Estimate returns the first driving route between two points. Truck routing
// is not available in the API, so durations are car-based.
func (s *RouteService) Estimate(ctx context.Context, from, to types.Point) (geo.Route, error) {
	r := &maps.DirectionsRequest{
		Origin:      latLng(from),
		Destination: latLng(to),
		Mode:        maps.TravelModeDriving,
		Region:      s.region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return geo.Route{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return geo.Route{}, ErrNoRoute
	}
	return routeFromLegs(routes[0].Legs), nil
}

func routeFromLegs(legs []*maps.Leg) geo.Route {
	var meters int
	var minutes float64
	for _, leg := range legs {
		if leg == nil {
			continue
		}
		meters += leg.Distance.Meters
		minutes += leg.Duration.Minutes()
	}
	return geo.Route{DistanceKm: float64(meters) / 1000, DurationMin: minutes}
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
