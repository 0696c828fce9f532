package maps

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"googlemaps.github.io/maps"

	"fleetmatch/internal/types"
)

func TestRouteFromLegs(t *testing.T) {
	legs := []*maps.Leg{
		{Distance: maps.Distance{Meters: 250_000}, Duration: 3 * time.Hour},
		nil,
		{Distance: maps.Distance{Meters: 150_500}, Duration: 90 * time.Minute},
	}
	r := routeFromLegs(legs)
	assert.InDelta(t, 400.5, r.DistanceKm, 1e-9)
	assert.InDelta(t, 270.0, r.DurationMin, 1e-9)
}

func TestLatLng(t *testing.T) {
	assert.Equal(t, "52.520000,13.405000", latLng(types.Point{Lat: 52.52, Lng: 13.405}))
	assert.Equal(t, "-33.868800,151.209300", latLng(types.Point{Lat: -33.8688, Lng: 151.2093}))
}

func TestGeocodeRequest(t *testing.T) {
	r := geocodeRequest(types.Place{City: " Berlin ", Country: "DE"})
	assert.Equal(t, "Berlin", r.Address)
	assert.Equal(t, "DE", r.Components[maps.ComponentCountry])

	r = geocodeRequest(types.Place{City: "Lyon"})
	assert.Nil(t, r.Components)
}
