package geo

import (
	"math"

	"fleetmatch/internal/types"
)

// Route is a distance/duration estimate between two places.
type Route struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Estimated   bool    `json:"estimated"`
}

func (r Route) Hours() float64 {
	return r.DurationMin / 60
}

// FuelCost = (distance/100) × consumption (L/100km) × price per litre.
func FuelCost(distanceKm, litresPer100Km, pricePerLitre float64) float64 {
	return distanceKm / 100 * litresPer100Km * pricePerLitre
}

func DriverCost(hours, hourlyRate float64) float64 {
	return hours * hourlyRate
}

func WearCost(distanceKm, perKm float64) float64 {
	return distanceKm * perKm
}

// DurationMin estimates driving time at a constant average speed.
func DurationMin(distanceKm, avgSpeedKmh float64) float64 {
	if avgSpeedKmh <= 0 {
		return 0
	}
	return distanceKm / avgSpeedKmh * 60
}

// EstimateRoute builds a route from the straight-line (or city-pair) distance.
func EstimateRoute(from, to types.Place, avgSpeedKmh float64) Route {
	km, estimated := PlaceDistanceKm(from, to)
	return Route{
		DistanceKm:  km,
		DurationMin: DurationMin(km, avgSpeedKmh),
		Estimated:   estimated,
	}
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
