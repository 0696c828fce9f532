// README: Common value objects shared across modules.
package types

import "math"

type ID string

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the point holds finite, in-range coordinates.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Place is a named location; Coords is nil when only the city is known.
type Place struct {
	City    string `json:"city"`
	Country string `json:"country"`
	Coords  *Point `json:"coords,omitempty"`
}

func (p Place) HasCoords() bool {
	return p.Coords != nil && p.Coords.Valid()
}

type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}
