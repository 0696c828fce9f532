// README: Pure geographic and trip-cost helpers. No state.
package geo

import (
	"math"
	"strings"

	"fleetmatch/internal/types"
)

const earthRadiusKm = 6371.0

// Coarse distances used when a place has no coordinates and its city is not in knownCities.
const (
	SameCityKm    = 25.0
	SameCountryKm = 300.0
	CrossBorderKm = 800.0
)

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func PointDistanceKm(a, b types.Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// knownCities maps a normalised city name to its centre.
var knownCities = map[string]types.Point{
	"amsterdam": {Lat: 52.3676, Lng: 4.9041},
	"barcelona": {Lat: 41.3874, Lng: 2.1686},
	"berlin":    {Lat: 52.5200, Lng: 13.4050},
	"brussels":  {Lat: 50.8503, Lng: 4.3517},
	"budapest":  {Lat: 47.4979, Lng: 19.0402},
	"cologne":   {Lat: 50.9375, Lng: 6.9603},
	"frankfurt": {Lat: 50.1109, Lng: 8.6821},
	"gdansk":    {Lat: 54.3520, Lng: 18.6466},
	"hamburg":   {Lat: 53.5511, Lng: 9.9937},
	"krakow":    {Lat: 50.0647, Lng: 19.9450},
	"leipzig":   {Lat: 51.3397, Lng: 12.3731},
	"lyon":      {Lat: 45.7640, Lng: 4.8357},
	"madrid":    {Lat: 40.4168, Lng: -3.7038},
	"milan":     {Lat: 45.4642, Lng: 9.1900},
	"munich":    {Lat: 48.1351, Lng: 11.5820},
	"paris":     {Lat: 48.8566, Lng: 2.3522},
	"poznan":    {Lat: 52.4064, Lng: 16.9252},
	"prague":    {Lat: 50.0755, Lng: 14.4378},
	"rotterdam": {Lat: 51.9244, Lng: 4.4777},
	"vienna":    {Lat: 48.2082, Lng: 16.3738},
	"warsaw":    {Lat: 52.2297, Lng: 21.0122},
	"wroclaw":   {Lat: 51.1079, Lng: 17.0385},
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Locate returns coordinates for a place: its own when valid, else the known
// city centre.
func Locate(p types.Place) (types.Point, bool) {
	if p.HasCoords() {
		return *p.Coords, true
	}
	pt, ok := knownCities[normalise(p.City)]
	return pt, ok
}

// PlaceDistanceKm returns the distance between two places. estimated is true
// when either side lacked coordinates and a city lookup or the city-pair
// heuristic was used instead. It never fails.
func PlaceDistanceKm(a, b types.Place) (km float64, estimated bool) {
	if a.HasCoords() && b.HasCoords() {
		return PointDistanceKm(*a.Coords, *b.Coords), false
	}
	pa, okA := Locate(a)
	pb, okB := Locate(b)
	if okA && okB {
		return PointDistanceKm(pa, pb), true
	}
	return CityPairKm(a, b), true
}

// CityPairKm is the last-resort heuristic for places that cannot be located.
func CityPairKm(a, b types.Place) float64 {
	switch {
	case a.City != "" && normalise(a.City) == normalise(b.City):
		return SameCityKm
	case a.Country != "" && normalise(a.Country) == normalise(b.Country):
		return SameCountryKm
	default:
		return CrossBorderKm
	}
}
