// README: Cost rates used by trip-cost estimation (fuel, driver time, wear).
package pricing

import (
	"errors"
	"time"
)

var ErrInvalidRates = errors.New("invalid rates")

type Rates struct {
	FuelPricePerLiter float64   `json:"fuel_price_per_liter"`
	DriverHourlyRate  float64   `json:"driver_hourly_rate"`
	WearPerKm         float64   `json:"wear_per_km"`
	AverageSpeedKmh   float64   `json:"average_speed_kmh"`
	Currency          string    `json:"currency"`
	EffectiveFrom     time.Time `json:"effective_from"`
}

// DefaultRates applies until the first successful refresh.
func DefaultRates() Rates {
	return Rates{
		FuelPricePerLiter: 1.50,
		DriverHourlyRate:  25,
		WearPerKm:         0.10,
		AverageSpeedKmh:   80,
		Currency:          "EUR",
	}
}

func (r Rates) Validate() error {
	if r.FuelPricePerLiter <= 0 || r.DriverHourlyRate <= 0 || r.WearPerKm < 0 || r.AverageSpeedKmh <= 0 {
		return ErrInvalidRates
	}
	return nil
}
