// README: Pricing store backed by PostgreSQL.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("no pricing rates configured")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CurrentRates returns the most recent row that is already in effect.
func (s *Store) CurrentRates(ctx context.Context) (Rates, error) {
	var r Rates
	err := s.db.QueryRow(ctx, `
		SELECT fuel_price_per_liter, driver_hourly_rate, wear_per_km, average_speed_kmh, currency, effective_from
		FROM pricing_rates
		WHERE effective_from <= now()
		ORDER BY effective_from DESC
		LIMIT 1`,
	).Scan(&r.FuelPricePerLiter, &r.DriverHourlyRate, &r.WearPerKm, &r.AverageSpeedKmh, &r.Currency, &r.EffectiveFrom)
	if errors.Is(err, pgx.ErrNoRows) {
		return Rates{}, ErrNotFound
	}
	if err != nil {
		return Rates{}, fmt.Errorf("pricing.CurrentRates: %w", err)
	}
	return r, nil
}
