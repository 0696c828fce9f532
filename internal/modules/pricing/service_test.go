package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock RateSource ---

type mockRateSource struct {
	rates Rates
	err   error
	calls int
}

func (m *mockRateSource) CurrentRates(ctx context.Context) (Rates, error) {
	m.calls++
	return m.rates, m.err
}

// --- Tests ---

func TestNewService_InvalidInitialFallsBackToDefaults(t *testing.T) {
	s := NewService(nil, Rates{}, nil)
	assert.Equal(t, DefaultRates(), s.Current())
}

func TestRefresh_ReplacesRates(t *testing.T) {
	src := &mockRateSource{rates: Rates{FuelPricePerLiter: 1.8, DriverHourlyRate: 30, WearPerKm: 0.12, AverageSpeedKmh: 75}}
	s := NewService(src, DefaultRates(), nil)

	require.NoError(t, s.Refresh(context.Background()))
	got := s.Current()
	assert.Equal(t, 1.8, got.FuelPricePerLiter)
	assert.Equal(t, 30.0, got.DriverHourlyRate)
	assert.Equal(t, "EUR", got.Currency, "missing currency keeps previous")
}

func TestRefresh_ErrorKeepsPrevious(t *testing.T) {
	src := &mockRateSource{err: errors.New("db down")}
	s := NewService(src, DefaultRates(), nil)

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, DefaultRates(), s.Current())
}

func TestRefresh_InvalidKeepsPrevious(t *testing.T) {
	src := &mockRateSource{rates: Rates{FuelPricePerLiter: -1, DriverHourlyRate: 30, AverageSpeedKmh: 80}}
	s := NewService(src, DefaultRates(), nil)

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrInvalidRates)
	assert.Equal(t, DefaultRates(), s.Current())
}

func TestRefresh_NilSourceIsNoop(t *testing.T) {
	s := NewService(nil, DefaultRates(), nil)
	assert.NoError(t, s.Refresh(context.Background()))
}
