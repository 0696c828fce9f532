package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmatch/internal/config"
	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/pricing"
	"fleetmatch/internal/modules/scoring"
)

func TestWiring_DefaultsLineUp(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, cache.DefaultPolicy(), cachePolicy(cfg.Cache))
	assert.Equal(t, scoring.DefaultWeights(), scoringConfig(cfg.Scoring).Weights)

	rates := initialRates(cfg.Scoring)
	require.NoError(t, rates.Validate())
	def := pricing.DefaultRates()
	assert.Equal(t, def.FuelPricePerLiter, rates.FuelPricePerLiter)
	assert.Equal(t, def.Currency, rates.Currency)

	fc := feedsConfig(cfg.Cache, cfg.Scoring, cfg.Matching)
	assert.Equal(t, cfg.Cache.SourceTimeout, fc.SourceTimeout)
	assert.Equal(t, 30*time.Second, fc.ComputeTimeout)
	assert.Equal(t, 80.0, fc.AverageSpeedKmh)
	assert.Positive(t, fc.MinSamples)
}
