package config

import (
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.Cache.PositionsTTL)
	assert.Equal(t, 2*time.Minute, cfg.Cache.JobsTTL)
	assert.Equal(t, 5*time.Minute, cfg.Cache.RoutesTTL)
	assert.Equal(t, 90*time.Second, cfg.Cache.MatchesTTL)
	assert.Equal(t, 45*time.Second, cfg.Cache.FleetStatusTTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.MetricsTTL)
	assert.Equal(t, 30.0, cfg.Matching.PreScoreThreshold)
	assert.Equal(t, 60.0, cfg.Matching.MinScore)
	assert.True(t, cfg.Matching.ExcludeHighRisk)
	assert.Equal(t, 0.35, cfg.Scoring.WeightProfit)
	assert.Empty(t, cfg.Maps.APIKey)
	assert.Equal(t, time.Minute, cfg.Fleet.SnapshotInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FLEETMATCH_HTTP_ADDR", ":9090")
	t.Setenv("FLEETMATCH_CACHE_JOBS_TTL", "3m")
	t.Setenv("FLEETMATCH_MATCH_MIN_SCORE", "70")
	t.Setenv("FLEETMATCH_MATCH_EXCLUDE_HIGH_RISK", "false")
	t.Setenv("FLEETMATCH_SCORING_FUEL_PRICE_PER_LITER", "1.85")
	t.Setenv("FLEETMATCH_LOG_LEVEL", " DEBUG ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 3*time.Minute, cfg.Cache.JobsTTL)
	assert.Equal(t, 70.0, cfg.Matching.MinScore)
	assert.False(t, cfg.Matching.ExcludeHighRisk)
	assert.Equal(t, 1.85, cfg.Scoring.FuelPricePerLiter)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsMalformed(t *testing.T) {
	t.Setenv("FLEETMATCH_CACHE_JOBS_TTL", "two minutes")
	_, err := Load()
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Matching.MinScore = 150
	cfg.Matching.PreScoreThreshold = -1
	cfg.Matching.Workers = 0
	cfg.Matching.MaxLimit = 20
	cfg.Matching.DefaultLimit = 50
	cfg.Cache.MatchesTTL = 0
	cfg.Cache.MinHitRate = 3
	cfg.Scoring.WeightRisk = -0.5
	cfg.Scoring.WeightProfit = 0.9
	cfg.Sanitize()

	assert.Equal(t, 60.0, cfg.Matching.MinScore)
	assert.Equal(t, 30.0, cfg.Matching.PreScoreThreshold)
	assert.Equal(t, runtime.NumCPU(), cfg.Matching.Workers)
	assert.Equal(t, 10, cfg.Matching.DefaultLimit)
	assert.Equal(t, 90*time.Second, cfg.Cache.MatchesTTL)
	assert.Equal(t, 0.5, cfg.Cache.MinHitRate)
	assert.Equal(t, 0.05, cfg.Scoring.WeightRisk)
	assert.Equal(t, 0.35, cfg.Scoring.WeightProfit)
}
