package main

import (
	"fleetmatch/internal/config"
	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/pricing"
	"fleetmatch/internal/modules/scoring"
)

func cachePolicy(c config.CacheConfig) cache.Policy {
	return cache.Policy{
		Positions:   c.PositionsTTL,
		Jobs:        c.JobsTTL,
		Routes:      c.RoutesTTL,
		Matches:     c.MatchesTTL,
		FleetStatus: c.FleetStatusTTL,
		Metrics:     c.MetricsTTL,
	}
}

func feedsConfig(c config.CacheConfig, s config.ScoringConfig, m config.MatchingConfig) feeds.Config {
	cfg := feeds.DefaultConfig()
	cfg.SourceTimeout = c.SourceTimeout
	cfg.ComputeTimeout = m.ComputeTimeout
	cfg.SweepInterval = c.SweepInterval
	cfg.MonitorInterval = c.MonitorInterval
	cfg.WarmInterval = c.WarmInterval
	cfg.MinHitRate = c.MinHitRate
	cfg.MaxBytes = c.MaxBytes
	cfg.AverageSpeedKmh = s.AverageSpeedKmh
	return cfg
}

func scoringConfig(s config.ScoringConfig) scoring.Config {
	cfg := scoring.DefaultConfig()
	cfg.Weights = scoring.Weights{
		Proximity:  s.WeightProximity,
		Profit:     s.WeightProfit,
		Urgency:    s.WeightUrgency,
		Efficiency: s.WeightEfficiency,
		Risk:       s.WeightRisk,
	}
	return cfg
}

func initialRates(s config.ScoringConfig) pricing.Rates {
	return pricing.Rates{
		FuelPricePerLiter: s.FuelPricePerLiter,
		DriverHourlyRate:  s.DriverHourlyRate,
		WearPerKm:         s.WearPerKm,
		AverageSpeedKmh:   s.AverageSpeedKmh,
		Currency:          s.Currency,
	}
}
