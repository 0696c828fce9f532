// README: Match candidate, weights, and scoring thresholds.
package scoring

import (
	"time"

	"fleetmatch/internal/types"
)

type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Weights blend the five sub-scores into the total. Risk is applied inverted.
type Weights struct {
	Proximity  float64 `json:"proximity"`
	Profit     float64 `json:"profit"`
	Urgency    float64 `json:"urgency"`
	Efficiency float64 `json:"efficiency"`
	Risk       float64 `json:"risk"`
}

func DefaultWeights() Weights {
	return Weights{Proximity: 0.25, Profit: 0.35, Urgency: 0.20, Efficiency: 0.15, Risk: 0.05}
}

func (w Weights) sum() float64 {
	return w.Proximity + w.Profit + w.Urgency + w.Efficiency + w.Risk
}

type Config struct {
	Weights Weights
	// Route length breakpoints for the distance risk factor.
	LongRouteKm     float64
	VeryLongRouteKm float64
	// Warning thresholds.
	LongPickupKm       float64
	TightDeadlineHours float64
	LowMargin          float64
}

func DefaultConfig() Config {
	return Config{
		Weights:            DefaultWeights(),
		LongRouteKm:        200,
		VeryLongRouteKm:    500,
		LongPickupKm:       100,
		TightDeadlineHours: 24,
		LowMargin:          0.20,
	}
}

// WithDefaults replaces unset fields. Weights that are all zero or negative are reset together.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	w := c.Weights
	if w.sum() <= 0 || w.Proximity < 0 || w.Profit < 0 || w.Urgency < 0 || w.Efficiency < 0 || w.Risk < 0 {
		c.Weights = d.Weights
	}
	if c.LongRouteKm <= 0 {
		c.LongRouteKm = d.LongRouteKm
	}
	if c.VeryLongRouteKm <= c.LongRouteKm {
		c.VeryLongRouteKm = max(d.VeryLongRouteKm, c.LongRouteKm*2)
	}
	if c.LongPickupKm <= 0 {
		c.LongPickupKm = d.LongPickupKm
	}
	if c.TightDeadlineHours <= 0 {
		c.TightDeadlineHours = d.TightDeadlineHours
	}
	if c.LowMargin <= 0 {
		c.LowMargin = d.LowMargin
	}
	return c
}

type Scores struct {
	Proximity  float64 `json:"proximity"`
	Profit     float64 `json:"profit"`
	Urgency    float64 `json:"urgency"`
	Efficiency float64 `json:"efficiency"`
	Risk       float64 `json:"risk"`
}

type CostBreakdown struct {
	Fuel   float64 `json:"fuel"`
	Driver float64 `json:"driver"`
	Wear   float64 `json:"wear"`
	Total  float64 `json:"total"`
	PerKm  float64 `json:"per_km"`
}

// MatchCandidate is one scored (job, vehicle) pairing.
type MatchCandidate struct {
	JobID          types.ID      `json:"job_id"`
	VehicleID      types.ID      `json:"vehicle_id"`
	JobCreatedAt   time.Time     `json:"job_created_at"`
	Scores         Scores        `json:"scores"`
	Total          float64       `json:"total"`
	Costs          CostBreakdown `json:"costs"`
	Revenue        float64       `json:"revenue"`
	Profit         float64       `json:"profit"`
	ProfitMargin   float64       `json:"profit_margin"`
	Currency       string        `json:"currency"`
	PickupKm       float64       `json:"pickup_km"`
	RouteKm        float64       `json:"route_km"`
	DurationHours  float64       `json:"duration_hours"`
	LoadRatio      float64       `json:"load_ratio"`
	RiskFactors    []string      `json:"risk_factors"`
	Warnings       []string      `json:"warnings"`
	RiskTier       RiskTier      `json:"risk_tier"`
	Recommendation string        `json:"recommendation"`
}

// Risk factors.
const (
	FactorVeryLongRoute = "very long route"
	FactorLongRoute     = "long route"
	FactorHazardous     = "hazardous cargo"
	FactorFragile       = "fragile cargo"
	FactorHeavyLoad     = "load above 90% of capacity"
	FactorHighUrgency   = "high urgency"
	FactorMaintenance   = "vehicle in maintenance"
	FactorAssigned      = "vehicle already assigned"
)

// Warnings.
const (
	WarnTightDeadline     = "tight deadline"
	WarnDeadlinePassed    = "deadline already passed"
	WarnLowMargin         = "low profit margin"
	WarnLongPickup        = "long empty run to pickup"
	WarnEstimatedDistance = "distance estimated without coordinates"
	WarnNoColdChain       = "vehicle lacks cold chain"
	WarnNoADR             = "vehicle lacks ADR equipment"
	WarnNoTailLift        = "vehicle lacks tail lift"
)
