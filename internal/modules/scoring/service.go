// README: Scoring service rates one (job, vehicle) pairing. Pure apart from the rate snapshot and clock.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"time"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/modules/pricing"
)

var ErrMalformed = errors.New("malformed match input")

type RateProvider interface {
	Current() pricing.Rates
}

type Service struct {
	rates RateProvider
	cfg   Config
	now   func() time.Time
}

func NewService(rates RateProvider, cfg Config, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{rates: rates, cfg: cfg.WithDefaults(), now: now}
}

func (s *Service) Config() Config {
	return s.cfg
}

// Validate rejects records that cannot be scored meaningfully.
func Validate(job cargo.Job, v fleet.Vehicle) error {
	switch {
	case job.ID == "":
		return fmt.Errorf("%w: job without id", ErrMalformed)
	case v.ID == "":
		return fmt.Errorf("%w: vehicle without id", ErrMalformed)
	case !(job.WeightKg > 0):
		return fmt.Errorf("%w: job %s weight %v", ErrMalformed, job.ID, job.WeightKg)
	case !(v.CapacityKg > 0):
		return fmt.Errorf("%w: vehicle %s capacity %v", ErrMalformed, v.ID, v.CapacityKg)
	case math.IsNaN(job.Price.Amount) || job.Price.Amount < 0:
		return fmt.Errorf("%w: job %s price %v", ErrMalformed, job.ID, job.Price.Amount)
	case math.IsNaN(v.FuelConsumption) || v.FuelConsumption < 0:
		return fmt.Errorf("%w: vehicle %s consumption %v", ErrMalformed, v.ID, v.FuelConsumption)
	}
	return nil
}

// PickupDistanceKm is the empty run from the vehicle to the job origin.
func PickupDistanceKm(job cargo.Job, v fleet.Vehicle) (km float64, estimated bool) {
	return geo.PlaceDistanceKm(v.Location(), job.Origin)
}

// Score rates a pairing using a straight-line route estimate.
func (s *Service) Score(job cargo.Job, v fleet.Vehicle) MatchCandidate {
	return s.ScoreRoute(job, v, geo.Route{})
}

// ScoreRoute rates a pairing against a known route. A zero route is estimated
// from the job's places. It always returns a candidate.
func (s *Service) ScoreRoute(job cargo.Job, v fleet.Vehicle, route geo.Route) MatchCandidate {
	rates := s.rates.Current()
	now := s.now()

	if !(route.DistanceKm > 0) {
		route = geo.EstimateRoute(job.Origin, job.Destination, rates.AverageSpeedKmh)
	}
	if !(route.DurationMin > 0) {
		route.DurationMin = geo.DurationMin(route.DistanceKm, rates.AverageSpeedKmh)
	}

	pickupKm, pickupEstimated := PickupDistanceKm(job, v)
	loadRatio := 0.0
	if v.CapacityKg > 0 {
		loadRatio = job.WeightKg / v.CapacityKg
	}

	costs := CalculateCosts(route, v, rates)
	revenue := job.Revenue(route.DistanceKm)
	profit := revenue - costs.Total
	margin := 0.0
	if revenue > 0 {
		margin = profit / revenue
	}

	urgency, hoursLeft, hasDue := urgencyFor(job, now)
	risk, factors := RiskScore(s.cfg, job, v, route.DistanceKm, loadRatio)

	sc := Scores{
		Proximity:  ProximityScore(pickupKm),
		Profit:     ProfitScore(margin),
		Urgency:    urgency,
		Efficiency: EfficiencyScore(v, pickupKm, loadRatio),
		Risk:       risk,
	}
	w := s.cfg.Weights
	total := w.Proximity*sc.Proximity +
		w.Profit*sc.Profit +
		w.Urgency*sc.Urgency +
		w.Efficiency*sc.Efficiency +
		w.Risk*(100-sc.Risk)

	warnings := s.warnings(job, v, warningInput{
		hasDue:    hasDue,
		hoursLeft: hoursLeft,
		margin:    margin,
		pickupKm:  pickupKm,
		estimated: pickupEstimated || route.Estimated,
	})
	tier := ClassifyRisk(factors, warnings)
	total = geo.Round1(total)

	return MatchCandidate{
		JobID:        job.ID,
		VehicleID:    v.ID,
		JobCreatedAt: job.CreatedAt,
		Scores:       sc,
		Total:        total,
		Costs: CostBreakdown{
			Fuel:   round2(costs.Fuel),
			Driver: round2(costs.Driver),
			Wear:   round2(costs.Wear),
			Total:  round2(costs.Total),
			PerKm:  round2(costs.PerKm),
		},
		Revenue:        round2(revenue),
		Profit:         round2(profit),
		ProfitMargin:   math.Round(margin*1000) / 1000,
		Currency:       currency(job, rates),
		PickupKm:       geo.Round1(pickupKm),
		RouteKm:        geo.Round1(route.DistanceKm),
		DurationHours:  geo.Round1(route.Hours()),
		LoadRatio:      math.Round(loadRatio*100) / 100,
		RiskFactors:    factors,
		Warnings:       warnings,
		RiskTier:       tier,
		Recommendation: Recommend(total, tier, factors, warnings),
	}
}

// PreScore is a cheap per-job signal used to skip low-value, non-urgent jobs
// before pairing: revenue per km bucket blended with urgency.
func (s *Service) PreScore(job cargo.Job) float64 {
	rates := s.rates.Current()
	route := geo.EstimateRoute(job.Origin, job.Destination, rates.AverageSpeedKmh)
	km := max(route.DistanceKm, 1)
	perKm := job.Revenue(route.DistanceKm) / km

	var value float64
	switch {
	case perKm >= 2:
		value = 100
	case perKm >= 1.5:
		value = 80
	case perKm >= 1:
		value = 60
	case perKm >= 0.5:
		value = 40
	default:
		value = 10
	}
	urgency, _, _ := urgencyFor(job, s.now())
	return geo.Round1(0.6*value + 0.4*urgency)
}

type warningInput struct {
	hasDue    bool
	hoursLeft float64
	margin    float64
	pickupKm  float64
	estimated bool
}

func (s *Service) warnings(job cargo.Job, v fleet.Vehicle, in warningInput) []string {
	var out []string
	if in.hasDue {
		switch {
		case in.hoursLeft < 0:
			out = append(out, WarnDeadlinePassed)
		case in.hoursLeft < s.cfg.TightDeadlineHours:
			out = append(out, WarnTightDeadline)
		}
	}
	if in.margin < s.cfg.LowMargin {
		out = append(out, WarnLowMargin)
	}
	if in.pickupKm > s.cfg.LongPickupKm {
		out = append(out, WarnLongPickup)
	}
	if in.estimated {
		out = append(out, WarnEstimatedDistance)
	}
	needsCold := job.Category == cargo.CategoryRefrigerated || job.HasRequirement(cargo.RequirementColdChain)
	if needsCold && v.Type != fleet.TypeReefer && !v.HasFeature(cargo.RequirementColdChain) {
		out = append(out, WarnNoColdChain)
	}
	if job.HasRequirement(cargo.RequirementADR) && !v.HasFeature(cargo.RequirementADR) {
		out = append(out, WarnNoADR)
	}
	if job.HasRequirement(cargo.RequirementTailLift) && !v.HasFeature(cargo.RequirementTailLift) {
		out = append(out, WarnNoTailLift)
	}
	return out
}

func currency(job cargo.Job, rates pricing.Rates) string {
	if job.Price.Currency != "" {
		return job.Price.Currency
	}
	return rates.Currency
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
