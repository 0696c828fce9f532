package scoring

import (
	"time"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/modules/pricing"
)

// ProximityScore buckets the empty run from vehicle to pickup.
func ProximityScore(pickupKm float64) float64 {
	switch {
	case pickupKm <= 10:
		return 100
	case pickupKm <= 50:
		return 80
	case pickupKm <= 100:
		return 60
	case pickupKm <= 200:
		return 40
	default:
		return 20
	}
}

// ProfitScore buckets the profit margin. Below 10% scores zero.
func ProfitScore(margin float64) float64 {
	switch {
	case margin >= 0.50:
		return 100
	case margin >= 0.30:
		return 80
	case margin >= 0.20:
		return 60
	case margin >= 0.10:
		return 40
	default:
		return 0
	}
}

// UrgencyScore buckets hours left until the job is due. Overdue jobs score 100.
func UrgencyScore(hoursLeft float64) float64 {
	switch {
	case hoursLeft < 24:
		return 100
	case hoursLeft < 48:
		return 75
	case hoursLeft < 72:
		return 50
	default:
		return 25
	}
}

// tierUrgency scores jobs that carry neither a deadline nor a delivery time.
func tierUrgency(u cargo.Urgency) float64 {
	switch u {
	case cargo.UrgencyHigh:
		return 100
	case cargo.UrgencyMedium:
		return 50
	default:
		return 25
	}
}

// urgencyFor returns the urgency score and hours left; hasDue is false when
// the job has no due time and the tier was used.
func urgencyFor(job cargo.Job, now time.Time) (score, hoursLeft float64, hasDue bool) {
	due, ok := job.DueAt()
	if !ok {
		return tierUrgency(job.Urgency), 0, false
	}
	hoursLeft = due.Sub(now).Hours()
	return UrgencyScore(hoursLeft), hoursLeft, true
}

// EfficiencyScore starts at 100 and is clamped to [0,100].
func EfficiencyScore(v fleet.Vehicle, pickupKm, loadRatio float64) float64 {
	score := 100.0
	switch {
	case v.FuelConsumption > 35:
		score -= 20
	case v.FuelConsumption > 25:
		score -= 10
	}
	switch {
	case pickupKm > 100:
		score -= 20
	case pickupKm > 50:
		score -= 10
	}
	if v.Status == fleet.StatusIdle {
		score += 10
	}
	switch {
	case loadRatio >= 0.8:
		score += 10
	case loadRatio >= 0.5:
		score += 5
	case loadRatio < 0.3:
		score -= 15
	}
	return clamp(score, 0, 100)
}

// RiskScore is an additive penalty in [0,100]; higher is riskier.
func RiskScore(cfg Config, job cargo.Job, v fleet.Vehicle, routeKm, loadRatio float64) (float64, []string) {
	risk := 0.0
	var factors []string
	add := func(points float64, factor string) {
		risk += points
		factors = append(factors, factor)
	}

	switch {
	case routeKm > cfg.VeryLongRouteKm:
		add(30, FactorVeryLongRoute)
	case routeKm > cfg.LongRouteKm:
		add(15, FactorLongRoute)
	}
	switch {
	case job.Category == cargo.CategoryHazardous || job.HasRequirement(cargo.RequirementADR):
		add(25, FactorHazardous)
	case job.Category == cargo.CategoryFragile:
		add(15, FactorFragile)
	}
	if loadRatio > 0.9 {
		add(20, FactorHeavyLoad)
	}
	if job.Urgency == cargo.UrgencyHigh {
		add(10, FactorHighUrgency)
	}
	switch v.Status {
	case fleet.StatusMaintenance:
		add(30, FactorMaintenance)
	case fleet.StatusAssigned:
		add(15, FactorAssigned)
	}
	return clamp(risk, 0, 100), factors
}

// CalculateCosts prices a route for a vehicle.
func CalculateCosts(route geo.Route, v fleet.Vehicle, rates pricing.Rates) CostBreakdown {
	c := CostBreakdown{
		Fuel:   geo.FuelCost(route.DistanceKm, v.FuelConsumption, rates.FuelPricePerLiter),
		Driver: geo.DriverCost(route.Hours(), rates.DriverHourlyRate),
		Wear:   geo.WearCost(route.DistanceKm, rates.WearPerKm),
	}
	c.Total = c.Fuel + c.Driver + c.Wear
	if route.DistanceKm > 0 {
		c.PerKm = c.Total / route.DistanceKm
	}
	return c
}

// ClassifyRisk counts distinct factors and distinct warnings: three of either
// is high, two is medium.
func ClassifyRisk(factors, warnings []string) RiskTier {
	n := max(countDistinct(factors), countDistinct(warnings))
	switch {
	case n >= 3:
		return RiskHigh
	case n >= 2:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommend turns the total and the top concern into dispatcher-facing text.
func Recommend(total float64, tier RiskTier, factors, warnings []string) string {
	var text string
	switch {
	case total >= 85:
		text = "Excellent match, assign now."
	case total >= 70:
		text = "Good match."
	case total >= 60:
		text = "Acceptable match, review before assigning."
	default:
		text = "Not recommended."
	}
	switch {
	case len(warnings) > 0:
		text += " Watch: " + warnings[0] + "."
	case tier != RiskLow && len(factors) > 0:
		text += " Risk: " + factors[0] + "."
	}
	return text
}

func countDistinct(items []string) int {
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		seen[s] = struct{}{}
	}
	return len(seen)
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
