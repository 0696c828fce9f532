// README: Match filters, ranked results, and engine errors.
package matching

import (
	"errors"
	"strconv"
	"time"

	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

var ErrInvalidInput = errors.New("invalid match request")

// Filters narrow a search. Zero values mean "no constraint" except where the
// engine config supplies a default (MaxDistanceKm, MinScore, ExcludeHighRisk).
type Filters struct {
	Urgency         cargo.Urgency `json:"urgency,omitempty" validate:"omitempty,oneof=low medium high"`
	MinProfit       float64       `json:"min_profit,omitempty" validate:"gte=0"`
	VehicleTypes    []fleet.Type  `json:"vehicle_types,omitempty" validate:"omitempty,dive,oneof=van truck trailer reefer tanker flatbed"`
	ExcludeHighRisk *bool         `json:"exclude_high_risk,omitempty"`
	MaxDistanceKm   float64       `json:"max_distance_km,omitempty" validate:"gte=0,lte=20000"`
	MinScore        float64       `json:"min_score,omitempty" validate:"gte=0,lte=100"`
	VehicleID       types.ID      `json:"vehicle_id,omitempty" validate:"omitempty,max=64"`
}

// CacheKey is the canonical results key for a request; field order never matters.
func (f Filters) CacheKey(limit int, excludeHighRisk bool) string {
	fields := map[string]string{
		"limit":             strconv.Itoa(limit),
		"urgency":           string(f.Urgency),
		"types":             cache.SortedList(f.VehicleTypes),
		"vehicle":           string(f.VehicleID),
		"exclude_high_risk": strconv.FormatBool(excludeHighRisk),
	}
	if f.MinProfit > 0 {
		fields["min_profit"] = formatFloat(f.MinProfit)
	}
	if f.MaxDistanceKm > 0 {
		fields["max_km"] = formatFloat(f.MaxDistanceKm)
	}
	if f.MinScore > 0 {
		fields["min_score"] = formatFloat(f.MinScore)
	}
	return cache.Key(cache.PrefixMatchResults, fields)
}

func (f Filters) allowsType(t fleet.Type) bool {
	if len(f.VehicleTypes) == 0 {
		return true
	}
	for _, vt := range f.VehicleTypes {
		if vt == t {
			return true
		}
	}
	return false
}

type Result struct {
	Matches []scoring.MatchCandidate `json:"matches"`
	// Degraded is set when a feed served stale or empty data.
	Degraded bool     `json:"degraded"`
	Warnings []string `json:"warnings,omitempty"`
	// Evaluated counts scored pairs; Skipped counts jobs dropped by the
	// pre-score and pairs dropped by hard filters; Failed counts malformed pairs.
	Evaluated  int       `json:"evaluated"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	ComputedAt time.Time `json:"computed_at"`
}

func (r *Result) clone() *Result {
	out := *r
	out.Matches = append([]scoring.MatchCandidate(nil), r.Matches...)
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
