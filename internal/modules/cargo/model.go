// README: Cargo job aggregate, status definitions, and transition table.
package cargo

import (
	"time"

	"fleetmatch/internal/types"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusTaken     Status = "taken"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

type PriceType string

const (
	PriceFlat  PriceType = "flat"
	PricePerKm PriceType = "per_km"
)

type Category string

const (
	CategoryGeneral      Category = "general"
	CategoryHazardous    Category = "hazardous"
	CategoryFragile      Category = "fragile"
	CategoryRefrigerated Category = "refrigerated"
	CategoryBulk         Category = "bulk"
)

// Requirement tags a job may carry.
const (
	RequirementADR       = "adr"
	RequirementColdChain = "cold_chain"
	RequirementTailLift  = "tail_lift"
)

type Job struct {
	ID            types.ID    `json:"id"`
	Origin        types.Place `json:"origin"`
	Destination   types.Place `json:"destination"`
	WeightKg      float64     `json:"weight_kg"`
	Category      Category    `json:"category"`
	Price         types.Money `json:"price"`
	PriceType     PriceType   `json:"price_type"`
	LoadingAt     time.Time   `json:"loading_at"`
	DeliveryAt    time.Time   `json:"delivery_at"`
	Deadline      *time.Time  `json:"deadline,omitempty"`
	Urgency       Urgency     `json:"urgency"`
	Requirements  []string    `json:"requirements,omitempty"`
	Status        Status      `json:"status"`
	StatusVersion int         `json:"status_version"`
	VehicleID     *types.ID   `json:"vehicle_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Revenue is the flat price, or the per-km price times the route length.
func (j Job) Revenue(routeKm float64) float64 {
	if j.PriceType == PricePerKm {
		return j.Price.Amount * routeKm
	}
	return j.Price.Amount
}

// DueAt is the hard deadline when set, else the delivery time. ok is false when neither is known.
func (j Job) DueAt() (time.Time, bool) {
	if j.Deadline != nil && !j.Deadline.IsZero() {
		return *j.Deadline, true
	}
	if !j.DeliveryAt.IsZero() {
		return j.DeliveryAt, true
	}
	return time.Time{}, false
}

func (j Job) HasRequirement(tag string) bool {
	for _, r := range j.Requirements {
		if r == tag {
			return true
		}
	}
	return false
}

// Query selects open jobs from the listing feed.
type Query struct {
	Urgency Urgency `json:"urgency,omitempty"`
	Limit   int     `json:"limit,omitempty"`
}

// Performance is the analytics summary served by the metrics feed.
type Performance struct {
	Since       time.Time `json:"since"`
	Open        int       `json:"open"`
	Taken       int       `json:"taken"`
	Completed   int       `json:"completed"`
	Cancelled   int       `json:"cancelled"`
	FlatRevenue float64   `json:"flat_revenue"`
	AvgWeightKg float64   `json:"avg_weight_kg"`
}

// AllowedTransitions represents the job state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusNew:   {StatusTaken, StatusCancelled},
	StatusTaken: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
