// README: Vehicle aggregate, operating status, and fleet summary.
package fleet

import (
	"time"

	"fleetmatch/internal/types"
)

type Status string

const (
	StatusIdle        Status = "idle"
	StatusAssigned    Status = "assigned"
	StatusEnRoute     Status = "en_route"
	StatusMaintenance Status = "maintenance"
)

func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusAssigned, StatusEnRoute, StatusMaintenance:
		return true
	}
	return false
}

type Type string

const (
	TypeVan     Type = "van"
	TypeTruck   Type = "truck"
	TypeTrailer Type = "trailer"
	TypeReefer  Type = "reefer"
	TypeTanker  Type = "tanker"
	TypeFlatbed Type = "flatbed"
)

type Vehicle struct {
	ID              types.ID     `json:"id"`
	FleetID         string       `json:"fleet_id,omitempty"`
	Type            Type         `json:"type"`
	CapacityKg      float64      `json:"capacity_kg"`
	FuelConsumption float64      `json:"fuel_l_per_100km"`
	Status          Status       `json:"status"`
	Position        *types.Point `json:"position,omitempty"`
	PositionAt      time.Time    `json:"position_at,omitempty"`
	Base            types.Place  `json:"base"`
	Features        []string     `json:"features,omitempty"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Eligible vehicles may receive new work: idle, or assigned but schedulable.
func (v Vehicle) Eligible() bool {
	return v.Status == StatusIdle || v.Status == StatusAssigned
}

// Location is the live position when known, otherwise the home base.
func (v Vehicle) Location() types.Place {
	loc := v.Base
	if v.Position != nil && v.Position.Valid() {
		p := *v.Position
		loc.Coords = &p
	}
	return loc
}

func (v Vehicle) HasFeature(tag string) bool {
	for _, f := range v.Features {
		if f == tag {
			return true
		}
	}
	return false
}

type Position struct {
	VehicleID  types.ID    `json:"vehicle_id"`
	Point      types.Point `json:"point"`
	RecordedAt time.Time   `json:"recorded_at"`
}

type StatusSummary struct {
	Total     int            `json:"total"`
	Available int            `json:"available"`
	ByStatus  map[Status]int `json:"by_status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// WithPositions returns copies of vehicles with the latest known position applied.
func WithPositions(vehicles []Vehicle, positions []Position) []Vehicle {
	byID := make(map[types.ID]Position, len(positions))
	for _, p := range positions {
		byID[p.VehicleID] = p
	}
	out := make([]Vehicle, len(vehicles))
	for i, v := range vehicles {
		if p, ok := byID[v.ID]; ok {
			pt := p.Point
			v.Position = &pt
			v.PositionAt = p.RecordedAt
		}
		out[i] = v
	}
	return out
}
