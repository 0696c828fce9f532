package cache

import "time"

// Policy holds the per-feed TTLs.
type Policy struct {
	Positions   time.Duration `json:"positions"`
	Jobs        time.Duration `json:"jobs"`
	Routes      time.Duration `json:"routes"`
	Matches     time.Duration `json:"matches"`
	FleetStatus time.Duration `json:"fleet_status"`
	Metrics     time.Duration `json:"metrics"`
}

func DefaultPolicy() Policy {
	return Policy{
		Positions:   30 * time.Second,
		Jobs:        2 * time.Minute,
		Routes:      5 * time.Minute,
		Matches:     90 * time.Second,
		FleetStatus: 45 * time.Second,
		Metrics:     10 * time.Minute,
	}
}

// WithDefaults fills unset TTLs from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.Positions <= 0 {
		p.Positions = d.Positions
	}
	if p.Jobs <= 0 {
		p.Jobs = d.Jobs
	}
	if p.Routes <= 0 {
		p.Routes = d.Routes
	}
	if p.Matches <= 0 {
		p.Matches = d.Matches
	}
	if p.FleetStatus <= 0 {
		p.FleetStatus = d.FleetStatus
	}
	if p.Metrics <= 0 {
		p.Metrics = d.Metrics
	}
	return p
}
