// README: Cache-aware accessors over the job, vehicle, position, and route feeds.
package feeds

import (
	"context"
	"errors"
	"time"

	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/types"
)

// Kind names the domain event behind an invalidation.
type Kind string

const (
	KindJob        Kind = "job"
	KindVehicle    Kind = "vehicle"
	KindAssignment Kind = "assignment"
)

var ErrUnknownKind = errors.New("unknown invalidation kind")

// Feed is a source read that may have been served degraded: from the last
// good snapshot, or empty, after the source failed.
type Feed[T any] struct {
	Items    []T   `json:"items"`
	Degraded bool  `json:"degraded"`
	Err      error `json:"-"`
}

type JobSource interface {
	ListAvailable(ctx context.Context, q cargo.Query) ([]cargo.Job, error)
	PerformanceSummary(ctx context.Context, since time.Time) (cargo.Performance, error)
}

type VehicleSource interface {
	ListVehicles(ctx context.Context) ([]fleet.Vehicle, error)
	Summary(ctx context.Context) (fleet.StatusSummary, error)
}

type PositionSource interface {
	Positions(ctx context.Context, ids []types.ID) ([]fleet.Position, error)
}

// RouteOracle estimates road distance and duration between two points.
type RouteOracle interface {
	Estimate(ctx context.Context, from, to types.Point) (geo.Route, error)
}

// Engine is the matching engine as seen by the maintenance loop.
type Engine interface {
	WarmMatches(ctx context.Context) error
	EngineStats() EngineStats
}

type EngineStats struct {
	Runs         uint64    `json:"runs"`
	PairsScored  uint64    `json:"pairs_scored"`
	PairsSkipped uint64    `json:"pairs_skipped"`
	LastRunMs    float64   `json:"last_run_ms"`
	AvgRunMs     float64   `json:"avg_run_ms"`
	LastRunAt    time.Time `json:"last_run_at"`
}

type Metrics struct {
	Jobs        cargo.Performance `json:"jobs"`
	Engine      EngineStats       `json:"engine"`
	Cache       cache.Stats       `json:"cache"`
	GeneratedAt time.Time         `json:"generated_at"`
}

type Config struct {
	SourceTimeout   time.Duration
	ComputeTimeout  time.Duration
	SweepInterval   time.Duration
	MonitorInterval time.Duration
	WarmInterval    time.Duration
	// Monitor alerts below MinHitRate once MinSamples reads were counted, or above MaxBytes.
	MinHitRate      float64
	MinSamples      uint64
	MaxBytes        int64
	// AverageSpeedKmh is used only when no RateProvider supplies a speed.
	AverageSpeedKmh float64
	MetricsWindow   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SourceTimeout:   2 * time.Second,
		ComputeTimeout:  30 * time.Second,
		SweepInterval:   time.Minute,
		MonitorInterval: 5 * time.Minute,
		WarmInterval:    time.Minute,
		MinHitRate:      0.5,
		MinSamples:      100,
		MaxBytes:        64 << 20,
		AverageSpeedKmh: 80,
		MetricsWindow:   30 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SourceTimeout <= 0 {
		c.SourceTimeout = d.SourceTimeout
	}
	if c.ComputeTimeout <= 0 {
		c.ComputeTimeout = d.ComputeTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	if c.WarmInterval <= 0 {
		c.WarmInterval = d.WarmInterval
	}
	if c.MinHitRate <= 0 {
		c.MinHitRate = d.MinHitRate
	}
	if c.MinSamples == 0 {
		c.MinSamples = d.MinSamples
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = d.MaxBytes
	}
	if c.AverageSpeedKmh <= 0 {
		c.AverageSpeedKmh = d.AverageSpeedKmh
	}
	if c.MetricsWindow <= 0 {
		c.MetricsWindow = d.MetricsWindow
	}
	return c
}
