// README: Dispatch service commits a (job, vehicle) pairing: re-score, status transitions, cache invalidation.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

var ErrNotViable = errors.New("pairing not viable")

type Jobs interface {
	Get(ctx context.Context, id types.ID) (*cargo.Job, error)
	Take(ctx context.Context, id, vehicleID types.ID) (*cargo.Job, error)
	Complete(ctx context.Context, id types.ID) (*cargo.Job, error)
}

type Vehicles interface {
	Get(ctx context.Context, id types.ID) (*fleet.Vehicle, error)
	SetStatus(ctx context.Context, id types.ID, status fleet.Status) error
}

type Scorer interface {
	ScoreRoute(job cargo.Job, v fleet.Vehicle, route geo.Route) scoring.MatchCandidate
}

// Cache is the slice of the feeds facade dispatch needs.
type Cache interface {
	Route(ctx context.Context, from, to types.Place) geo.Route
	Invalidate(ctx context.Context, kind feeds.Kind) error
}

type Service struct {
	jobs     Jobs
	vehicles Vehicles
	scorer   Scorer
	cache    Cache
	log      logrus.FieldLogger
}

func NewService(jobs Jobs, vehicles Vehicles, scorer Scorer, cache Cache, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{jobs: jobs, vehicles: vehicles, scorer: scorer, cache: cache, log: log.WithField("component", "dispatch")}
}

// Assign re-scores the pairing and commits it. The job's optimistic
// transition decides concurrent attempts; only the winner touches the vehicle.
func (s *Service) Assign(ctx context.Context, jobID, vehicleID types.ID) (scoring.MatchCandidate, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return scoring.MatchCandidate{}, err
	}
	v, err := s.vehicles.Get(ctx, vehicleID)
	if err != nil {
		return scoring.MatchCandidate{}, err
	}
	if job.Status != cargo.StatusNew {
		return scoring.MatchCandidate{}, cargo.ErrInvalidState
	}
	if err := viable(*job, *v); err != nil {
		return scoring.MatchCandidate{}, err
	}

	route := s.cache.Route(ctx, job.Origin, job.Destination)
	candidate := s.scorer.ScoreRoute(*job, *v, route)

	if _, err := s.jobs.Take(ctx, job.ID, v.ID); err != nil {
		return scoring.MatchCandidate{}, err
	}
	defer s.invalidate(ctx)
	if err := s.vehicles.SetStatus(ctx, v.ID, fleet.StatusAssigned); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"job_id": job.ID, "vehicle_id": v.ID}).Error("job taken but vehicle status not updated")
		return scoring.MatchCandidate{}, fmt.Errorf("mark vehicle assigned: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":     job.ID,
		"vehicle_id": v.ID,
		"total":      candidate.Total,
		"risk_tier":  candidate.RiskTier,
	}).Info("job assigned")
	return candidate, nil
}

// Complete closes a taken job and frees its vehicle.
func (s *Service) Complete(ctx context.Context, jobID, vehicleID types.ID) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.VehicleID != nil && *job.VehicleID != vehicleID {
		return fmt.Errorf("%w: job %s is carried by %s", ErrNotViable, job.ID, *job.VehicleID)
	}
	if _, err := s.jobs.Complete(ctx, job.ID); err != nil {
		return err
	}
	if err := s.vehicles.SetStatus(ctx, vehicleID, fleet.StatusIdle); err != nil {
		s.invalidate(ctx)
		return fmt.Errorf("release vehicle: %w", err)
	}
	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "vehicle_id": vehicleID}).Info("job completed")
	return nil
}

func viable(job cargo.Job, v fleet.Vehicle) error {
	if err := scoring.Validate(job, v); err != nil {
		return fmt.Errorf("%w: %v", ErrNotViable, err)
	}
	if !v.Eligible() {
		return fmt.Errorf("%w: vehicle %s is %s", ErrNotViable, v.ID, v.Status)
	}
	if v.CapacityKg < job.WeightKg {
		return fmt.Errorf("%w: job %s weighs %.0fkg, vehicle %s carries %.0fkg", ErrNotViable, job.ID, job.WeightKg, v.ID, v.CapacityKg)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, feeds.KindAssignment); err != nil {
		s.log.WithError(err).Warn("assignment invalidation failed")
	}
}
