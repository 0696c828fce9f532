// README: Fleet service joins the vehicle registry with live telemetry positions.
package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleetmatch/internal/types"
)

var (
	ErrNotFound   = errors.New("vehicle not found")
	ErrBadRequest = errors.New("bad request")
)

type Registry interface {
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	Get(ctx context.Context, id types.ID) (*Vehicle, error)
	SetStatus(ctx context.Context, id types.ID, status Status) error
	Summary(ctx context.Context) (StatusSummary, error)
}

type Positions interface {
	Update(ctx context.Context, id types.ID, p types.Point, at time.Time) error
	Positions(ctx context.Context, ids []types.ID) ([]Position, error)
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

// History persists a sampled trail of fixes. Optional.
type History interface {
	AppendSnapshot(ctx context.Context, snap Snapshot) error
	Track(ctx context.Context, id types.ID, since time.Time, limit int) ([]Snapshot, error)
}

type Service struct {
	registry  Registry
	positions Positions
	log       logrus.FieldLogger
	now       func() time.Time

	history       History
	snapshotEvery time.Duration
	snapMu        sync.Mutex
	lastSnapshot  map[types.ID]time.Time
}

func NewService(registry Registry, positions Positions, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{registry: registry, positions: positions, log: log, now: time.Now}
}

// WithHistory persists at most one snapshot per vehicle per interval.
func (s *Service) WithHistory(h History, every time.Duration) *Service {
	s.history = h
	s.snapshotEvery = every
	s.lastSnapshot = make(map[types.ID]time.Time)
	return s
}

// Get returns a vehicle with its last known position. A telemetry failure
// leaves Position nil rather than failing the lookup.
func (s *Service) Get(ctx context.Context, id types.ID) (*Vehicle, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	v, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	pos, err := s.positions.Positions(ctx, []types.ID{id})
	if err != nil {
		s.log.WithError(err).WithField("vehicle_id", id).Warn("position lookup failed")
		return v, nil
	}
	merged := WithPositions([]Vehicle{*v}, pos)
	return &merged[0], nil
}

func (s *Service) SetStatus(ctx context.Context, id types.ID, status Status) error {
	if id == "" || !status.Valid() {
		return ErrBadRequest
	}
	return s.registry.SetStatus(ctx, id, status)
}

// UpdatePosition ingests one telemetry fix for a registered vehicle.
func (s *Service) UpdatePosition(ctx context.Context, id types.ID, p types.Point) error {
	if id == "" || !p.Valid() {
		return ErrBadRequest
	}
	if _, err := s.registry.Get(ctx, id); err != nil {
		return err
	}
	now := s.now()
	if err := s.positions.Update(ctx, id, p, now); err != nil {
		return err
	}
	if s.history != nil && s.snapshotDue(id, now) {
		if err := s.history.AppendSnapshot(ctx, Snapshot{VehicleID: id, Point: p, RecordedAt: now}); err != nil {
			s.log.WithError(err).WithField("vehicle_id", id).Warn("position snapshot failed")
		}
	}
	return nil
}

func (s *Service) snapshotDue(id types.ID, now time.Time) bool {
	s.snapMu.Lock()
	defer s.snapMu.Unlock()
	if last, ok := s.lastSnapshot[id]; ok && now.Sub(last) < s.snapshotEvery {
		return false
	}
	s.lastSnapshot[id] = now
	return true
}

// Track returns the persisted trail for a vehicle over the last window.
func (s *Service) Track(ctx context.Context, id types.ID, window time.Duration) ([]Snapshot, error) {
	if id == "" || window <= 0 {
		return nil, ErrBadRequest
	}
	if s.history == nil {
		return nil, nil
	}
	return s.history.Track(ctx, id, s.now().Add(-window), 1000)
}

// Nearby lists vehicles within radiusKm of p, closest first.
func (s *Service) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	if !p.Valid() || radiusKm <= 0 {
		return nil, ErrBadRequest
	}
	return s.positions.Nearby(ctx, p, radiusKm)
}
