// README: Cargo service posts jobs and applies status transitions with optimistic versioning.
package cargo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"fleetmatch/internal/types"
)

var (
	ErrInvalidState = errors.New("invalid job state transition")
	ErrNotFound     = errors.New("job not found")
	ErrConflict     = errors.New("job state conflict")
	ErrBadRequest   = errors.New("bad request")
)

type JobStore interface {
	Create(ctx context.Context, j *Job) error
	Get(ctx context.Context, id types.ID) (*Job, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, vehicleID *types.ID) (bool, error)
}

// Geocoder resolves a place that arrived without coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, p types.Place) (types.Point, error)
}

type Service struct {
	store    JobStore
	geocoder Geocoder
	now      func() time.Time
}

func NewService(store JobStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithGeocoder enables coordinate lookup for posted jobs.
func (s *Service) WithGeocoder(g Geocoder) *Service {
	s.geocoder = g
	return s
}

type PostCommand struct {
	Origin       types.Place `json:"origin"`
	Destination  types.Place `json:"destination"`
	WeightKg     float64     `json:"weight_kg"`
	Category     Category    `json:"category"`
	Price        types.Money `json:"price"`
	PriceType    PriceType   `json:"price_type"`
	LoadingAt    time.Time   `json:"loading_at"`
	DeliveryAt   time.Time   `json:"delivery_at"`
	Deadline     *time.Time  `json:"deadline,omitempty"`
	Urgency      Urgency     `json:"urgency"`
	Requirements []string    `json:"requirements,omitempty"`
}

func (c PostCommand) validate() error {
	if strings.TrimSpace(c.Origin.City) == "" || strings.TrimSpace(c.Destination.City) == "" {
		return ErrBadRequest
	}
	if c.WeightKg <= 0 || c.Price.Amount < 0 {
		return ErrBadRequest
	}
	switch c.PriceType {
	case "", PriceFlat, PricePerKm:
	default:
		return ErrBadRequest
	}
	switch c.Urgency {
	case "", UrgencyLow, UrgencyMedium, UrgencyHigh:
	default:
		return ErrBadRequest
	}
	if !c.DeliveryAt.IsZero() && c.DeliveryAt.Before(c.LoadingAt) {
		return ErrBadRequest
	}
	return nil
}

// Post creates a new open job.
func (s *Service) Post(ctx context.Context, cmd PostCommand) (*Job, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	j := &Job{
		ID:           types.ID(uuid.NewString()),
		Origin:       cmd.Origin,
		Destination:  cmd.Destination,
		WeightKg:     cmd.WeightKg,
		Category:     cmd.Category,
		Price:        cmd.Price,
		PriceType:    cmd.PriceType,
		LoadingAt:    cmd.LoadingAt,
		DeliveryAt:   cmd.DeliveryAt,
		Deadline:     cmd.Deadline,
		Urgency:      cmd.Urgency,
		Requirements: cmd.Requirements,
		Status:       StatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if j.Category == "" {
		j.Category = CategoryGeneral
	}
	if j.PriceType == "" {
		j.PriceType = PriceFlat
	}
	if j.Urgency == "" {
		j.Urgency = UrgencyMedium
	}
	if j.Price.Currency == "" {
		j.Price.Currency = "EUR"
	}
	if j.LoadingAt.IsZero() {
		j.LoadingAt = now
	}
	if j.DeliveryAt.IsZero() {
		j.DeliveryAt = j.LoadingAt.Add(48 * time.Hour)
	}
	s.locate(ctx, &j.Origin)
	s.locate(ctx, &j.Destination)
	if err := s.store.Create(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// locate fills missing coordinates. A lookup failure keeps the city-level place.
func (s *Service) locate(ctx context.Context, p *types.Place) {
	if s.geocoder == nil || p.HasCoords() {
		return
	}
	pt, err := s.geocoder.Geocode(ctx, *p)
	if err != nil || !pt.Valid() {
		return
	}
	p.Coords = &pt
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Job, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.Get(ctx, id)
}

// Take moves an open job to taken and records the vehicle carrying it.
func (s *Service) Take(ctx context.Context, id, vehicleID types.ID) (*Job, error) {
	if vehicleID == "" {
		return nil, ErrBadRequest
	}
	return s.transition(ctx, id, StatusTaken, &vehicleID)
}

func (s *Service) Complete(ctx context.Context, id types.ID) (*Job, error) {
	return s.transition(ctx, id, StatusCompleted, nil)
}

func (s *Service) Cancel(ctx context.Context, id types.ID) (*Job, error) {
	return s.transition(ctx, id, StatusCancelled, nil)
}

func (s *Service) transition(ctx context.Context, id types.ID, to Status, vehicleID *types.ID) (*Job, error) {
	j, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(j.Status, to) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, j.ID, j.Status, to, j.StatusVersion, vehicleID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	j.Status = to
	j.StatusVersion++
	if vehicleID != nil {
		j.VehicleID = vehicleID
	}
	j.UpdatedAt = s.now()
	return j, nil
}
