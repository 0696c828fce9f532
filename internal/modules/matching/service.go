// README: Matching engine: pulls candidate pools through the feeds cache, prunes, scores in parallel, and ranks.
package matching

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"fleetmatch/internal/config"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

type Feeds interface {
	AvailableJobs(ctx context.Context, q cargo.Query) feeds.Feed[cargo.Job]
	Vehicles(ctx context.Context) feeds.Feed[fleet.Vehicle]
	Route(ctx context.Context, from, to types.Place) geo.Route
	CachedMatches(ctx context.Context, key string, compute func(context.Context) (any, bool, error)) (any, error)
	RefreshMatches(ctx context.Context, key string, compute func(context.Context) (any, bool, error)) (any, error)
	CachedScore(jobID, vehicleID types.ID, compute func() scoring.MatchCandidate) scoring.MatchCandidate
}

type Scorer interface {
	ScoreRoute(job cargo.Job, v fleet.Vehicle, route geo.Route) scoring.MatchCandidate
	PreScore(job cargo.Job) float64
}

type Service struct {
	feeds    Feeds
	scorer   Scorer
	cfg      config.MatchingConfig
	log      logrus.FieldLogger
	validate *validator.Validate
	now      func() time.Time

	statsMu sync.Mutex
	stats   feeds.EngineStats
	total   time.Duration
}

func NewService(f Feeds, scorer Scorer, cfg config.MatchingConfig, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Service{
		feeds:    f,
		scorer:   scorer,
		cfg:      cfg,
		log:      log.WithField("component", "matching"),
		validate: v,
		now:      time.Now,
	}
}

// pair is one (job, vehicle) survivor of the hard filters.
type pair struct {
	job     cargo.Job
	vehicle fleet.Vehicle
	route   geo.Route
}

// FindBestMatches returns up to limit candidates, best first. Results are
// cached per canonical filter set; degraded results are never cached.
func (s *Service) FindBestMatches(ctx context.Context, limit int, f Filters) (*Result, error) {
	if err := s.validateRequest(limit, f); err != nil {
		return nil, err
	}
	key := f.CacheKey(limit, s.excludeHighRisk(f))
	v, err := s.feeds.CachedMatches(ctx, key, s.computeFunc(limit, f))
	if err != nil {
		return nil, err
	}
	return asResult(v)
}

// FindMatchesForVehicle ranks open jobs for one vehicle.
func (s *Service) FindMatchesForVehicle(ctx context.Context, vehicleID types.ID, limit int) (*Result, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("%w: vehicle id is required", ErrInvalidInput)
	}
	return s.FindBestMatches(ctx, limit, Filters{VehicleID: vehicleID})
}

// FindUrgentMatches runs the urgent preset: high urgency only, wider radius,
// high-risk pairs allowed.
func (s *Service) FindUrgentMatches(ctx context.Context) (*Result, error) {
	return s.FindBestMatches(ctx, s.cfg.UrgentLimit, s.UrgentFilters())
}

func (s *Service) UrgentFilters() Filters {
	allowRisk := false
	return Filters{
		Urgency:         cargo.UrgencyHigh,
		MaxDistanceKm:   s.cfg.UrgentRadiusKm,
		ExcludeHighRisk: &allowRisk,
	}
}

// WarmMatches recomputes the default and urgent presets into the cache.
func (s *Service) WarmMatches(ctx context.Context) error {
	presets := []struct {
		limit int
		f     Filters
	}{
		{s.cfg.DefaultLimit, Filters{}},
		{s.cfg.UrgentLimit, s.UrgentFilters()},
	}
	var errs []error
	for _, p := range presets {
		key := p.f.CacheKey(p.limit, s.excludeHighRisk(p.f))
		if _, err := s.feeds.RefreshMatches(ctx, key, s.computeFunc(p.limit, p.f)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) EngineStats() feeds.EngineStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Service) computeFunc(limit int, f Filters) func(context.Context) (any, bool, error) {
	return func(ctx context.Context) (any, bool, error) {
		res, err := s.compute(ctx, limit, f)
		if err != nil {
			return nil, false, err
		}
		return res, !res.Degraded, nil
	}
}

func asResult(v any) (*Result, error) {
	res, ok := v.(*Result)
	if !ok {
		return nil, fmt.Errorf("matching: unexpected cached value %T", v)
	}
	return res.clone(), nil
}

func (s *Service) validateRequest(limit int, f Filters) error {
	if limit < 1 || limit > s.cfg.MaxLimit {
		return fmt.Errorf("%w: limit must be between 1 and %d, got %d", ErrInvalidInput, s.cfg.MaxLimit, limit)
	}
	if err := s.validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *Service) excludeHighRisk(f Filters) bool {
	if f.ExcludeHighRisk != nil {
		return *f.ExcludeHighRisk
	}
	return s.cfg.ExcludeHighRisk
}

func (s *Service) compute(ctx context.Context, limit int, f Filters) (*Result, error) {
	start := time.Now()
	res := &Result{ComputedAt: s.now()}

	// Job and vehicle pools are read concurrently; a slightly skewed snapshot is fine.
	var (
		jobs     feeds.Feed[cargo.Job]
		vehicles feeds.Feed[fleet.Vehicle]
	)
	var g errgroup.Group
	g.Go(func() error {
		jobs = s.feeds.AvailableJobs(ctx, cargo.Query{Urgency: f.Urgency})
		return nil
	})
	g.Go(func() error {
		vehicles = s.feeds.Vehicles(ctx)
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if jobs.Degraded {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "job feed degraded")
	}
	if vehicles.Degraded {
		res.Degraded = true
		res.Warnings = append(res.Warnings, "vehicle feed degraded")
	}

	candidates := s.eligibleVehicles(vehicles.Items, f)
	if f.VehicleID != "" && len(candidates) == 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("vehicle %s not found or not available", f.VehicleID))
	}

	pairs, err := s.buildPairs(ctx, jobs.Items, candidates, f, res)
	if err != nil {
		return nil, err
	}
	scored, err := s.scorePairs(ctx, pairs, res)
	if err != nil {
		return nil, err
	}
	res.Matches = s.rank(scored, f, limit)
	s.record(time.Since(start), res)

	s.log.WithFields(logrus.Fields{
		"jobs":      len(jobs.Items),
		"vehicles":  len(candidates),
		"evaluated": res.Evaluated,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
		"returned":  len(res.Matches),
		"degraded":  res.Degraded,
	}).Debug("matching run")
	return res, nil
}

func (s *Service) eligibleVehicles(all []fleet.Vehicle, f Filters) []fleet.Vehicle {
	out := make([]fleet.Vehicle, 0, len(all))
	for _, v := range all {
		if f.VehicleID != "" && v.ID != f.VehicleID {
			continue
		}
		if !v.Eligible() || !f.allowsType(v.Type) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// buildPairs applies the pre-score skip and the hard filters (capacity, max
// pickup distance), then resolves one route per surviving job in parallel.
func (s *Service) buildPairs(ctx context.Context, jobs []cargo.Job, vehicles []fleet.Vehicle, f Filters, res *Result) ([]pair, error) {
	maxKm := s.cfg.MaxDistanceKm
	if f.MaxDistanceKm > 0 {
		maxKm = f.MaxDistanceKm
	}

	type viable struct {
		job      cargo.Job
		vehicles []fleet.Vehicle
		route    geo.Route
	}
	var survivors []*viable
	for _, job := range jobs {
		if job.Status != cargo.StatusNew || (f.Urgency != "" && job.Urgency != f.Urgency) {
			continue
		}
		if job.Urgency != cargo.UrgencyHigh && s.scorer.PreScore(job) < s.cfg.PreScoreThreshold {
			res.Skipped++
			continue
		}
		cand := &viable{job: job}
		for _, v := range vehicles {
			if v.CapacityKg < job.WeightKg {
				res.Skipped++
				continue
			}
			if km, _ := scoring.PickupDistanceKm(job, v); km > maxKm {
				res.Skipped++
				continue
			}
			cand.vehicles = append(cand.vehicles, v)
		}
		if len(cand.vehicles) > 0 {
			survivors = append(survivors, cand)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for _, c := range survivors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.route = s.feeds.Route(gctx, c.job.Origin, c.job.Destination)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var pairs []pair
	for _, c := range survivors {
		for _, v := range c.vehicles {
			pairs = append(pairs, pair{job: c.job, vehicle: v, route: c.route})
		}
	}
	return pairs, nil
}

// scorePairs fans the pairs out over a bounded worker pool. A pair that
// fails validation or panics is logged and dropped.
func (s *Service) scorePairs(ctx context.Context, pairs []pair, res *Result) ([]*scoring.MatchCandidate, error) {
	out := make([]*scoring.MatchCandidate, len(pairs))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers())
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := s.scorePair(p)
			if err != nil {
				failed.Add(1)
				s.log.WithError(err).WithFields(logrus.Fields{
					"job_id":     p.job.ID,
					"vehicle_id": p.vehicle.ID,
				}).Warn("skipping pair")
				return nil
			}
			out[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Failed = int(failed.Load())
	res.Evaluated = len(pairs) - res.Failed
	return out, nil
}

func (s *Service) scorePair(p pair) (c scoring.MatchCandidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scoring panic: %v", r)
		}
	}()
	if err := scoring.Validate(p.job, p.vehicle); err != nil {
		return c, err
	}
	return s.feeds.CachedScore(p.job.ID, p.vehicle.ID, func() scoring.MatchCandidate {
		return s.scorer.ScoreRoute(p.job, p.vehicle, p.route)
	}), nil
}

// rank applies the soft filters and the score threshold, sorts, and truncates.
func (s *Service) rank(scored []*scoring.MatchCandidate, f Filters, limit int) []scoring.MatchCandidate {
	minScore := s.cfg.MinScore
	if f.MinScore > 0 {
		minScore = f.MinScore
	}
	exclude := s.excludeHighRisk(f)

	kept := make([]scoring.MatchCandidate, 0, len(scored))
	for _, c := range scored {
		switch {
		case c == nil:
		case f.MinProfit > 0 && c.Profit < f.MinProfit:
		case exclude && c.RiskTier == scoring.RiskHigh:
		case c.Total < minScore:
		default:
			kept = append(kept, *c)
		}
	}
	SortCandidates(kept)
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// SortCandidates orders by total score descending, then older job first, then
// job id, then vehicle id.
func SortCandidates(cs []scoring.MatchCandidate) {
	slices.SortStableFunc(cs, func(a, b scoring.MatchCandidate) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		if c := a.JobCreatedAt.Compare(b.JobCreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.JobID, b.JobID); c != 0 {
			return c
		}
		return cmp.Compare(a.VehicleID, b.VehicleID)
	})
}

func (s *Service) workers() int {
	return max(1, s.cfg.Workers)
}

func (s *Service) record(d time.Duration, res *Result) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	s.stats.Runs++
	s.stats.PairsScored += uint64(res.Evaluated)
	s.stats.PairsSkipped += uint64(res.Skipped)
	s.total += d
	s.stats.LastRunMs = float64(d.Microseconds()) / 1000
	s.stats.AvgRunMs = float64(s.total.Microseconds()) / 1000 / float64(s.stats.Runs)
	s.stats.LastRunAt = s.now()
}
