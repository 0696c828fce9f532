// README: Feeds service: read-through caching, degraded fallbacks, invalidation, warm-up, and monitoring.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/geo"
	"fleetmatch/internal/modules/pricing"
	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

// maxSnapshots caps how many last-good feed snapshots are retained.
const maxSnapshots = 512

const performanceKey = cache.PrefixMetrics + "performance"

// invalidatable lists the namespaces an Invalidate can clear. Each carries a
// generation counter so a read that started before the event cannot store
// its result after it.
var invalidatable = []string{
	cache.PrefixJobs,
	cache.PrefixVehicles,
	cache.PrefixPositions,
	cache.KeyFleetStatus,
	cache.PrefixMatching,
}

// RateProvider supplies the live average speed for straight-line route estimates.
type RateProvider interface {
	Current() pricing.Rates
}

type Deps struct {
	Cache     *cache.Store
	Jobs      JobSource
	Vehicles  VehicleSource
	Positions PositionSource
	Routes    RouteOracle // nil: straight-line estimates only
	Rates     RateProvider
	Policy    cache.Policy
	Config    Config
	Logger    logrus.FieldLogger
}

type Service struct {
	cache     *cache.Store
	jobs      JobSource
	vehicles  VehicleSource
	positions PositionSource
	routes    RouteOracle
	rates     RateProvider
	policy    cache.Policy
	cfg       Config
	log       logrus.FieldLogger
	now       func() time.Time

	group singleflight.Group

	genMu sync.Mutex
	gens  map[string]uint64

	mu       sync.RWMutex
	lastGood map[string]any
	engine   Engine
}

func NewService(d Deps) *Service {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	store := d.Cache
	if store == nil {
		store = cache.NewStore(cache.Options{Logger: log})
	}
	return &Service{
		cache:     store,
		jobs:      d.Jobs,
		vehicles:  d.Vehicles,
		positions: d.Positions,
		routes:    d.Routes,
		rates:     d.Rates,
		policy:    d.Policy.WithDefaults(),
		cfg:       d.Config.withDefaults(),
		log:       log.WithField("component", "feeds"),
		now:       time.Now,
		lastGood:  make(map[string]any),
		gens:      make(map[string]uint64),
	}
}

// Attach registers the matching engine for warm-up and performance metrics.
func (s *Service) Attach(e Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

func (s *Service) attached() Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

func namespaceOf(key string) string {
	for _, p := range invalidatable {
		if strings.HasPrefix(key, p) {
			return p
		}
	}
	return ""
}

// generation is the invalidation counter of the namespace owning key.
func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[namespaceOf(key)]
}

// storeIfCurrent caches v unless key's namespace was invalidated after gen was read.
func (s *Service) storeIfCurrent(key string, gen uint64, v any, ttl time.Duration, snapshot bool) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[namespaceOf(key)] != gen {
		s.log.WithField("key", key).Debug("discarding result read before invalidation")
		return false
	}
	s.cache.Set(key, v, ttl)
	if snapshot {
		s.remember(key, v)
	}
	return true
}

// flightKey keeps reads started after an invalidation off an older in-flight call.
func flightKey(key string, gen uint64) string {
	return key + "#" + strconv.FormatUint(gen, 10)
}

// fetchShared joins or starts the deduplicated call for key and waits for it
// or for the caller's own ctx, whichever ends first.
func (s *Service) fetchShared(ctx context.Context, key string, fn func(gen uint64) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gen := s.generation(key)
	ch := s.group.DoChan(flightKey(key, gen), func() (any, error) {
		return fn(gen)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load is the read-through path shared by every feed: cache hit, else one
// deduplicated source call under SourceTimeout. The shared call does not
// inherit the caller's cancellation; each caller stops waiting on its own
// ctx. On failure it serves the last good snapshot, or the zero value, and
// reports degraded.
func load[T any](ctx context.Context, s *Service, key, feed string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	if v, ok := cache.GetAs[T](s.cache, key); ok {
		return v, false, nil
	}

	res, err := s.fetchShared(ctx, key, func(gen uint64) (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SourceTimeout)
		defer cancel()
		v, err := fetch(cctx)
		if err != nil {
			return nil, err
		}
		s.storeIfCurrent(key, gen, v, ttl, true)
		return v, nil
	})
	if err == nil {
		if v, ok := res.(T); ok {
			return v, false, nil
		}
	}
	if err == nil {
		err = fmt.Errorf("feed %s: unexpected value type %T", feed, res)
	}

	s.log.WithError(err).WithFields(logrus.Fields{"feed": feed, "key": key}).Warn("feed source failed, serving degraded")
	if v, ok := snapshotAs[T](s, key); ok {
		return v, true, err
	}
	var zero T
	return zero, true, err
}

func (s *Service) remember(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lastGood[key]; !ok && len(s.lastGood) >= maxSnapshots {
		return
	}
	s.lastGood[key] = v
}

func snapshotAs[T any](s *Service, key string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.lastGood[key].(T)
	return v, ok
}

func jobsKey(q cargo.Query) string {
	fields := map[string]string{"urgency": string(q.Urgency)}
	if q.Limit > 0 {
		fields["limit"] = strconv.Itoa(q.Limit)
	}
	return cache.Key(cache.PrefixJobs, fields)
}

// AvailableJobs returns open jobs, cached for Policy.Jobs.
func (s *Service) AvailableJobs(ctx context.Context, q cargo.Query) Feed[cargo.Job] {
	items, degraded, err := load(ctx, s, jobsKey(q), "jobs", s.policy.Jobs, func(ctx context.Context) ([]cargo.Job, error) {
		return s.jobs.ListAvailable(ctx, q)
	})
	return Feed[cargo.Job]{Items: items, Degraded: degraded, Err: err}
}

// VehiclePositions returns telemetry fixes for ids (all tracked vehicles when empty), cached for Policy.Positions.
func (s *Service) VehiclePositions(ctx context.Context, ids []types.ID) Feed[fleet.Position] {
	key := cache.Key(cache.PrefixPositions, map[string]string{"ids": cache.SortedList(ids)})
	items, degraded, err := load(ctx, s, key, "positions", s.policy.Positions, func(ctx context.Context) ([]fleet.Position, error) {
		return s.positions.Positions(ctx, ids)
	})
	return Feed[fleet.Position]{Items: items, Degraded: degraded, Err: err}
}

// Vehicles returns the registry with the latest positions applied. The
// registry is cached for Policy.FleetStatus, positions for Policy.Positions.
func (s *Service) Vehicles(ctx context.Context) Feed[fleet.Vehicle] {
	registry, degraded, err := load(ctx, s, cache.Key(cache.PrefixVehicles, nil), "vehicles", s.policy.FleetStatus, func(ctx context.Context) ([]fleet.Vehicle, error) {
		return s.vehicles.ListVehicles(ctx)
	})
	pos := s.VehiclePositions(ctx, nil)
	return Feed[fleet.Vehicle]{
		Items:    fleet.WithPositions(registry, pos.Items),
		Degraded: degraded || pos.Degraded,
		Err:      errors.Join(err, pos.Err),
	}
}

// FleetStatus returns the aggregate fleet summary, cached for Policy.FleetStatus.
func (s *Service) FleetStatus(ctx context.Context) (fleet.StatusSummary, bool) {
	sum, degraded, _ := load(ctx, s, cache.KeyFleetStatus, "fleet_status", s.policy.FleetStatus, s.vehicles.Summary)
	return sum, degraded
}

// Route consults the oracle through the cache when both places have
// coordinates; anything else, including an oracle failure, falls back to a
// straight-line estimate.
func (s *Service) Route(ctx context.Context, from, to types.Place) geo.Route {
	if s.routes == nil || !from.HasCoords() || !to.HasCoords() {
		return geo.EstimateRoute(from, to, s.averageSpeed())
	}
	a, b := *from.Coords, *to.Coords
	route, degraded, _ := load(ctx, s, cache.RouteKey(a, b), "routes", s.policy.Routes, func(ctx context.Context) (geo.Route, error) {
		return s.routes.Estimate(ctx, a, b)
	})
	if degraded || !(route.DistanceKm > 0) {
		return geo.EstimateRoute(from, to, s.averageSpeed())
	}
	return route
}

// averageSpeed prefers the live pricing rates over the configured fallback.
func (s *Service) averageSpeed() float64 {
	if s.rates != nil {
		if v := s.rates.Current().AverageSpeedKmh; v > 0 {
			return v
		}
	}
	return s.cfg.AverageSpeedKmh
}

// PerformanceMetrics returns analytics-grade numbers, cached for Policy.Metrics.
func (s *Service) PerformanceMetrics(ctx context.Context) (Metrics, bool) {
	m, degraded, _ := load(ctx, s, performanceKey, "metrics", s.policy.Metrics, func(ctx context.Context) (Metrics, error) {
		now := s.now()
		perf, err := s.jobs.PerformanceSummary(ctx, now.Add(-s.cfg.MetricsWindow))
		if err != nil {
			return Metrics{}, err
		}
		m := Metrics{Jobs: perf, Cache: s.cache.Stats(), GeneratedAt: now}
		if e := s.attached(); e != nil {
			m.Engine = e.EngineStats()
		}
		return m, nil
	})
	return m, degraded
}

// CachedMatches returns the ranked result stored under key, computing it once
// on a miss. Only results compute marks cacheable are stored. The shared
// compute runs under ComputeTimeout, detached from any single caller.
func (s *Service) CachedMatches(ctx context.Context, key string, compute func(context.Context) (any, bool, error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	return s.fetchShared(ctx, key, func(gen uint64) (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ComputeTimeout)
		defer cancel()
		return s.storeMatches(cctx, key, gen, compute)
	})
}

// RefreshMatches recomputes key unconditionally.
func (s *Service) RefreshMatches(ctx context.Context, key string, compute func(context.Context) (any, bool, error)) (any, error) {
	return s.storeMatches(ctx, key, s.generation(key), compute)
}

func (s *Service) storeMatches(ctx context.Context, key string, gen uint64, compute func(context.Context) (any, bool, error)) (any, error) {
	v, cacheable, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.storeIfCurrent(key, gen, v, s.policy.Matches, false)
	}
	return v, nil
}

// CachedScore memoises one pairing's score for Policy.Matches.
func (s *Service) CachedScore(jobID, vehicleID types.ID, compute func() scoring.MatchCandidate) scoring.MatchCandidate {
	key := cache.ScoreKey(jobID, vehicleID)
	if c, ok := cache.GetAs[scoring.MatchCandidate](s.cache, key); ok {
		return c
	}
	gen := s.generation(key)
	c := compute()
	s.storeIfCurrent(key, gen, c, s.policy.Matches, false)
	return c
}

// Invalidate drops the entries a domain event makes stale, plus every derived
// matching entry. Routes survive every kind.
func (s *Service) Invalidate(ctx context.Context, kind Kind) error {
	var prefixes []string
	switch kind {
	case KindJob:
		prefixes = []string{cache.PrefixJobs}
	case KindVehicle:
		prefixes = []string{cache.PrefixVehicles, cache.PrefixPositions, cache.KeyFleetStatus}
	case KindAssignment:
		prefixes = []string{cache.PrefixJobs, cache.PrefixVehicles, cache.KeyFleetStatus}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	prefixes = append(prefixes, cache.PrefixMatching)

	removed := 0
	s.genMu.Lock()
	for _, p := range prefixes {
		s.gens[p]++
		removed += s.cache.DeleteByPrefix(p)
	}
	s.genMu.Unlock()
	s.log.WithFields(logrus.Fields{"kind": kind, "removed": removed}).Info("cache invalidated")
	return nil
}

// Preload fills every feed in parallel. It returns the joined source errors;
// the service stays usable either way.
func (s *Service) Preload(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(feed string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", feed, err))
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		record("jobs", s.AvailableJobs(ctx, cargo.Query{}).Err)
		return nil
	})
	g.Go(func() error {
		record("vehicles", s.Vehicles(ctx).Err)
		return nil
	})
	g.Go(func() error {
		if _, degraded := s.FleetStatus(ctx); degraded {
			record("fleet_status", errors.New("source unavailable"))
		}
		return nil
	})
	g.Go(func() error {
		if _, degraded := s.PerformanceMetrics(ctx); degraded {
			record("metrics", errors.New("source unavailable"))
		}
		return nil
	})
	_ = g.Wait()

	err := errors.Join(errs...)
	entry := s.log.WithField("entries", s.cache.Stats().Entries)
	if err != nil {
		entry.WithError(err).Warn("cache preload incomplete")
	} else {
		entry.Info("cache preloaded")
	}
	return err
}

// Warm recomputes the commonly requested match presets.
func (s *Service) Warm(ctx context.Context) error {
	e := s.attached()
	if e == nil {
		return nil
	}
	if err := e.WarmMatches(ctx); err != nil {
		return fmt.Errorf("warm matches: %w", err)
	}
	return nil
}

// CheckHealth returns the operational alerts for the current cache state.
func (s *Service) CheckHealth() []string {
	st := s.cache.Stats()
	var alerts []string
	if st.Hits+st.Misses >= s.cfg.MinSamples && st.HitRate < s.cfg.MinHitRate {
		alerts = append(alerts, fmt.Sprintf("cache hit rate %.2f below %.2f", st.HitRate, s.cfg.MinHitRate))
	}
	if st.ApproxBytes > s.cfg.MaxBytes {
		alerts = append(alerts, fmt.Sprintf("cache size %d bytes above %d", st.ApproxBytes, s.cfg.MaxBytes))
	}
	return alerts
}

func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// RunMaintenance runs the sweeper, the health monitor, and periodic warm-up until ctx is done.
func (s *Service) RunMaintenance(ctx context.Context) {
	go s.cache.RunSweeper(ctx, s.cfg.SweepInterval)

	monitor := time.NewTicker(s.cfg.MonitorInterval)
	defer monitor.Stop()
	warm := time.NewTicker(s.cfg.WarmInterval)
	defer warm.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-monitor.C:
			st := s.cache.Stats()
			entry := s.log.WithFields(logrus.Fields{
				"entries":      st.Entries,
				"expired":      st.Expired,
				"approx_bytes": st.ApproxBytes,
				"hit_rate":     st.HitRate,
			})
			alerts := s.CheckHealth()
			if len(alerts) == 0 {
				entry.Info("cache healthy")
				continue
			}
			for _, a := range alerts {
				entry.Warn(a)
			}
		case <-warm.C:
			if err := s.Warm(ctx); err != nil {
				s.log.WithError(err).Warn("cache warm failed")
			}
		}
	}
}
