// README: Handler tests: query binding, error mapping, invalidation hooks.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetmatch/internal/http/handlers"
	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/dispatch"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/matching"
	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

// --- Stubs ---

type stubEngine struct {
	limit     int
	filters   matching.Filters
	vehicleID types.ID
	err       error
}

func (s *stubEngine) FindBestMatches(ctx context.Context, limit int, f matching.Filters) (*matching.Result, error) {
	s.limit, s.filters = limit, f
	if s.err != nil {
		return nil, s.err
	}
	return &matching.Result{Matches: []scoring.MatchCandidate{{JobID: "j1", VehicleID: "v1", Total: 91}}}, nil
}

func (s *stubEngine) FindMatchesForVehicle(ctx context.Context, id types.ID, limit int) (*matching.Result, error) {
	s.vehicleID, s.limit = id, limit
	return &matching.Result{}, s.err
}

func (s *stubEngine) FindUrgentMatches(ctx context.Context) (*matching.Result, error) {
	return &matching.Result{Degraded: true}, s.err
}

type stubDispatcher struct {
	err error
}

func (s *stubDispatcher) Assign(ctx context.Context, jobID, vehicleID types.ID) (scoring.MatchCandidate, error) {
	return scoring.MatchCandidate{JobID: jobID, VehicleID: vehicleID, Total: 88}, s.err
}

func (s *stubDispatcher) Complete(ctx context.Context, jobID, vehicleID types.ID) error {
	return s.err
}

type stubJobs struct {
	err error
}

func (s *stubJobs) Post(ctx context.Context, cmd cargo.PostCommand) (*cargo.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cargo.Job{ID: "new-job", Origin: cmd.Origin, Status: cargo.StatusNew}, nil
}

func (s *stubJobs) Get(ctx context.Context, id types.ID) (*cargo.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cargo.Job{ID: id, Status: cargo.StatusNew}, nil
}

func (s *stubJobs) Cancel(ctx context.Context, id types.ID) (*cargo.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &cargo.Job{ID: id, Status: cargo.StatusCancelled}, nil
}

type stubFleet struct {
	position types.Point
	status   fleet.Status
	window   time.Duration
	err      error
}

func (s *stubFleet) Get(ctx context.Context, id types.ID) (*fleet.Vehicle, error) {
	return &fleet.Vehicle{ID: id}, s.err
}

func (s *stubFleet) SetStatus(ctx context.Context, id types.ID, status fleet.Status) error {
	s.status = status
	return s.err
}

func (s *stubFleet) UpdatePosition(ctx context.Context, id types.ID, p types.Point) error {
	s.position = p
	return s.err
}

func (s *stubFleet) Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	return []types.ID{"v1", "v2"}, s.err
}

func (s *stubFleet) Track(ctx context.Context, id types.ID, window time.Duration) ([]fleet.Snapshot, error) {
	s.window = window
	return nil, s.err
}

type stubCache struct {
	kinds []feeds.Kind
}

func (s *stubCache) Invalidate(ctx context.Context, kind feeds.Kind) error {
	switch kind {
	case feeds.KindJob, feeds.KindVehicle, feeds.KindAssignment:
		s.kinds = append(s.kinds, kind)
		return nil
	}
	return feeds.ErrUnknownKind
}

func (s *stubCache) CacheStats() cache.Stats {
	return cache.Stats{Entries: 3, Hits: 9, Misses: 1, HitRate: 0.9}
}

func (s *stubCache) PerformanceMetrics(ctx context.Context) (feeds.Metrics, bool) {
	return feeds.Metrics{}, false
}

func (s *stubCache) CheckHealth() []string {
	return []string{"hit rate 0.10 below 0.50"}
}

// --- Router ---

type testDeps struct {
	engine   *stubEngine
	dispatch *stubDispatcher
	jobs     *stubJobs
	fleet    *stubFleet
	cache    *stubCache
}

func buildTestRouter() (*gin.Engine, *testDeps) {
	gin.SetMode(gin.TestMode)
	d := &testDeps{
		engine:   &stubEngine{},
		dispatch: &stubDispatcher{},
		jobs:     &stubJobs{},
		fleet:    &stubFleet{},
		cache:    &stubCache{},
	}
	r := gin.New()
	mh := handlers.NewMatchHandler(d.engine, 10)
	r.GET("/api/matches", mh.Best)
	r.GET("/api/matches/urgent", mh.Urgent)
	r.GET("/api/vehicles/:id/matches", mh.ForVehicle)

	ah := handlers.NewAssignmentHandler(d.dispatch)
	r.POST("/api/assignments", ah.Assign)
	r.POST("/api/assignments/complete", ah.Complete)

	jh := handlers.NewJobHandler(d.jobs, d.cache)
	r.POST("/api/jobs", jh.Post)
	r.GET("/api/jobs/:id", jh.Get)
	r.POST("/api/jobs/:id/cancel", jh.Cancel)

	vh := handlers.NewVehicleHandler(d.fleet, d.cache, 0)
	r.GET("/api/vehicles/nearby", vh.Nearby)
	r.GET("/api/vehicles/:id/track", vh.Track)
	r.PUT("/api/vehicles/:id/position", vh.UpdatePosition)
	r.PUT("/api/vehicles/:id/status", vh.SetStatus)

	ch := handlers.NewCacheHandler(d.cache)
	r.POST("/api/cache/invalidate", ch.Invalidate)
	r.GET("/api/cache/stats", ch.Stats)
	r.GET("/health", ch.Health)
	return r, d
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestMatches_BindsFilters(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodGet, "/api/matches?limit=5&urgency=HIGH&min_profit=120.5&vehicle_types=truck,%20Van&exclude_high_risk=false", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 5, d.engine.limit)
	assert.Equal(t, cargo.UrgencyHigh, d.engine.filters.Urgency)
	assert.Equal(t, 120.5, d.engine.filters.MinProfit)
	assert.Equal(t, []fleet.Type{fleet.TypeTruck, fleet.TypeVan}, d.engine.filters.VehicleTypes)
	require.NotNil(t, d.engine.filters.ExcludeHighRisk)
	assert.False(t, *d.engine.filters.ExcludeHighRisk)

	var res matching.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 91.0, res.Matches[0].Total)
}

func TestMatches_DefaultLimitAndErrors(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodGet, "/api/matches", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, d.engine.limit)
	assert.Nil(t, d.engine.filters.ExcludeHighRisk)

	w = doRequest(r, http.MethodGet, "/api/matches?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	d.engine.err = matching.ErrInvalidInput
	w = doRequest(r, http.MethodGet, "/api/matches?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, d.engine.limit)
}

func TestMatches_RejectsUnknownFilters(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodGet, "/api/matches?urgncy=high&limit=5", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"unknown filter: urgncy"}`, w.Body.String())
	assert.Zero(t, d.engine.limit, "engine is not called")

	w = doRequest(r, http.MethodGet, "/api/vehicles/truck-7/matches?urgency=high", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/matches/urgent?zone=eu&limit=3", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"unknown filter: limit, zone"}`, w.Body.String())
}

func TestMatches_VehicleAndUrgent(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodGet, "/api/vehicles/truck-7/matches?limit=3", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.ID("truck-7"), d.engine.vehicleID)
	assert.Equal(t, 3, d.engine.limit)

	w = doRequest(r, http.MethodGet, "/api/vehicles/bad$id/matches", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/matches/urgent", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"degraded":true`)
}

func TestAssignments_ErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"ok", nil, http.StatusCreated},
		{"not viable", dispatch.ErrNotViable, http.StatusUnprocessableEntity},
		{"lost race", cargo.ErrConflict, http.StatusConflict},
		{"taken", cargo.ErrInvalidState, http.StatusConflict},
		{"missing job", cargo.ErrNotFound, http.StatusNotFound},
		{"missing vehicle", fleet.ErrNotFound, http.StatusNotFound},
		{"store down", context.DeadlineExceeded, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, d := buildTestRouter()
			d.dispatch.err = tc.err
			w := doRequest(r, http.MethodPost, "/api/assignments", map[string]string{"job_id": "j1", "vehicle_id": "v1"})
			assert.Equal(t, tc.code, w.Code)
		})
	}

	r, _ := buildTestRouter()
	w := doRequest(r, http.MethodPost, "/api/assignments", map[string]string{"job_id": "j1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/api/assignments/complete", map[string]string{"job_id": "j1", "vehicle_id": "v1"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJobs_PostInvalidatesJobs(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodPost, "/api/jobs", map[string]any{
		"origin":      map[string]string{"city": "Berlin", "country": "DE"},
		"destination": map[string]string{"city": "Warsaw", "country": "PL"},
		"weight_kg":   1200,
		"price":       map[string]any{"amount": 900, "currency": "EUR"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []feeds.Kind{feeds.KindJob}, d.cache.kinds)

	d.jobs.err = cargo.ErrBadRequest
	w = doRequest(r, http.MethodPost, "/api/jobs", map[string]any{"weight_kg": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, d.cache.kinds, 1)
}

func TestJobs_CancelAndGet(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodPost, "/api/jobs/j1/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"cancelled"`)
	assert.Equal(t, []feeds.Kind{feeds.KindJob}, d.cache.kinds)

	d.jobs.err = cargo.ErrNotFound
	w = doRequest(r, http.MethodGet, "/api/jobs/j404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVehicles_PositionUpdate(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodPut, "/api/vehicles/v1/position", map[string]float64{"lat": 0, "lng": 13.4})
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, types.Point{Lat: 0, Lng: 13.4}, d.fleet.position)
	assert.Equal(t, []feeds.Kind{feeds.KindVehicle}, d.cache.kinds)

	w = doRequest(r, http.MethodPut, "/api/vehicles/v1/position", map[string]float64{"lat": 95, "lng": 13.4})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPut, "/api/vehicles/v1/position", map[string]float64{"lng": 13.4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, d.cache.kinds, 1)
}

func TestVehicles_StatusAndNearby(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodPut, "/api/vehicles/v1/status", map[string]string{"status": "maintenance"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fleet.StatusMaintenance, d.fleet.status)

	w = doRequest(r, http.MethodPut, "/api/vehicles/v1/status", map[string]string{"status": "parked"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/vehicles/nearby?lat=52.5&lng=13.4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"vehicle_ids":["v1","v2"],"radius_km":50}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/vehicles/nearby?lng=13.4", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVehicles_Track(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodGet, "/api/vehicles/v1/track", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 24*time.Hour, d.fleet.window)
	assert.JSONEq(t, `{"vehicle_id":"v1","window":"24h0m0s","snapshots":[]}`, w.Body.String())

	w = doRequest(r, http.MethodGet, "/api/vehicles/v1/track?window=90m", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 90*time.Minute, d.fleet.window)

	w = doRequest(r, http.MethodGet, "/api/vehicles/v1/track?window=soon", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCache_InvalidateStatsHealth(t *testing.T) {
	r, d := buildTestRouter()

	w := doRequest(r, http.MethodPost, "/api/cache/invalidate", map[string]string{"kind": "assignment"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []feeds.Kind{feeds.KindAssignment}, d.cache.kinds)

	w = doRequest(r, http.MethodPost, "/api/cache/invalidate", map[string]string{"kind": "weather"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/cache/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"hit_rate":0.9`)

	w = doRequest(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
