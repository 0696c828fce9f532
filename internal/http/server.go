// README: API gateway; registers gin routes and delegates to module services.
package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleetmatch/internal/http/handlers"
	"fleetmatch/internal/http/middleware"
)

type ServerDeps struct {
	Matching     handlers.MatchEngine
	Dispatch     handlers.Dispatcher
	Jobs         handlers.JobService
	Fleet        handlers.FleetService
	Cache        handlers.CacheFacade
	DefaultLimit int
	TrackWindow  time.Duration
	Logger       logrus.FieldLogger
}

type Server struct {
	matches     *handlers.MatchHandler
	assignments *handlers.AssignmentHandler
	jobs        *handlers.JobHandler
	vehicles    *handlers.VehicleHandler
	cache       *handlers.CacheHandler
	log         logrus.FieldLogger
}

func NewServer(deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		matches:     handlers.NewMatchHandler(deps.Matching, deps.DefaultLimit),
		assignments: handlers.NewAssignmentHandler(deps.Dispatch),
		jobs:        handlers.NewJobHandler(deps.Jobs, deps.Cache),
		vehicles:    handlers.NewVehicleHandler(deps.Fleet, deps.Cache, deps.TrackWindow),
		cache:       handlers.NewCacheHandler(deps.Cache),
		log:         log,
	}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Logging(s.log), middleware.Recovery(s.log))

	api := r.Group("/api")
	api.GET("/matches", s.matches.Best)
	api.GET("/matches/urgent", s.matches.Urgent)

	api.POST("/assignments", s.assignments.Assign)
	api.POST("/assignments/complete", s.assignments.Complete)

	api.POST("/jobs", s.jobs.Post)
	api.GET("/jobs/:id", s.jobs.Get)
	api.POST("/jobs/:id/cancel", s.jobs.Cancel)

	api.GET("/vehicles/nearby", s.vehicles.Nearby)
	api.GET("/vehicles/:id", s.vehicles.Get)
	api.GET("/vehicles/:id/matches", s.matches.ForVehicle)
	api.PUT("/vehicles/:id/position", s.vehicles.UpdatePosition)
	api.PUT("/vehicles/:id/status", s.vehicles.SetStatus)
	api.GET("/vehicles/:id/track", s.vehicles.Track)

	api.POST("/cache/invalidate", s.cache.Invalidate)
	api.GET("/cache/stats", s.cache.Stats)
	api.GET("/metrics", s.cache.Metrics)

	r.GET("/health", s.cache.Health)
	return r
}
