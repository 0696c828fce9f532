// README: Match handlers: ranked search, urgent preset, per-vehicle search.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/matching"
	"fleetmatch/internal/types"
)

type MatchEngine interface {
	FindBestMatches(ctx context.Context, limit int, f matching.Filters) (*matching.Result, error)
	FindMatchesForVehicle(ctx context.Context, vehicleID types.ID, limit int) (*matching.Result, error)
	FindUrgentMatches(ctx context.Context) (*matching.Result, error)
}

type MatchHandler struct {
	engine       MatchEngine
	defaultLimit int
}

func NewMatchHandler(engine MatchEngine, defaultLimit int) *MatchHandler {
	return &MatchHandler{engine: engine, defaultLimit: max(1, defaultLimit)}
}

var matchQueryKeys = []string{
	"limit", "urgency", "min_profit", "max_distance_km", "min_score", "exclude_high_risk", "vehicle_types",
}

type matchQuery struct {
	Limit           int     `form:"limit"`
	Urgency         string  `form:"urgency"`
	MinProfit       float64 `form:"min_profit"`
	MaxDistanceKm   float64 `form:"max_distance_km"`
	MinScore        float64 `form:"min_score"`
	ExcludeHighRisk *bool   `form:"exclude_high_risk"`
	VehicleTypes    string  `form:"vehicle_types"`
}

func (q matchQuery) filters() matching.Filters {
	f := matching.Filters{
		Urgency:         cargo.Urgency(strings.ToLower(strings.TrimSpace(q.Urgency))),
		MinProfit:       q.MinProfit,
		MaxDistanceKm:   q.MaxDistanceKm,
		MinScore:        q.MinScore,
		ExcludeHighRisk: q.ExcludeHighRisk,
	}
	for _, t := range strings.Split(q.VehicleTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.VehicleTypes = append(f.VehicleTypes, fleet.Type(strings.ToLower(t)))
		}
	}
	return f
}

// Best handles GET /api/matches.
func (h *MatchHandler) Best(c *gin.Context) {
	if rejectUnknownQuery(c, matchQueryKeys...) {
		return
	}
	var q matchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query")
		return
	}
	limit := q.Limit
	if _, set := c.GetQuery("limit"); !set {
		limit = h.defaultLimit
	}
	res, err := h.engine.FindBestMatches(c.Request.Context(), limit, q.filters())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// Urgent handles GET /api/matches/urgent.
func (h *MatchHandler) Urgent(c *gin.Context) {
	if rejectUnknownQuery(c) {
		return
	}
	res, err := h.engine.FindUrgentMatches(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

// ForVehicle handles GET /api/vehicles/:id/matches.
func (h *MatchHandler) ForVehicle(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	if rejectUnknownQuery(c, "limit") {
		return
	}
	var q struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query")
		return
	}
	limit := q.Limit
	if _, set := c.GetQuery("limit"); !set {
		limit = h.defaultLimit
	}
	res, err := h.engine.FindMatchesForVehicle(c.Request.Context(), types.ID(id), limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}
