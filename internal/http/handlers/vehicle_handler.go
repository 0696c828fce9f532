// README: Vehicle handlers: telemetry ingestion, status changes, proximity lookup.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/types"
)

type FleetService interface {
	Get(ctx context.Context, id types.ID) (*fleet.Vehicle, error)
	SetStatus(ctx context.Context, id types.ID, status fleet.Status) error
	UpdatePosition(ctx context.Context, id types.ID, p types.Point) error
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
	Track(ctx context.Context, id types.ID, window time.Duration) ([]fleet.Snapshot, error)
}

type VehicleHandler struct {
	fleet       FleetService
	cache       Invalidator
	trackWindow time.Duration
}

func NewVehicleHandler(f FleetService, cache Invalidator, trackWindow time.Duration) *VehicleHandler {
	if trackWindow <= 0 {
		trackWindow = 24 * time.Hour
	}
	return &VehicleHandler{fleet: f, cache: cache, trackWindow: trackWindow}
}

type positionReq struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lng *float64 `json:"lng" binding:"required"`
}

type statusReq struct {
	Status fleet.Status `json:"status" binding:"required"`
}

// Get handles GET /api/vehicles/:id.
func (h *VehicleHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	v, err := h.fleet.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, v)
}

// UpdatePosition handles PUT /api/vehicles/:id/position.
func (h *VehicleHandler) UpdatePosition(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p := types.Point{Lat: *req.Lat, Lng: *req.Lng}
	if !p.Valid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if err := h.fleet.UpdatePosition(c.Request.Context(), types.ID(id), p); err != nil {
		writeDomainError(c, err)
		return
	}
	invalidate(c, h.cache, feeds.KindVehicle)
	c.Status(http.StatusNoContent)
}

// SetStatus handles PUT /api/vehicles/:id/status.
func (h *VehicleHandler) SetStatus(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		writeError(c, http.StatusBadRequest, "invalid status")
		return
	}
	if err := h.fleet.SetStatus(c.Request.Context(), types.ID(id), req.Status); err != nil {
		writeDomainError(c, err)
		return
	}
	invalidate(c, h.cache, feeds.KindVehicle)
	writeJSON(c, http.StatusOK, gin.H{"vehicle_id": id, "status": req.Status})
}

// Nearby handles GET /api/vehicles/nearby?lat=..&lng=..&radius_km=..
func (h *VehicleHandler) Nearby(c *gin.Context) {
	var q struct {
		Lat      *float64 `form:"lat" binding:"required"`
		Lng      *float64 `form:"lng" binding:"required"`
		RadiusKm float64  `form:"radius_km"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	p := types.Point{Lat: *q.Lat, Lng: *q.Lng}
	if !p.Valid() {
		writeError(c, http.StatusBadRequest, "coordinates out of range")
		return
	}
	if q.RadiusKm <= 0 {
		q.RadiusKm = 50
	}
	ids, err := h.fleet.Nearby(c.Request.Context(), p, q.RadiusKm)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"vehicle_ids": ids, "radius_km": q.RadiusKm})
}

// Track handles GET /api/vehicles/:id/track?window=6h.
func (h *VehicleHandler) Track(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid vehicle id")
		return
	}
	window := h.trackWindow
	if raw := c.Query("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 || d > 7*24*time.Hour {
			writeError(c, http.StatusBadRequest, "invalid window")
			return
		}
		window = d
	}
	trail, err := h.fleet.Track(c.Request.Context(), types.ID(id), window)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if trail == nil {
		trail = []fleet.Snapshot{}
	}
	writeJSON(c, http.StatusOK, gin.H{"vehicle_id": id, "window": window.String(), "snapshots": trail})
}
