// README: Cache handlers: manual invalidation, stats, performance metrics, health.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/cache"
	"fleetmatch/internal/modules/feeds"
)

type CacheFacade interface {
	Invalidator
	CacheStats() cache.Stats
	PerformanceMetrics(ctx context.Context) (feeds.Metrics, bool)
	CheckHealth() []string
}

type CacheHandler struct {
	facade CacheFacade
}

func NewCacheHandler(f CacheFacade) *CacheHandler {
	return &CacheHandler{facade: f}
}

type invalidateReq struct {
	Kind feeds.Kind `json:"kind" binding:"required"`
}

// Invalidate handles POST /api/cache/invalidate.
func (h *CacheHandler) Invalidate(c *gin.Context) {
	var req invalidateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "kind is required")
		return
	}
	if err := h.facade.Invalidate(c.Request.Context(), req.Kind); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"invalidated": req.Kind})
}

// Stats handles GET /api/cache/stats.
func (h *CacheHandler) Stats(c *gin.Context) {
	writeJSON(c, http.StatusOK, h.facade.CacheStats())
}

// Metrics handles GET /api/metrics.
func (h *CacheHandler) Metrics(c *gin.Context) {
	m, degraded := h.facade.PerformanceMetrics(c.Request.Context())
	writeJSON(c, http.StatusOK, gin.H{"metrics": m, "degraded": degraded})
}

// Health handles GET /health. Cache warnings are reported, never fatal.
func (h *CacheHandler) Health(c *gin.Context) {
	issues := h.facade.CheckHealth()
	status := "ok"
	if len(issues) > 0 {
		status = "degraded"
	}
	writeJSON(c, http.StatusOK, gin.H{"status": status, "issues": issues})
}
