// README: Job handlers for post/get/cancel; every mutation raises a job invalidation.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/types"
)

type JobService interface {
	Post(ctx context.Context, cmd cargo.PostCommand) (*cargo.Job, error)
	Get(ctx context.Context, id types.ID) (*cargo.Job, error)
	Cancel(ctx context.Context, id types.ID) (*cargo.Job, error)
}

// Invalidator is the cache facade's event hook.
type Invalidator interface {
	Invalidate(ctx context.Context, kind feeds.Kind) error
}

type JobHandler struct {
	jobs  JobService
	cache Invalidator
}

func NewJobHandler(jobs JobService, cache Invalidator) *JobHandler {
	return &JobHandler{jobs: jobs, cache: cache}
}

// Post handles POST /api/jobs.
func (h *JobHandler) Post(c *gin.Context) {
	var cmd cargo.PostCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	j, err := h.jobs.Post(c.Request.Context(), cmd)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	invalidate(c, h.cache, feeds.KindJob)
	writeJSON(c, http.StatusCreated, j)
}

// Get handles GET /api/jobs/:id.
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, j)
}

// Cancel handles POST /api/jobs/:id/cancel.
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid job id")
		return
	}
	j, err := h.jobs.Cancel(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	invalidate(c, h.cache, feeds.KindJob)
	writeJSON(c, http.StatusOK, gin.H{"job_id": j.ID, "status": j.Status})
}

// invalidate never fails the request; the mutation already happened.
func invalidate(c *gin.Context, cache Invalidator, kind feeds.Kind) {
	if err := cache.Invalidate(c.Request.Context(), kind); err != nil {
		_ = c.Error(err)
	}
}
