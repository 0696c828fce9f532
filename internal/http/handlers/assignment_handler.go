// README: Assignment handlers: commit and complete a (job, vehicle) pairing.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/scoring"
	"fleetmatch/internal/types"
)

type Dispatcher interface {
	Assign(ctx context.Context, jobID, vehicleID types.ID) (scoring.MatchCandidate, error)
	Complete(ctx context.Context, jobID, vehicleID types.ID) error
}

type AssignmentHandler struct {
	dispatch Dispatcher
}

func NewAssignmentHandler(d Dispatcher) *AssignmentHandler {
	return &AssignmentHandler{dispatch: d}
}

type assignmentReq struct {
	JobID     string `json:"job_id" binding:"required"`
	VehicleID string `json:"vehicle_id" binding:"required"`
}

func (r assignmentReq) valid() bool {
	return isValidID(r.JobID) && isValidID(r.VehicleID)
}

// Assign handles POST /api/assignments.
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req assignmentReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		writeError(c, http.StatusBadRequest, "job_id and vehicle_id are required")
		return
	}
	candidate, err := h.dispatch.Assign(c.Request.Context(), types.ID(req.JobID), types.ID(req.VehicleID))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, candidate)
}

// Complete handles POST /api/assignments/complete.
func (h *AssignmentHandler) Complete(c *gin.Context) {
	var req assignmentReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() {
		writeError(c, http.StatusBadRequest, "job_id and vehicle_id are required")
		return
	}
	if err := h.dispatch.Complete(c.Request.Context(), types.ID(req.JobID), types.ID(req.VehicleID)); err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "completed"})
}
