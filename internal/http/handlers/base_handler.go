// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/dispatch"
	"fleetmatch/internal/modules/feeds"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/modules/matching"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the uuid-style ids the stores generate plus short fleet codes.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// rejectUnknownQuery writes a 400 naming every query key outside allowed.
func rejectUnknownQuery(c *gin.Context, allowed ...string) bool {
	var unknown []string
	for k := range c.Request.URL.Query() {
		if !slices.Contains(allowed, k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return false
	}
	slices.Sort(unknown)
	writeError(c, http.StatusBadRequest, "unknown filter: "+strings.Join(unknown, ", "))
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrInvalidInput),
		errors.Is(err, cargo.ErrBadRequest),
		errors.Is(err, fleet.ErrBadRequest),
		errors.Is(err, feeds.ErrUnknownKind):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, cargo.ErrNotFound), errors.Is(err, fleet.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, cargo.ErrInvalidState), errors.Is(err, cargo.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, dispatch.ErrNotViable):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
