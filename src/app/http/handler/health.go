// Package handler contains the demo service's HTTP handlers.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sqlgate/src/app/http/response"
)

// HealthChecker is the narrow dependency of the health endpoints.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checker HealthChecker
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(checker HealthChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health is a plain liveness probe.
func (h *HealthHandler) Health(c *gin.Context) {
	response.OK(c, gin.H{"status": "ok"})
}

// DetailedHealth additionally pings the database through the pooled handle.
func (h *HealthHandler) DetailedHealth(c *gin.Context) {
	if err := h.checker.Health(c.Request.Context()); err != nil {
		response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", err.Error())
		return
	}
	response.OK(c, gin.H{"status": "ok", "database": "ok"})
}
