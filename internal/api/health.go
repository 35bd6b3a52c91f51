package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jmerrifield20/incidentai/internal/health"
)

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Register mounts /healthz on r.
func (h *HealthHandler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.Health)
}

// Health probes every component. Only an unhealthy critical component turns
// the response into 503.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
