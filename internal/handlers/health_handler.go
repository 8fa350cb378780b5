package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pollreminder/reminder-api/pkg/circuitbreaker"
)

type HealthHandler struct {
	pollAPIStatus  func() circuitbreaker.Status
	activeSessions func() int
}

// NewHealthHandler reports liveness plus the poll API circuit state
func NewHealthHandler(pollAPIStatus func() circuitbreaker.Status, activeSessions func() int) *HealthHandler {
	return &HealthHandler{
		pollAPIStatus:  pollAPIStatus,
		activeSessions: activeSessions,
	}
}

func (h *HealthHandler) Healthcheck(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")

	pollAPI := h.pollAPIStatus()
	status := "ok"
	// lookups fail fast while the breaker is open but the service itself is up
	if pollAPI.State == "open" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"poll_api":        pollAPI,
		"active_sessions": h.activeSessions(),
	})
}
