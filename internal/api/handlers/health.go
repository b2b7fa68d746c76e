package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	snapshots SnapshotSource
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(snapshots SnapshotSource) *HealthHandler {
	return &HealthHandler{snapshots: snapshots}
}

// GetHealth reports that the process is up, along with the state of the
// last poll. An unreachable vendor cloud does not make the service unhealthy.
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	snapshot := h.snapshots.Snapshot()

	cloud := gin.H{
		"available": snapshot.Available,
		"devices":   len(snapshot.Devices),
	}
	if !snapshot.UpdatedAt.IsZero() {
		cloud["updated_at"] = snapshot.UpdatedAt
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"service": "shelfy",
		"vitesy":  cloud,
	})
}
