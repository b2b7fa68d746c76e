package handlers

import (
	"log/slog"
	"net/http"

	"shelfy/internal/entities"
	"shelfy/internal/poller"

	"github.com/gin-gonic/gin"
)

// SnapshotSource provides the latest polled device state
type SnapshotSource interface {
	Snapshot() poller.Snapshot
}

// DevicesHandler handles device-related requests
type DevicesHandler struct {
	snapshots SnapshotSource
	registry  *entities.Registry
	logger    *slog.Logger
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(snapshots SnapshotSource, registry *entities.Registry, logger *slog.Logger) *DevicesHandler {
	return &DevicesHandler{
		snapshots: snapshots,
		registry:  registry,
		logger:    logger,
	}
}

// ListDevices returns all polled devices
// GET /devices
func (h *DevicesHandler) ListDevices(c *gin.Context) {
	snapshot := h.snapshots.Snapshot()

	deviceList := make([]gin.H, 0, len(snapshot.Devices))
	for _, device := range snapshot.Devices {
		displayType := entities.DisplayType(device.Type)
		info := gin.H{
			"id":           device.ID,
			"type":         device.Type,
			"name":         "Vitesy " + displayType,
			"entity_count": len(h.registry.ListByDevice(device.ID)),
		}
		if device.Model != nil {
			info["model"] = *device.Model
		}
		if device.FirmwareVersion != nil {
			info["firmware_version"] = *device.FirmwareVersion
		}
		if device.Connected != nil {
			info["connected"] = *device.Connected
		}
		deviceList = append(deviceList, info)
	}

	response := gin.H{
		"available": snapshot.Available,
		"devices":   deviceList,
	}
	if !snapshot.UpdatedAt.IsZero() {
		response["updated_at"] = snapshot.UpdatedAt
	}
	if snapshot.LastError != "" {
		response["last_error"] = snapshot.LastError
	}

	c.JSON(http.StatusOK, response)
}
