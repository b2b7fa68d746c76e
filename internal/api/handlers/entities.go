package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"shelfy/internal/entities"
	"shelfy/internal/vitesy"

	"github.com/gin-gonic/gin"
)

// Resetter performs the maintenance resets behind the buttons
type Resetter interface {
	ResetFilter(ctx context.Context, deviceID string) (*vitesy.ResetResult, error)
	ResetFridge(ctx context.Context, deviceID string) (*vitesy.ResetResult, error)
}

// EntitiesHandler handles sensor and button requests
type EntitiesHandler struct {
	registry  *entities.Registry
	snapshots SnapshotSource
	resetter  Resetter
	logger    *slog.Logger
	now       func() time.Time
}

// NewEntitiesHandler creates a new entities handler
func NewEntitiesHandler(registry *entities.Registry, snapshots SnapshotSource, resetter Resetter, logger *slog.Logger) *EntitiesHandler {
	return &EntitiesHandler{
		registry:  registry,
		snapshots: snapshots,
		resetter:  resetter,
		logger:    logger,
		now:       time.Now,
	}
}

// ListEntities returns every entity with its current value
// GET /entities
func (h *EntitiesHandler) ListEntities(c *gin.Context) {
	snapshot := h.snapshots.Snapshot()
	now := h.now()

	list := h.registry.List()
	if deviceID := c.Query("device_id"); deviceID != "" {
		list = h.registry.ListByDevice(deviceID)
	}

	states := make([]entities.State, 0, len(list))
	for _, entity := range list {
		state := entities.Resolve(entity, snapshot.Devices, now)
		state.Available = state.Available && snapshot.Available
		states = append(states, state)
	}

	c.JSON(http.StatusOK, states)
}

// GetEntity returns one entity with its current value
// GET /entities/:id
func (h *EntitiesHandler) GetEntity(c *gin.Context) {
	entity, ok := h.lookup(c)
	if !ok {
		return
	}

	snapshot := h.snapshots.Snapshot()
	state := entities.Resolve(entity, snapshot.Devices, h.now())
	state.Available = state.Available && snapshot.Available

	c.JSON(http.StatusOK, state)
}

// PressButton runs the maintenance reset of a button
// POST /buttons/:id/press
func (h *EntitiesHandler) PressButton(c *gin.Context) {
	entity, ok := h.lookup(c)
	if !ok {
		return
	}

	if entity.Kind != entities.KindButton {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Entity is not a button",
			"code":  "NOT_A_BUTTON",
		})
		return
	}

	ctx := c.Request.Context()
	var result *vitesy.ResetResult
	var err error
	switch entity.Action {
	case entities.ActionFilterWashed:
		result, err = h.resetter.ResetFilter(ctx, entity.DeviceID)
	case entities.ActionFridgeWashed:
		result, err = h.resetter.ResetFridge(ctx, entity.DeviceID)
	default:
		err = errors.New("unknown button action " + string(entity.Action))
	}

	if err != nil {
		h.logger.Error("Button press failed",
			"component", "api.entities",
			"entity_id", entity.UniqueID,
			"device_id", entity.DeviceID,
			"error", err,
		)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "Failed to reset maintenance",
			"code":  "UPSTREAM_ERROR",
		})
		return
	}

	h.logger.Info("Button pressed",
		"component", "api.entities",
		"entity_id", entity.UniqueID,
		"device_id", entity.DeviceID,
	)

	c.JSON(http.StatusOK, gin.H{
		"entity_id": entity.UniqueID,
		"result":    result,
	})
}

func (h *EntitiesHandler) lookup(c *gin.Context) (entities.Entity, bool) {
	entity, err := h.registry.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, entities.ErrEntityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Entity not found",
				"code":  "ENTITY_NOT_FOUND",
			})
			return entities.Entity{}, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get entity",
			"code":  "INTERNAL_ERROR",
		})
		return entities.Entity{}, false
	}
	return entity, true
}
