package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DisruptionSyncer is the part of the disruption sync service the route endpoints use
type DisruptionSyncer interface {
	SyncRoute(ctx context.Context, routeID uuid.UUID) (*services.SyncResult, error)
	SyncAllRoutes(ctx context.Context) (*services.SyncSummary, error)
	GetRouteStatus(ctx context.Context, routeID uuid.UUID) (*models.RouteStatus, error)
	ListRouteDisruptions(ctx context.Context, routeID uuid.UUID, activeOnly bool) ([]models.Disruption, error)
	MarkRouteViewed(ctx context.Context, routeID uuid.UUID) error
}

// RouteHandler handles HTTP requests for monitored routes
type RouteHandler struct {
	syncer DisruptionSyncer
	logger *logrus.Logger
}

// NewRouteHandler creates a new route handler
func NewRouteHandler(syncer DisruptionSyncer, logger *logrus.Logger) *RouteHandler {
	return &RouteHandler{
		syncer: syncer,
		logger: logger,
	}
}

// SyncAllRoutes handles POST /api/v1/sync
func (h *RouteHandler) SyncAllRoutes(c *gin.Context) {
	summary, err := h.syncer.SyncAllRoutes(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to sync disruptions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"summary": summary,
	})
}

// SyncRoute handles POST /api/v1/routes/:id/sync
func (h *RouteHandler) SyncRoute(c *gin.Context) {
	routeID, ok := routeIDParam(c)
	if !ok {
		return
	}

	result, err := h.syncer.SyncRoute(c.Request.Context(), routeID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to sync route disruptions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": result,
	})
}

// GetRouteStatus handles GET /api/v1/routes/:id/status
func (h *RouteHandler) GetRouteStatus(c *gin.Context) {
	routeID, ok := routeIDParam(c)
	if !ok {
		return
	}

	status, err := h.syncer.GetRouteStatus(c.Request.Context(), routeID)
	if err != nil {
		respondError(c, h.logger, err, "Route status not available")
		return
	}

	c.JSON(http.StatusOK, status)
}

// ListRouteDisruptions handles GET /api/v1/routes/:id/disruptions?active=true
func (h *RouteHandler) ListRouteDisruptions(c *gin.Context) {
	routeID, ok := routeIDParam(c)
	if !ok {
		return
	}

	activeOnly := false
	if raw := c.Query("active"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid value for active", err)
			return
		}
		activeOnly = parsed
	}

	disruptions, err := h.syncer.ListRouteDisruptions(c.Request.Context(), routeID, activeOnly)
	if err != nil {
		respondError(c, h.logger, err, "Failed to list route disruptions")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"route_id":    routeID,
		"count":       len(disruptions),
		"disruptions": disruptions,
	})
}

// MarkRouteViewed handles POST /api/v1/routes/:id/viewed
func (h *RouteHandler) MarkRouteViewed(c *gin.Context) {
	routeID, ok := routeIDParam(c)
	if !ok {
		return
	}

	if err := h.syncer.MarkRouteViewed(c.Request.Context(), routeID); err != nil {
		respondError(c, h.logger, err, "Failed to mark route as viewed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Route marked as viewed",
	})
}
