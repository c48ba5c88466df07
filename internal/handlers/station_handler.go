package handlers

import (
	"context"
	"net/http"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/internal/services"
	"github.com/commutewatch/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StationDirectory is the part of the station directory the station endpoints use
type StationDirectory interface {
	GetStation(ctx context.Context, code string) (*models.Station, error)
	SyncStations(ctx context.Context) (*services.StationSyncResult, error)
}

// StationHandler handles HTTP requests for stations
type StationHandler struct {
	directory    StationDirectory
	stationCodes *validator.StationCodeValidator
	logger       *logrus.Logger
}

// NewStationHandler creates a new station handler
func NewStationHandler(directory StationDirectory, stationCodes *validator.StationCodeValidator, logger *logrus.Logger) *StationHandler {
	return &StationHandler{
		directory:    directory,
		stationCodes: stationCodes,
		logger:       logger,
	}
}

// GetStation handles GET /api/v1/stations/:code
func (h *StationHandler) GetStation(c *gin.Context) {
	code, err := h.stationCodes.Validate(c.Param("code"))
	if err != nil {
		badRequest(c, "Invalid station code", err)
		return
	}

	station, err := h.directory.GetStation(c.Request.Context(), code)
	if err != nil {
		respondError(c, h.logger, err, "Station not found")
		return
	}

	c.JSON(http.StatusOK, station)
}

// SyncStations handles POST /api/v1/stations/sync
func (h *StationHandler) SyncStations(c *gin.Context) {
	result, err := h.directory.SyncStations(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to sync stations")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"result": result,
	})
}
