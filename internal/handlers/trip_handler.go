package handlers

import (
	"context"
	"net/http"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RouteOptionSearcher resolves trip searches into route options
type RouteOptionSearcher interface {
	SearchRouteOptions(ctx context.Context, fromStation, toStation string) ([]models.RouteOption, error)
}

// TripOptionsQuery is the query string of GET /api/v1/trips/options
type TripOptionsQuery struct {
	From string `form:"from" binding:"required,stationcode"`
	To   string `form:"to" binding:"required,stationcode"`
}

// RegisterValidators adds the custom validation tags to gin's binding engine
func RegisterValidators() error {
	if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
		return validator.RegisterStationCode(v)
	}
	return nil
}

// TripHandler handles HTTP requests for trip search
type TripHandler struct {
	searcher     RouteOptionSearcher
	stationCodes *validator.StationCodeValidator
	logger       *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(searcher RouteOptionSearcher, stationCodes *validator.StationCodeValidator, logger *logrus.Logger) *TripHandler {
	return &TripHandler{
		searcher:     searcher,
		stationCodes: stationCodes,
		logger:       logger,
	}
}

// GetRouteOptions handles GET /api/v1/trips/options?from=ASD&to=UT
func (h *TripHandler) GetRouteOptions(c *gin.Context) {
	var query TripOptionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.logger.WithError(err).Debug("Invalid route options query")
		badRequest(c, "from and to must be two different station codes of 2 to 8 letters or digits", err)
		return
	}

	from := h.stationCodes.Sanitize(query.From)
	to := h.stationCodes.Sanitize(query.To)
	if from == to {
		badRequest(c, "from and to must be two different station codes of 2 to 8 letters or digits", nil)
		return
	}

	options, err := h.searcher.SearchRouteOptions(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, err, "Failed to search route options")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":    from,
		"to":      to,
		"count":   len(options),
		"options": options,
	})
}
