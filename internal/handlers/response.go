package handlers

import (
	"errors"
	"net/http"

	"github.com/commutewatch/backend/internal/database"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// statusForError maps service errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrRouteNotFound),
		errors.Is(err, database.ErrRouteStatusNotFound),
		errors.Is(err, database.ErrStationNotFound):
		return http.StatusNotFound
	case errors.Is(err, ns.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.Is(err, ns.ErrFeedUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error response for err and logs it at a level that
// matches its status. The error text is only returned to the client for client
// errors and feed failures; anything else stays in the log.
func respondError(c *gin.Context, logger *logrus.Logger, err error, message string) {
	status := statusForError(err)

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"status": status,
	})
	switch status {
	case http.StatusNotFound:
		entry.Info(message)
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		entry.Warn(message)
	default:
		entry.Error(message)
	}

	body := gin.H{
		"status":  "error",
		"message": message,
	}
	if status < http.StatusInternalServerError || status == http.StatusBadGateway {
		body["error"] = err.Error()
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string, err error) {
	body := gin.H{
		"status":  "error",
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// routeIDParam parses the :id path parameter, writing a 400 when it is not a UUID
func routeIDParam(c *gin.Context) (uuid.UUID, bool) {
	routeID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid route ID", err)
		return uuid.Nil, false
	}
	return routeID, true
}
