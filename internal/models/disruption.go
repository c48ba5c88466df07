package models

import (
	"time"

	"github.com/google/uuid"
)

// Disruption is an upstream disruption as recorded for one route.
// Rows are unique per (RouteID, ExternalID) and are deactivated instead of deleted.
type Disruption struct {
	ID               uuid.UUID   `json:"id" db:"id"`
	RouteID          uuid.UUID   `json:"route_id" db:"route_id"`
	ExternalID       string      `json:"external_disruption_id" db:"external_id"`
	Type             string      `json:"type" db:"type"`
	Title            string      `json:"title" db:"title"`
	Description      string      `json:"description" db:"description"`
	Period           string      `json:"period" db:"period"`
	Advice           string      `json:"advice" db:"advice"`
	AffectedStations StringArray `json:"affected_stations" db:"affected_stations"`
	LastSeen         time.Time   `json:"last_seen" db:"last_seen"`
	ContentHash      string      `json:"content_hash" db:"content_hash"`
	IsActive         bool        `json:"is_active" db:"is_active"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`
}
