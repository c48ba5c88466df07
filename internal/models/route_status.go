package models

import (
	"time"

	"github.com/google/uuid"
)

// RouteStatus is the badge status of a route, one row per route
type RouteStatus struct {
	RouteID              uuid.UUID `json:"route_id" db:"route_id"`
	LastCheckedAt        time.Time `json:"last_checked_at" db:"last_checked_at"`
	HasActiveDisruptions bool      `json:"has_active_disruptions" db:"has_active_disruptions"`
	ChangedSinceLastView bool      `json:"changed_since_last_view" db:"changed_since_last_view"`
}
