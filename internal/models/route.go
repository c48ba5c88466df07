package models

import (
	"time"

	"github.com/google/uuid"
)

// RouteDefinition is a user-authored commute route that is monitored for disruptions
type RouteDefinition struct {
	ID              uuid.UUID `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	OriginCode      string    `json:"origin_code" db:"origin_code"`
	OriginName      string    `json:"origin_name" db:"origin_name"`
	DestinationCode string    `json:"destination_code" db:"destination_code"`
	DestinationName string    `json:"destination_name" db:"destination_name"`
	ScheduleDays    IntArray  `json:"schedule_days" db:"schedule_days"`   // 0 = Sunday ... 6 = Saturday
	DepartureTime   string    `json:"departure_time" db:"departure_time"` // HH:MM
	UrgencyLevel    string    `json:"urgency_level" db:"urgency_level"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// RouteStation is one station on a route; order 0 is the origin
type RouteStation struct {
	RouteID     uuid.UUID `json:"route_id" db:"route_id"`
	StationCode string    `json:"station_code" db:"station_code"`
	StationName string    `json:"station_name" db:"station_name"`
	Order       int       `json:"order" db:"station_order"`
}

// RouteWithStations is a route together with its ordered stations
type RouteWithStations struct {
	Route    RouteDefinition `json:"route"`
	Stations []RouteStation  `json:"stations"`
}

// StationCodes returns the route's station codes in travel order
func (r *RouteWithStations) StationCodes() []string {
	codes := make([]string, 0, len(r.Stations))
	for _, s := range r.Stations {
		codes = append(codes, s.StationCode)
	}
	return codes
}
