package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/commutewatch/backend/internal/models"
	"github.com/google/uuid"
)

// RouteRepository reads monitored routes and their stations.
// Routes are authored elsewhere; this repository never writes them.
type RouteRepository struct {
	db DB
}

// NewRouteRepository creates a new RouteRepository
func NewRouteRepository(db DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// GetRouteInternal returns a route with its stations ordered from origin to destination
func (r *RouteRepository) GetRouteInternal(ctx context.Context, routeID uuid.UUID) (*models.RouteWithStations, error) {
	routeQuery := `
		SELECT id, name, origin_code, origin_name, destination_code, destination_name,
			   schedule_days, departure_time, urgency_level, created_at, updated_at
		FROM routes
		WHERE id = $1
	`

	result := &models.RouteWithStations{}
	if err := r.db.GetContext(ctx, &result.Route, routeQuery, routeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to fetch route: %w", err)
	}

	stationsQuery := `
		SELECT route_id, station_code, station_name, station_order
		FROM route_stations
		WHERE route_id = $1
		ORDER BY station_order ASC
	`

	result.Stations = []models.RouteStation{}
	if err := r.db.SelectContext(ctx, &result.Stations, stationsQuery, routeID); err != nil {
		return nil, fmt.Errorf("failed to fetch route stations: %w", err)
	}

	return result, nil
}

// ListRouteIDs returns the ids of every monitored route
func (r *RouteRepository) ListRouteIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM routes ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	return ids, nil
}
