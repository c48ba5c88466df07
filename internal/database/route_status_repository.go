package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/commutewatch/backend/internal/models"
	"github.com/google/uuid"
)

// RouteStatusRepository handles database operations for the route_statuses table
type RouteStatusRepository struct {
	db DB
}

// NewRouteStatusRepository creates a new RouteStatusRepository
func NewRouteStatusRepository(db DB) *RouteStatusRepository {
	return &RouteStatusRepository{db: db}
}

// UpdateRouteStatus upserts the status row of a route. The changed flag is sticky:
// a sync can raise it but only ClearChangedSinceLastView lowers it.
func (r *RouteStatusRepository) UpdateRouteStatus(ctx context.Context, routeID uuid.UUID, checkedAt time.Time, hasActive, changed bool) error {
	query := `
		INSERT INTO route_statuses (route_id, last_checked_at, has_active_disruptions, changed_since_last_view)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (route_id) DO UPDATE SET
			last_checked_at = EXCLUDED.last_checked_at,
			has_active_disruptions = EXCLUDED.has_active_disruptions,
			changed_since_last_view = route_statuses.changed_since_last_view OR EXCLUDED.changed_since_last_view
	`

	if _, err := r.db.ExecContext(ctx, query, routeID, checkedAt, hasActive, changed); err != nil {
		return fmt.Errorf("failed to update status for route %s: %w", routeID, err)
	}
	return nil
}

// GetRouteStatus returns the status row of a route
func (r *RouteStatusRepository) GetRouteStatus(ctx context.Context, routeID uuid.UUID) (*models.RouteStatus, error) {
	query := `
		SELECT route_id, last_checked_at, has_active_disruptions, changed_since_last_view
		FROM route_statuses
		WHERE route_id = $1
	`

	var status models.RouteStatus
	if err := r.db.GetContext(ctx, &status, query, routeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRouteStatusNotFound
		}
		return nil, fmt.Errorf("failed to fetch status for route %s: %w", routeID, err)
	}
	return &status, nil
}

// ClearChangedSinceLastView lowers the changed flag after the user viewed the route
func (r *RouteStatusRepository) ClearChangedSinceLastView(ctx context.Context, routeID uuid.UUID) error {
	query := `UPDATE route_statuses SET changed_since_last_view = false WHERE route_id = $1`
	if _, err := r.db.ExecContext(ctx, query, routeID); err != nil {
		return fmt.Errorf("failed to clear changed flag for route %s: %w", routeID, err)
	}
	return nil
}
