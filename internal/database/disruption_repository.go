package database

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/commutewatch/backend/internal/models"
	"github.com/google/uuid"
)

var disruptionColumns = []string{
	"id", "route_id", "external_id", "type", "title", "description", "period", "advice",
	"affected_stations", "last_seen", "content_hash", "is_active", "created_at", "updated_at",
}

// DisruptionRepository handles database operations for the disruptions table
type DisruptionRepository struct {
	db DB
}

// NewDisruptionRepository creates a new DisruptionRepository
func NewDisruptionRepository(db DB) *DisruptionRepository {
	return &DisruptionRepository{db: db}
}

// UpsertDisruption inserts a disruption or refreshes the row stored under
// (route_id, external_id). The row id of an existing record never changes.
func (r *DisruptionRepository) UpsertDisruption(ctx context.Context, d *models.Disruption) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.AffectedStations == nil {
		d.AffectedStations = models.StringArray{}
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO disruptions (
			id, route_id, external_id, type, title, description, period, advice,
			affected_stations, last_seen, content_hash, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (route_id, external_id) DO UPDATE SET
			type = EXCLUDED.type,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			period = EXCLUDED.period,
			advice = EXCLUDED.advice,
			affected_stations = EXCLUDED.affected_stations,
			last_seen = EXCLUDED.last_seen,
			content_hash = EXCLUDED.content_hash,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.RouteID, d.ExternalID, d.Type, d.Title, d.Description, d.Period, d.Advice,
		d.AffectedStations, d.LastSeen, d.ContentHash, d.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert disruption %s for route %s: %w", d.ExternalID, d.RouteID, err)
	}
	return nil
}

// ListByRoute returns the disruptions recorded for a route, most recently seen first
func (r *DisruptionRepository) ListByRoute(ctx context.Context, routeID uuid.UUID, activeOnly bool) ([]models.Disruption, error) {
	builder := psql.Select(disruptionColumns...).
		From("disruptions").
		Where(sq.Eq{"route_id": routeID}).
		OrderBy("last_seen DESC", "external_id ASC")
	if activeOnly {
		builder = builder.Where(sq.Eq{"is_active": true})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build disruption query: %w", err)
	}

	disruptions := []models.Disruption{}
	if err := r.db.SelectContext(ctx, &disruptions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch disruptions for route %s: %w", routeID, err)
	}
	return disruptions, nil
}

// MarkOldDisruptionsInactive deactivates every active disruption of the route whose
// external id is not in activeIDs. Content columns are left untouched so the last
// known version stays available as history.
func (r *DisruptionRepository) MarkOldDisruptionsInactive(ctx context.Context, routeID uuid.UUID, activeIDs []string) (int64, error) {
	builder := psql.Update("disruptions").
		Set("is_active", false).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"route_id": routeID, "is_active": true})
	if len(activeIDs) > 0 {
		builder = builder.Where(sq.NotEq{"external_id": activeIDs})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build deactivation query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate disruptions for route %s: %w", routeID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read deactivated row count: %w", err)
	}
	return affected, nil
}

// HasActiveDisruptions reports whether any disruption of the route is active
func (r *DisruptionRepository) HasActiveDisruptions(ctx context.Context, routeID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM disruptions WHERE route_id = $1 AND is_active = true)`
	if err := r.db.GetContext(ctx, &exists, query, routeID); err != nil {
		return false, fmt.Errorf("failed to check active disruptions for route %s: %w", routeID, err)
	}
	return exists, nil
}
