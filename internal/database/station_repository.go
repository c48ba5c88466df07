package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/commutewatch/backend/internal/models"
	"github.com/google/uuid"
)

var stationColumns = []string{
	"id", "code", "uic_code", "name_long", "name_medium", "name_short",
	"synonyms", "lat", "lng", "country", "synced_at",
}

// StationRepository handles database operations for the stations table
type StationRepository struct {
	db DB
}

// NewStationRepository creates a new StationRepository
func NewStationRepository(db DB) *StationRepository {
	return &StationRepository{db: db}
}

// UpsertStation inserts a station or refreshes it by code
func (r *StationRepository) UpsertStation(ctx context.Context, station *models.Station) error {
	if station.ID == uuid.Nil {
		station.ID = uuid.New()
	}
	if station.Synonyms == nil {
		station.Synonyms = models.StringArray{}
	}

	query := `
		INSERT INTO stations (
			id, code, uic_code, name_long, name_medium, name_short,
			synonyms, lat, lng, country, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO UPDATE SET
			uic_code = EXCLUDED.uic_code,
			name_long = EXCLUDED.name_long,
			name_medium = EXCLUDED.name_medium,
			name_short = EXCLUDED.name_short,
			synonyms = EXCLUDED.synonyms,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			country = EXCLUDED.country,
			synced_at = EXCLUDED.synced_at
	`

	_, err := r.db.ExecContext(ctx, query,
		station.ID, station.Code, station.UICCode, station.NameLong, station.NameMedium, station.NameShort,
		station.Synonyms, station.Lat, station.Lng, station.Country, station.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", station.Code, err)
	}
	return nil
}

// GetStationsByUICCodes returns the stations matching any of the given UIC codes
func (r *StationRepository) GetStationsByUICCodes(ctx context.Context, uicCodes []string) ([]models.Station, error) {
	stations := []models.Station{}
	if len(uicCodes) == 0 {
		return stations, nil
	}

	query, args, err := psql.Select(stationColumns...).
		From("stations").
		Where(sq.Eq{"uic_code": uicCodes}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build station lookup: %w", err)
	}

	if err := r.db.SelectContext(ctx, &stations, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch stations by uic code: %w", err)
	}
	return stations, nil
}

// GetStationByCode returns the station with the given short code
func (r *StationRepository) GetStationByCode(ctx context.Context, code string) (*models.Station, error) {
	query, args, err := psql.Select(stationColumns...).
		From("stations").
		Where(sq.Eq{"code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build station lookup: %w", err)
	}

	var station models.Station
	if err := r.db.GetContext(ctx, &station, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStationNotFound
		}
		return nil, fmt.Errorf("failed to fetch station: %w", err)
	}
	return &station, nil
}
