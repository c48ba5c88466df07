package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// StationStore persists stations
type StationStore interface {
	UpsertStation(ctx context.Context, station *models.Station) error
	GetStationsByUICCodes(ctx context.Context, uicCodes []string) ([]models.Station, error)
	GetStationByCode(ctx context.Context, code string) (*models.Station, error)
}

// StationFeed is the source of the full station list
type StationFeed interface {
	FetchStations(ctx context.Context) (*ns.StationList, error)
}

// StationSyncResult is the outcome of a station sync
type StationSyncResult struct {
	Received int       `json:"received"`
	Upserted int       `json:"upserted"`
	Skipped  int       `json:"skipped"`
	SyncedAt time.Time `json:"synced_at"`
}

// StationDirectory resolves station identifiers to stored stations. Lookups by UIC
// code are cached because trip searches resolve the same stations over and over.
type StationDirectory struct {
	store  StationStore
	feed   StationFeed
	cache  *cache.Cache
	logger *logrus.Logger
	now    func() time.Time
}

// NewStationDirectory creates a new StationDirectory
func NewStationDirectory(store StationStore, feed StationFeed, ttl time.Duration, logger *logrus.Logger) *StationDirectory {
	return &StationDirectory{
		store:  store,
		feed:   feed,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func uicCacheKey(uicCode string) string {
	return "uic:" + uicCode
}

// ResolveUICCodes returns the known stations for the given UIC codes keyed by UIC
// code. Unknown codes are absent from the result. Cache misses are loaded in one query.
func (d *StationDirectory) ResolveUICCodes(ctx context.Context, uicCodes []string) (map[string]models.Station, error) {
	resolved := make(map[string]models.Station, len(uicCodes))
	var misses []string
	seen := make(map[string]struct{}, len(uicCodes))

	for _, code := range uicCodes {
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}

		if cached, ok := d.cache.Get(uicCacheKey(code)); ok {
			resolved[code] = cached.(models.Station)
			continue
		}
		misses = append(misses, code)
	}

	if len(misses) == 0 {
		return resolved, nil
	}

	stations, err := d.store.GetStationsByUICCodes(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, station := range stations {
		resolved[station.UICCode] = station
		d.cache.SetDefault(uicCacheKey(station.UICCode), station)
	}

	d.logger.WithFields(logrus.Fields{
		"requested": len(seen),
		"loaded":    len(misses),
		"found":     len(stations),
	}).Debug("Resolved stations by UIC code")

	return resolved, nil
}

// GetStation returns the station with the given short code
func (d *StationDirectory) GetStation(ctx context.Context, code string) (*models.Station, error) {
	return d.store.GetStationByCode(ctx, strings.ToUpper(code))
}

// SyncStations loads the full station list from the feed and upserts it.
// Entries without a station code cannot be addressed by routes and are skipped,
// as are entries the feed client could not decode.
func (d *StationDirectory) SyncStations(ctx context.Context) (*StationSyncResult, error) {
	startTime := time.Now()

	feed, err := d.feed.FetchStations(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("Station feed unavailable, station sync aborted")
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}

	result := &StationSyncResult{
		Received: len(feed.Stations) + feed.Undecodable,
		Skipped:  feed.Undecodable,
		SyncedAt: d.now(),
	}

	for _, s := range feed.Stations {
		station := stationFromFeed(s, result.SyncedAt)
		if station.Code == "" {
			result.Skipped++
			continue
		}
		if err := d.store.UpsertStation(ctx, &station); err != nil {
			return nil, err
		}
		result.Upserted++
	}

	d.cache.Flush()

	d.logger.WithFields(logrus.Fields{
		"received":    result.Received,
		"upserted":    result.Upserted,
		"skipped":     result.Skipped,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Station sync completed")

	return result, nil
}

func stationFromFeed(s ns.Station, syncedAt time.Time) models.Station {
	station := models.Station{
		Code:       strings.ToUpper(strings.TrimSpace(s.ID.Code)),
		UICCode:    s.ID.UICCode.String(),
		NameLong:   s.Names.Long,
		NameMedium: s.Names.Medium,
		NameShort:  s.Names.Short,
		Synonyms:   models.StringArray(s.Synonyms),
		Country:    s.Country,
		SyncedAt:   syncedAt,
	}
	if s.Location != nil {
		lat, lng := s.Location.Lat, s.Location.Lng
		station.Lat = &lat
		station.Lng = &lng
	}
	return station
}
