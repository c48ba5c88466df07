package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DisruptionFeed is the source of currently active disruptions
type DisruptionFeed interface {
	FetchDisruptions(ctx context.Context) ([]ns.Disruption, error)
}

// RouteReader reads monitored routes
type RouteReader interface {
	GetRouteInternal(ctx context.Context, routeID uuid.UUID) (*models.RouteWithStations, error)
	ListRouteIDs(ctx context.Context) ([]uuid.UUID, error)
}

// DisruptionStore persists disruptions per route
type DisruptionStore interface {
	UpsertDisruption(ctx context.Context, d *models.Disruption) error
	ListByRoute(ctx context.Context, routeID uuid.UUID, activeOnly bool) ([]models.Disruption, error)
	MarkOldDisruptionsInactive(ctx context.Context, routeID uuid.UUID, activeIDs []string) (int64, error)
	HasActiveDisruptions(ctx context.Context, routeID uuid.UUID) (bool, error)
}

// RouteStatusStore persists the badge status of routes
type RouteStatusStore interface {
	UpdateRouteStatus(ctx context.Context, routeID uuid.UUID, checkedAt time.Time, hasActive, changed bool) error
	GetRouteStatus(ctx context.Context, routeID uuid.UUID) (*models.RouteStatus, error)
	ClearChangedSinceLastView(ctx context.Context, routeID uuid.UUID) error
}

// ReconcilePlan describes the writes that bring a route's stored disruptions in
// line with a feed snapshot
type ReconcilePlan struct {
	Upserts        []models.Disruption
	ActiveIDs      []string
	Created        []string
	Reactivated    []string
	ContentChanged []string
	Deactivated    []string
}

// Changed reports whether the plan makes a difference the user should notice
func (p *ReconcilePlan) Changed() bool {
	return len(p.Created) > 0 || len(p.Reactivated) > 0 ||
		len(p.ContentChanged) > 0 || len(p.Deactivated) > 0
}

// Reconcile computes the writes for one route from the matched feed disruptions and
// the disruptions already stored for it. It does not touch any state.
func Reconcile(routeID uuid.UUID, matched map[string]MatchedDisruption, existing []models.Disruption, now time.Time) ReconcilePlan {
	stored := make(map[string]models.Disruption, len(existing))
	for _, d := range existing {
		stored[d.ExternalID] = d
	}

	ids := make([]string, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	plan := ReconcilePlan{
		Upserts:   make([]models.Disruption, 0, len(ids)),
		ActiveIDs: ids,
	}

	for _, id := range ids {
		m := matched[id]
		period := ExtractPeriod(m.Disruption)
		advice := m.Disruption.Advice()

		record := models.Disruption{
			RouteID:          routeID,
			ExternalID:       id,
			Type:             m.Disruption.Type,
			Title:            m.Disruption.Title,
			Description:      m.Disruption.Description,
			Period:           period,
			Advice:           advice,
			AffectedStations: models.StringArray(m.AffectedStations),
			LastSeen:         now,
			ContentHash:      Fingerprint(m.Disruption.Type, m.Disruption.Title, period, advice),
			IsActive:         true,
		}

		previous, known := stored[id]
		switch {
		case !known:
			plan.Created = append(plan.Created, id)
		case !previous.IsActive:
			record.ID = previous.ID
			plan.Reactivated = append(plan.Reactivated, id)
		default:
			record.ID = previous.ID
			if previous.ContentHash != record.ContentHash {
				plan.ContentChanged = append(plan.ContentChanged, id)
			}
		}
		plan.Upserts = append(plan.Upserts, record)
	}

	for _, d := range existing {
		if _, current := matched[d.ExternalID]; !current && d.IsActive {
			plan.Deactivated = append(plan.Deactivated, d.ExternalID)
		}
	}
	sort.Strings(plan.Deactivated)

	return plan
}

// SyncResult is the outcome of one route's sync cycle
type SyncResult struct {
	RouteID              uuid.UUID `json:"route_id"`
	RouteName            string    `json:"route_name"`
	Matched              int       `json:"matched"`
	Created              int       `json:"created"`
	Reactivated          int       `json:"reactivated"`
	ContentChanged       int       `json:"content_changed"`
	Deactivated          int       `json:"deactivated"`
	Changed              bool      `json:"changed"`
	HasActiveDisruptions bool      `json:"has_active_disruptions"`
	CheckedAt            time.Time `json:"checked_at"`
}

// SyncSummary is the outcome of syncing every route against one feed snapshot
type SyncSummary struct {
	Routes    int               `json:"routes"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []SyncResult      `json:"results"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// DisruptionSyncService keeps stored disruptions and route statuses in line with
// the disruptions feed
type DisruptionSyncService struct {
	feed        DisruptionFeed
	routes      RouteReader
	disruptions DisruptionStore
	statuses    RouteStatusStore
	concurrency int
	logger      *logrus.Logger
	now         func() time.Time
}

// NewDisruptionSyncService creates a new DisruptionSyncService
func NewDisruptionSyncService(
	feed DisruptionFeed,
	routes RouteReader,
	disruptions DisruptionStore,
	statuses RouteStatusStore,
	concurrency int,
	logger *logrus.Logger,
) *DisruptionSyncService {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &DisruptionSyncService{
		feed:        feed,
		routes:      routes,
		disruptions: disruptions,
		statuses:    statuses,
		concurrency: concurrency,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SyncRoute runs one sync cycle for a route: fetch, match, reconcile, update status.
// A feed failure aborts the cycle before anything is written.
func (s *DisruptionSyncService) SyncRoute(ctx context.Context, routeID uuid.UUID) (*SyncResult, error) {
	route, err := s.routes.GetRouteInternal(ctx, routeID)
	if err != nil {
		return nil, err
	}

	feed, err := s.feed.FetchDisruptions(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("route_id", routeID).Warn("Disruption feed unavailable, sync aborted")
		return nil, fmt.Errorf("failed to fetch disruptions: %w", err)
	}

	return s.syncRouteWithFeed(ctx, route, feed)
}

// SyncAllRoutes fetches the feed once and reconciles every route against it in
// parallel. A failing route is reported in the summary and does not stop the others.
func (s *DisruptionSyncService) SyncAllRoutes(ctx context.Context) (*SyncSummary, error) {
	startTime := time.Now()

	routeIDs, err := s.routes.ListRouteIDs(ctx)
	if err != nil {
		return nil, err
	}

	summary := &SyncSummary{
		Routes:  len(routeIDs),
		Results: []SyncResult{},
		Errors:  map[string]string{},
	}
	if len(routeIDs) == 0 {
		return summary, nil
	}

	feed, err := s.feed.FetchDisruptions(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Disruption feed unavailable, sync of all routes aborted")
		return nil, fmt.Errorf("failed to fetch disruptions: %w", err)
	}

	results := make([]*SyncResult, len(routeIDs))
	failures := make([]error, len(routeIDs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, routeID := range routeIDs {
		i, routeID := i, routeID
		g.Go(func() error {
			route, err := s.routes.GetRouteInternal(ctx, routeID)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i], failures[i] = s.syncRouteWithFeed(ctx, route, feed)
			return nil
		})
	}
	_ = g.Wait()

	for i, routeID := range routeIDs {
		if failures[i] != nil {
			summary.Failed++
			summary.Errors[routeID.String()] = failures[i].Error()
			s.logger.WithError(failures[i]).WithField("route_id", routeID).Error("Route sync failed")
			continue
		}
		summary.Succeeded++
		summary.Results = append(summary.Results, *results[i])
	}

	s.logger.WithFields(logrus.Fields{
		"routes":      summary.Routes,
		"succeeded":   summary.Succeeded,
		"failed":      summary.Failed,
		"feed_size":   len(feed),
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Info("Disruption sync completed")

	return summary, nil
}

// syncRouteWithFeed reconciles one route against a feed snapshot and updates its status.
// Every write is an idempotent upsert, so an interrupted cycle is repaired by running
// it again from the start.
func (s *DisruptionSyncService) syncRouteWithFeed(ctx context.Context, route *models.RouteWithStations, feed []ns.Disruption) (*SyncResult, error) {
	routeID := route.Route.ID
	now := s.now()

	matched := MatchDisruptions(feed, route.StationCodes())

	existing, err := s.disruptions.ListByRoute(ctx, routeID, false)
	if err != nil {
		return nil, err
	}

	plan := Reconcile(routeID, matched, existing, now)

	for i := range plan.Upserts {
		if err := s.disruptions.UpsertDisruption(ctx, &plan.Upserts[i]); err != nil {
			return nil, err
		}
	}

	if _, err := s.disruptions.MarkOldDisruptionsInactive(ctx, routeID, plan.ActiveIDs); err != nil {
		return nil, err
	}

	hasActive, err := s.disruptions.HasActiveDisruptions(ctx, routeID)
	if err != nil {
		return nil, err
	}

	if err := s.statuses.UpdateRouteStatus(ctx, routeID, now, hasActive, plan.Changed()); err != nil {
		return nil, err
	}

	result := &SyncResult{
		RouteID:              routeID,
		RouteName:            route.Route.Name,
		Matched:              len(matched),
		Created:              len(plan.Created),
		Reactivated:          len(plan.Reactivated),
		ContentChanged:       len(plan.ContentChanged),
		Deactivated:          len(plan.Deactivated),
		Changed:              plan.Changed(),
		HasActiveDisruptions: hasActive,
		CheckedAt:            now,
	}

	s.logger.WithFields(logrus.Fields{
		"route_id":        routeID,
		"matched":         result.Matched,
		"created":         result.Created,
		"reactivated":     result.Reactivated,
		"content_changed": result.ContentChanged,
		"deactivated":     result.Deactivated,
		"changed":         result.Changed,
	}).Info("Route disruptions synchronized")

	return result, nil
}

// GetRouteStatus returns the badge status of a route
func (s *DisruptionSyncService) GetRouteStatus(ctx context.Context, routeID uuid.UUID) (*models.RouteStatus, error) {
	return s.statuses.GetRouteStatus(ctx, routeID)
}

// ListRouteDisruptions returns the disruptions recorded for a route
func (s *DisruptionSyncService) ListRouteDisruptions(ctx context.Context, routeID uuid.UUID, activeOnly bool) ([]models.Disruption, error) {
	if _, err := s.routes.GetRouteInternal(ctx, routeID); err != nil {
		return nil, err
	}
	return s.disruptions.ListByRoute(ctx, routeID, activeOnly)
}

// MarkRouteViewed clears the route's changed flag after the user looked at it
func (s *DisruptionSyncService) MarkRouteViewed(ctx context.Context, routeID uuid.UUID) error {
	if _, err := s.routes.GetRouteInternal(ctx, routeID); err != nil {
		return err
	}
	return s.statuses.ClearChangedSinceLastView(ctx, routeID)
}
