package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/commutewatch/backend/internal/database"
	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type fakeFeed struct {
	mu          sync.Mutex
	disruptions []ns.Disruption
	err         error
	calls       int
}

func (f *fakeFeed) FetchDisruptions(ctx context.Context) ([]ns.Disruption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]ns.Disruption, len(f.disruptions))
	copy(out, f.disruptions)
	return out, nil
}

func (f *fakeFeed) set(disruptions ...ns.Disruption) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disruptions = disruptions
	f.err = nil
}

type fakeRoutes struct {
	routes map[uuid.UUID]*models.RouteWithStations
	order  []uuid.UUID
	err    error
}

func newFakeRoutes() *fakeRoutes {
	return &fakeRoutes{routes: map[uuid.UUID]*models.RouteWithStations{}}
}

func (f *fakeRoutes) add(name string, codes ...string) uuid.UUID {
	id := uuid.New()
	route := &models.RouteWithStations{Route: models.RouteDefinition{ID: id, Name: name}}
	for i, code := range codes {
		route.Stations = append(route.Stations, models.RouteStation{RouteID: id, StationCode: code, Order: i})
	}
	f.routes[id] = route
	f.order = append(f.order, id)
	return id
}

func (f *fakeRoutes) GetRouteInternal(ctx context.Context, routeID uuid.UUID) (*models.RouteWithStations, error) {
	route, ok := f.routes[routeID]
	if !ok {
		return nil, database.ErrRouteNotFound
	}
	return route, nil
}

func (f *fakeRoutes) ListRouteIDs(ctx context.Context) ([]uuid.UUID, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]uuid.UUID(nil), f.order...), nil
}

type disruptionKey struct {
	routeID    uuid.UUID
	externalID string
}

// fakeDisruptionStore behaves like the disruptions table with its
// (route_id, external_id) unique key
type fakeDisruptionStore struct {
	mu        sync.Mutex
	rows      map[disruptionKey]models.Disruption
	failRoute uuid.UUID
}

func newFakeDisruptionStore() *fakeDisruptionStore {
	return &fakeDisruptionStore{rows: map[disruptionKey]models.Disruption{}}
}

func (f *fakeDisruptionStore) UpsertDisruption(ctx context.Context, d *models.Disruption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.RouteID == f.failRoute {
		return errors.New("connection reset")
	}
	key := disruptionKey{d.RouteID, d.ExternalID}
	if existing, ok := f.rows[key]; ok {
		d.ID = existing.ID
		d.CreatedAt = existing.CreatedAt
	} else {
		if d.ID == uuid.Nil {
			d.ID = uuid.New()
		}
		d.CreatedAt = d.LastSeen
	}
	d.UpdatedAt = d.LastSeen
	f.rows[key] = *d
	return nil
}

func (f *fakeDisruptionStore) ListByRoute(ctx context.Context, routeID uuid.UUID, activeOnly bool) ([]models.Disruption, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Disruption{}
	for key, d := range f.rows {
		if key.routeID != routeID || (activeOnly && !d.IsActive) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (f *fakeDisruptionStore) MarkOldDisruptionsInactive(ctx context.Context, routeID uuid.UUID, activeIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := map[string]bool{}
	for _, id := range activeIDs {
		keep[id] = true
	}
	var affected int64
	for key, d := range f.rows {
		if key.routeID != routeID || !d.IsActive || keep[key.externalID] {
			continue
		}
		d.IsActive = false
		f.rows[key] = d
		affected++
	}
	return affected, nil
}

func (f *fakeDisruptionStore) HasActiveDisruptions(ctx context.Context, routeID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, d := range f.rows {
		if key.routeID == routeID && d.IsActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDisruptionStore) get(routeID uuid.UUID, externalID string) (models.Disruption, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[disruptionKey{routeID, externalID}]
	return d, ok
}

func (f *fakeDisruptionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// fakeStatusStore keeps the changed flag sticky until it is cleared, like the
// route_statuses upsert does
type fakeStatusStore struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]models.RouteStatus
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{statuses: map[uuid.UUID]models.RouteStatus{}}
}

func (f *fakeStatusStore) UpdateRouteStatus(ctx context.Context, routeID uuid.UUID, checkedAt time.Time, hasActive, changed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	previous := f.statuses[routeID]
	f.statuses[routeID] = models.RouteStatus{
		RouteID:              routeID,
		LastCheckedAt:        checkedAt,
		HasActiveDisruptions: hasActive,
		ChangedSinceLastView: previous.ChangedSinceLastView || changed,
	}
	return nil
}

func (f *fakeStatusStore) GetRouteStatus(ctx context.Context, routeID uuid.UUID) (*models.RouteStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[routeID]
	if !ok {
		return nil, database.ErrRouteStatusNotFound
	}
	return &status, nil
}

func (f *fakeStatusStore) ClearChangedSinceLastView(ctx context.Context, routeID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.statuses[routeID]
	if !ok {
		return nil
	}
	status.ChangedSinceLastView = false
	f.statuses[routeID] = status
	return nil
}
