package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/commutewatch/backend/internal/database"
	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	service     *DisruptionSyncService
	feed        *fakeFeed
	routes      *fakeRoutes
	disruptions *fakeDisruptionStore
	statuses    *fakeStatusStore
	clock       time.Time
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		feed:        &fakeFeed{},
		routes:      newFakeRoutes(),
		disruptions: newFakeDisruptionStore(),
		statuses:    newFakeStatusStore(),
		clock:       time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
	}
	f.service = NewDisruptionSyncService(f.feed, f.routes, f.disruptions, f.statuses, 2, quietLogger())
	f.service.now = func() time.Time { return f.clock }
	return f
}

func (f *syncFixture) tick() {
	f.clock = f.clock.Add(5 * time.Minute)
}

func trackWork() ns.Disruption {
	return ns.Disruption{
		ID:    "d1",
		Type:  "MAINTENANCE",
		Title: "Track work",
		PublicationSections: []ns.PublicationSection{
			{Section: ns.Section{Stations: []ns.SectionStation{{StationCode: "ASD"}}}},
		},
		Timespans: []ns.Timespan{{Start: "2024-01-01T08:00Z", End: "2024-01-01T10:00Z"}},
	}
}

func TestSyncRoute_EndToEnd(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute to Utrecht", "GVC", "ASD", "UT")
	f.feed.set(trackWork())

	result, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Created)
	assert.True(t, result.Changed)

	stored, ok := f.disruptions.get(routeID, "d1")
	require.True(t, ok)
	assert.True(t, stored.IsActive)
	assert.Equal(t, models.StringArray{"ASD"}, stored.AffectedStations)
	assert.Equal(t, "01-01-2024 08:00 – 01-01-2024 10:00", stored.Period)

	status, err := f.service.GetRouteStatus(ctx, routeID)
	require.NoError(t, err)
	assert.True(t, status.HasActiveDisruptions)
	assert.True(t, status.ChangedSinceLastView)

	// viewer clears the flag, an unchanged feed must not set it again
	require.NoError(t, f.service.MarkRouteViewed(ctx, routeID))
	f.tick()

	result, err = f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	assert.False(t, result.Changed)

	again, _ := f.disruptions.get(routeID, "d1")
	assert.True(t, again.IsActive)
	assert.Equal(t, stored.ContentHash, again.ContentHash)

	status, err = f.service.GetRouteStatus(ctx, routeID)
	require.NoError(t, err)
	assert.True(t, status.HasActiveDisruptions)
	assert.False(t, status.ChangedSinceLastView)
	assert.Equal(t, f.clock, status.LastCheckedAt)
}

func TestSyncRoute_ConcurrentSyncsOfSameRouteConverge(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute to Utrecht", "GVC", "ASD", "UT")

	signalFailure := trackWork()
	signalFailure.ID = "d2"
	signalFailure.Type = "DISRUPTION"
	signalFailure.Title = "Signal failure"
	signalFailure.PublicationSections = []ns.PublicationSection{
		{Section: ns.Section{Stations: []ns.SectionStation{{StationCode: "UT"}}}},
	}
	f.feed.set(trackWork(), signalFailure)

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.SyncRoute(ctx, routeID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 2, f.disruptions.count())
	for _, externalID := range []string{"d1", "d2"} {
		d, ok := f.disruptions.get(routeID, externalID)
		require.True(t, ok, externalID)
		assert.True(t, d.IsActive, externalID)
	}

	status, err := f.service.GetRouteStatus(ctx, routeID)
	require.NoError(t, err)
	assert.True(t, status.HasActiveDisruptions)
	assert.True(t, status.ChangedSinceLastView)
}

func TestSyncRoute_Idempotent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute", "GVC", "ASD", "UT")
	f.feed.set(trackWork(), feedDisruption("d2", "UT"))

	_, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	first, _ := f.disruptions.get(routeID, "d1")

	f.tick()
	_, err = f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	second, _ := f.disruptions.get(routeID, "d1")

	assert.Equal(t, 2, f.disruptions.count())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.True(t, second.LastSeen.After(first.LastSeen))

	second.LastSeen, second.UpdatedAt = first.LastSeen, first.UpdatedAt
	assert.Equal(t, first, second)
}

func TestSyncRoute_DisappearanceAndReappearance(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute", "GVC", "ASD", "UT")

	f.feed.set(trackWork())
	_, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	original, _ := f.disruptions.get(routeID, "d1")
	require.NoError(t, f.service.MarkRouteViewed(ctx, routeID))

	// cycle N+1: gone from the feed
	f.tick()
	f.feed.set()
	result, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deactivated)

	gone, ok := f.disruptions.get(routeID, "d1")
	require.True(t, ok, "deactivated disruptions are kept")
	assert.False(t, gone.IsActive)
	assert.Equal(t, original.Title, gone.Title)

	status, _ := f.service.GetRouteStatus(ctx, routeID)
	assert.False(t, status.HasActiveDisruptions)
	assert.True(t, status.ChangedSinceLastView)

	// cycle N+2: back again under the same key
	require.NoError(t, f.service.MarkRouteViewed(ctx, routeID))
	f.tick()
	f.feed.set(trackWork())
	result, err = f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Reactivated)
	assert.Equal(t, 0, result.Created)

	back, _ := f.disruptions.get(routeID, "d1")
	assert.True(t, back.IsActive)
	assert.Equal(t, original.ID, back.ID)
	assert.Equal(t, 1, f.disruptions.count())

	status, _ = f.service.GetRouteStatus(ctx, routeID)
	assert.True(t, status.HasActiveDisruptions)
	assert.True(t, status.ChangedSinceLastView)
}

func TestSyncRoute_FiltersUnrelatedDisruptions(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute", "GVC", "ASD", "UT")
	f.feed.set(feedDisruption("elsewhere", "RTD", "DT"))

	result, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.disruptions.count())
	assert.False(t, result.Changed)
	assert.False(t, result.HasActiveDisruptions)

	status, err := f.service.GetRouteStatus(ctx, routeID)
	require.NoError(t, err)
	assert.False(t, status.ChangedSinceLastView)
}

func TestSyncRoute_ContentChangeSetsChanged(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute", "GVC", "ASD", "UT")

	f.feed.set(trackWork())
	_, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	before, _ := f.disruptions.get(routeID, "d1")
	require.NoError(t, f.service.MarkRouteViewed(ctx, routeID))

	reworded := trackWork()
	reworded.ExpectedDuration.Description = "Take the bus between Amsterdam and Utrecht"
	f.feed.set(reworded)
	f.tick()

	result, err := f.service.SyncRoute(ctx, routeID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ContentChanged)

	after, _ := f.disruptions.get(routeID, "d1")
	assert.NotEqual(t, before.ContentHash, after.ContentHash)
	assert.Equal(t, "Take the bus between Amsterdam and Utrecht", after.Advice)

	status, _ := f.service.GetRouteStatus(ctx, routeID)
	assert.True(t, status.ChangedSinceLastView)
}

func TestSyncRoute_FeedFailureWritesNothing(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	routeID := f.routes.add("Commute", "GVC", "ASD", "UT")
	f.feed.err = &ns.FeedError{Endpoint: "disruptions", StatusCode: 503}

	result, err := f.service.SyncRoute(ctx, routeID)
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ns.ErrFeedUnavailable))

	assert.Equal(t, 0, f.disruptions.count())
	_, err = f.service.GetRouteStatus(ctx, routeID)
	assert.ErrorIs(t, err, database.ErrRouteStatusNotFound)
}

func TestSyncRoute_UnknownRoute(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.service.SyncRoute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, database.ErrRouteNotFound)
	assert.Equal(t, 0, f.feed.calls)
}

func TestSyncAllRoutes_FetchesOnceAndIsolatesFailures(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	utrecht := f.routes.add("To Utrecht", "GVC", "ASD", "UT")
	rotterdam := f.routes.add("To Rotterdam", "GVC", "DT", "RTD")
	broken := f.routes.add("Broken", "ASD", "AMF")
	f.disruptions.failRoute = broken
	f.feed.set(trackWork(), feedDisruption("d2", "RTD"))

	summary, err := f.service.SyncAllRoutes(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.feed.calls)
	assert.Equal(t, 3, summary.Routes)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Errors, broken.String())

	_, ok := f.disruptions.get(utrecht, "d1")
	assert.True(t, ok)
	_, ok = f.disruptions.get(rotterdam, "d2")
	assert.True(t, ok)
	_, ok = f.disruptions.get(rotterdam, "d1")
	assert.False(t, ok)
}

func TestSyncAllRoutes_FeedFailure(t *testing.T) {
	f := newSyncFixture(t)
	f.routes.add("Commute", "GVC", "ASD")
	f.feed.err = fmt.Errorf("wrapped: %w", ns.ErrFeedUnavailable)

	summary, err := f.service.SyncAllRoutes(context.Background())
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, ns.ErrFeedUnavailable)
	assert.Equal(t, 0, f.disruptions.count())
}

func TestSyncAllRoutes_NoRoutesSkipsFeed(t *testing.T) {
	f := newSyncFixture(t)

	summary, err := f.service.SyncAllRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Routes)
	assert.Equal(t, 0, f.feed.calls)
}

func TestReconcile_ClassifiesChanges(t *testing.T) {
	routeID := uuid.New()
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	unchanged := MatchDisruptions([]ns.Disruption{trackWork()}, []string{"ASD"})["d1"]
	period := ExtractPeriod(unchanged.Disruption)
	existing := []models.Disruption{
		{ID: uuid.New(), RouteID: routeID, ExternalID: "d1", IsActive: true,
			ContentHash: Fingerprint("MAINTENANCE", "Track work", period, "")},
		{ID: uuid.New(), RouteID: routeID, ExternalID: "d2", IsActive: true, ContentHash: "stale"},
		{ID: uuid.New(), RouteID: routeID, ExternalID: "d3", IsActive: false},
		{ID: uuid.New(), RouteID: routeID, ExternalID: "old", IsActive: true},
		{ID: uuid.New(), RouteID: routeID, ExternalID: "older", IsActive: false},
	}
	matched := map[string]MatchedDisruption{
		"d1":  unchanged,
		"d2":  {Disruption: feedDisruption("d2", "ASD"), AffectedStations: []string{"ASD"}},
		"d3":  {Disruption: feedDisruption("d3", "ASD"), AffectedStations: []string{"ASD"}},
		"new": {Disruption: feedDisruption("new", "ASD"), AffectedStations: []string{"ASD"}},
	}

	plan := Reconcile(routeID, matched, existing, now)

	assert.Equal(t, []string{"d1", "d2", "d3", "new"}, plan.ActiveIDs)
	assert.Equal(t, []string{"new"}, plan.Created)
	assert.Equal(t, []string{"d3"}, plan.Reactivated)
	assert.Equal(t, []string{"d2"}, plan.ContentChanged)
	assert.Equal(t, []string{"old"}, plan.Deactivated)
	assert.True(t, plan.Changed())

	require.Len(t, plan.Upserts, 4)
	assert.Equal(t, existing[0].ID, plan.Upserts[0].ID)
	assert.Equal(t, uuid.Nil, plan.Upserts[3].ID)
	for _, u := range plan.Upserts {
		assert.True(t, u.IsActive)
		assert.Equal(t, now, u.LastSeen)
		assert.Equal(t, routeID, u.RouteID)
	}
}

func TestReconcile_NothingChanged(t *testing.T) {
	routeID := uuid.New()
	plan := Reconcile(routeID, map[string]MatchedDisruption{}, []models.Disruption{
		{ExternalID: "gone", IsActive: false},
	}, time.Now())

	assert.Empty(t, plan.Upserts)
	assert.Empty(t, plan.ActiveIDs)
	assert.False(t, plan.Changed())
}
