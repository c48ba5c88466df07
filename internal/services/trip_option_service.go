package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/commutewatch/backend/internal/models"
	"github.com/commutewatch/backend/pkg/ns"
	"github.com/sirupsen/logrus"
)

const (
	// MaxRouteOptions is the number of route options returned for one search
	MaxRouteOptions = 5

	// maxViaStations is the number of interior station names shown for a route option
	maxViaStations = 3

	// DirectRoute is shown when a route option has no interior stations
	DirectRoute = "Direct"
)

// TripFeed is the source of candidate trips between two stations
type TripFeed interface {
	SearchTrips(ctx context.Context, fromStation, toStation string) ([]ns.Trip, error)
}

// StationResolver resolves UIC codes to known stations
type StationResolver interface {
	ResolveUICCodes(ctx context.Context, uicCodes []string) (map[string]models.Station, error)
}

// TripOptionService turns trip search results into display-ready route options
type TripOptionService struct {
	trips    TripFeed
	stations StationResolver
	logger   *logrus.Logger
}

// NewTripOptionService creates a new TripOptionService
func NewTripOptionService(trips TripFeed, stations StationResolver, logger *logrus.Logger) *TripOptionService {
	return &TripOptionService{
		trips:    trips,
		stations: stations,
		logger:   logger,
	}
}

// SearchRouteOptions searches trips between two station codes and resolves them
// into at most MaxRouteOptions distinct route options
func (s *TripOptionService) SearchRouteOptions(ctx context.Context, fromStation, toStation string) ([]models.RouteOption, error) {
	trips, err := s.trips.SearchTrips(ctx, fromStation, toStation)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	lookup, err := s.stations.ResolveUICCodes(ctx, CollectUICCodes(trips))
	if err != nil {
		return nil, err
	}

	options := ResolveTripOptions(trips, lookup)

	s.logger.WithFields(logrus.Fields{
		"from":    fromStation,
		"to":      toStation,
		"trips":   len(trips),
		"options": len(options),
	}).Info("Route options resolved")

	return options, nil
}

// CollectUICCodes returns every distinct UIC code referenced by the trips, in the
// order they are first seen
func CollectUICCodes(trips []ns.Trip) []string {
	seen := make(map[string]struct{})
	var codes []string
	add := func(stop ns.Stop) {
		code := stop.UICCode.String()
		if code == "" {
			return
		}
		if _, ok := seen[code]; ok {
			return
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	for _, trip := range trips {
		for _, leg := range trip.Legs {
			add(leg.Origin)
			for _, stop := range leg.Stops {
				add(stop)
			}
			add(leg.Destination)
		}
	}
	return codes
}

// ResolveTripOptions builds route options from trips using a UIC code lookup.
// Trips keep feed order; trips that reduce to fewer than two stations or that
// repeat an earlier trip's station sequence are dropped.
func ResolveTripOptions(trips []ns.Trip, lookup map[string]models.Station) []models.RouteOption {
	options := []models.RouteOption{}
	signatures := make(map[string]struct{})

	for _, trip := range trips {
		if len(options) >= MaxRouteOptions {
			break
		}

		stations := tripStations(trip, lookup)
		if len(stations) < 2 {
			continue
		}

		option := models.RouteOption{
			UID:               trip.UID,
			DurationInMinutes: trip.PlannedDurationInMinutes,
			Transfers:         trip.Transfers,
			Stations:          stations,
			ViaStations:       viaStations(stations),
		}

		signature := option.Signature()
		if _, dup := signatures[signature]; dup {
			continue
		}
		signatures[signature] = struct{}{}
		options = append(options, option)
	}
	return options
}

// tripStations walks the public transit legs of a trip and returns its stations
// in travel order, each at most once
func tripStations(trip ns.Trip, lookup map[string]models.Station) []models.RouteOptionStation {
	var stations []models.RouteOptionStation
	seen := make(map[string]struct{})

	add := func(stop ns.Stop) {
		station, ok := resolveStop(stop, lookup)
		if !ok {
			return
		}
		if _, dup := seen[station.Code]; dup {
			return
		}
		seen[station.Code] = struct{}{}
		stations = append(stations, station)
	}

	for _, leg := range trip.Legs {
		if leg.TravelType != ns.TravelTypePublicTransit {
			continue
		}
		add(leg.Origin)
		for _, stop := range leg.Stops {
			add(stop)
		}
		add(leg.Destination)
	}
	return stations
}

// resolveStop prefers the UIC code lookup. A station code is only trusted when it
// is not purely numeric; numeric codes are placeholders.
func resolveStop(stop ns.Stop, lookup map[string]models.Station) (models.RouteOptionStation, bool) {
	if station, ok := lookup[stop.UICCode.String()]; ok && station.Code != "" {
		return models.RouteOptionStation{Code: station.Code, Name: station.DisplayName()}, true
	}

	code := strings.TrimSpace(stop.StationCode.String())
	if code == "" || stop.StationCode.IsNumeric() {
		return models.RouteOptionStation{}, false
	}
	code = strings.ToUpper(code)

	name := stop.Name
	if name == "" {
		name = code
	}
	return models.RouteOptionStation{Code: code, Name: name}, true
}

// viaStations summarizes the interior stations of a route option
func viaStations(stations []models.RouteOptionStation) string {
	if len(stations) <= 2 {
		return DirectRoute
	}
	interior := stations[1 : len(stations)-1]

	var names []string
	if len(interior) <= maxViaStations {
		for _, s := range interior {
			names = append(names, s.Name)
		}
	} else {
		last := len(interior) - 1
		for i := 0; i < maxViaStations; i++ {
			names = append(names, interior[i*last/(maxViaStations-1)].Name)
		}
	}
	return strings.Join(names, ", ")
}
