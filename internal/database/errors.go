package database

import "errors"

var (
	// ErrRouteNotFound is returned when a route does not exist
	ErrRouteNotFound = errors.New("route not found")

	// ErrStationNotFound is returned when a station is not in the directory
	ErrStationNotFound = errors.New("station not found")

	// ErrRouteStatusNotFound is returned when a route has never been checked
	ErrRouteStatusNotFound = errors.New("route status not found")
)
