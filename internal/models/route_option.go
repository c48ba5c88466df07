package models

import "strings"

// RouteOptionStation is a resolved station on a route option
type RouteOptionStation struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RouteOption is a deduplicated, display-ready journey between two stations
type RouteOption struct {
	UID               string               `json:"uid"`
	DurationInMinutes int                  `json:"duration_in_minutes"`
	Transfers         int                  `json:"transfers"`
	Stations          []RouteOptionStation `json:"stations"`
	ViaStations       string               `json:"via_stations"`
}

// Signature returns the ordered station codes joined by a delimiter.
// Two options with the same signature travel the same path.
func (o *RouteOption) Signature() string {
	codes := make([]string, 0, len(o.Stations))
	for _, s := range o.Stations {
		codes = append(codes, s.Code)
	}
	return strings.Join(codes, "->")
}
