package ns

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// TravelTypePublicTransit marks a trip leg travelled by train, bus, tram or metro
const TravelTypePublicTransit = "PUBLIC_TRANSIT"

// DefaultDisruptionType is used when the feed omits a disruption's type
const DefaultDisruptionType = "DISRUPTION"

// FlexString decodes a JSON string or number into a string.
// The feed is not consistent about the type of station identifiers.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the plain string value
func (f FlexString) String() string {
	return string(f)
}

// IsNumeric reports whether the value consists only of digits
func (f FlexString) IsNumeric() bool {
	if f == "" {
		return false
	}
	_, err := strconv.ParseUint(string(f), 10, 64)
	return err == nil
}

// Disruption is one entry of the disruptions feed
type Disruption struct {
	ID                  string               `json:"id"`
	Type                string               `json:"type"`
	Title               string               `json:"title"`
	Description         string               `json:"description"`
	Timespans           []Timespan           `json:"timespans"`
	ExpectedDuration    ExpectedDuration     `json:"expectedDuration"`
	Phase               Phase                `json:"phase"`
	PublicationSections []PublicationSection `json:"publicationSections"`
}

// Timespan is a period in which a disruption applies
type Timespan struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ExpectedDuration carries the travel advice for a disruption
type ExpectedDuration struct {
	Description string `json:"description"`
}

// Phase is the lifecycle phase of a disruption as labelled by the operator
type Phase struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PublicationSection groups the stations a disruption is published for
type PublicationSection struct {
	Section Section `json:"section"`
}

// Section is a stretch of the network
type Section struct {
	Stations []SectionStation `json:"stations"`
}

// SectionStation is a station listed in a publication section
type SectionStation struct {
	UICCode     FlexString `json:"uicCode"`
	StationCode string     `json:"stationCode"`
	Name        string     `json:"name"`
}

// Normalize fills defaults for optional fields
func (d *Disruption) Normalize() {
	if d.Type == "" {
		d.Type = DefaultDisruptionType
	}
}

// Advice returns the travel advice, or an empty string when there is none
func (d *Disruption) Advice() string {
	return d.ExpectedDuration.Description
}

// StationCodes returns every station code in the publication sections in feed order,
// including duplicates
func (d *Disruption) StationCodes() []string {
	var codes []string
	for _, ps := range d.PublicationSections {
		for _, s := range ps.Section.Stations {
			if s.StationCode != "" {
				codes = append(codes, s.StationCode)
			}
		}
	}
	return codes
}

// TripsResponse is the payload of the trip-search endpoint. Trips are decoded one by
// one so a single malformed trip does not fail the search.
type TripsResponse struct {
	Trips []json.RawMessage `json:"trips"`
}

// Trip is a candidate journey between two stations
type Trip struct {
	UID                      string `json:"uid"`
	PlannedDurationInMinutes int    `json:"plannedDurationInMinutes"`
	Transfers                int    `json:"transfers"`
	Legs                     []Leg  `json:"legs"`
}

// Leg is one part of a trip
type Leg struct {
	TravelType  string `json:"travelType"`
	Origin      Stop   `json:"origin"`
	Destination Stop   `json:"destination"`
	Stops       []Stop `json:"stops"`
}

// Stop is a station reference inside a trip leg
type Stop struct {
	UICCode     FlexString `json:"uicCode"`
	StationCode FlexString `json:"stationCode"`
	Name        string     `json:"name"`
}

// StationsResponse is the payload of the stations endpoint
type StationsResponse struct {
	Payload []json.RawMessage `json:"payload"`
}

// StationList is the decoded station feed. Undecodable counts the entries that were
// dropped because they could not be parsed.
type StationList struct {
	Stations    []Station
	Undecodable int
}

// Station is an entry of the stations feed
type Station struct {
	ID struct {
		UICCode FlexString `json:"uicCode"`
		Code    string     `json:"code"`
	} `json:"id"`
	Names struct {
		Long   string `json:"long"`
		Medium string `json:"medium"`
		Short  string `json:"short"`
	} `json:"names"`
	Synonyms []string  `json:"synonyms"`
	Location *Location `json:"location"`
	Country  string    `json:"country"`
}

// Location is a WGS84 coordinate
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
