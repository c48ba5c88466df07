package models

import (
	"time"

	"github.com/google/uuid"
)

// Station is a transit station known to the station directory
type Station struct {
	ID         uuid.UUID   `json:"id" db:"id"`
	Code       string      `json:"code" db:"code"`         // Short identifier, e.g. "ASD"
	UICCode    string      `json:"uic_code" db:"uic_code"` // Numeric identifier used in trip results
	NameLong   string      `json:"name_long" db:"name_long"`
	NameMedium string      `json:"name_medium" db:"name_medium"`
	NameShort  string      `json:"name_short" db:"name_short"`
	Synonyms   StringArray `json:"synonyms" db:"synonyms"`
	Lat        *float64    `json:"lat,omitempty" db:"lat"`
	Lng        *float64    `json:"lng,omitempty" db:"lng"`
	Country    string      `json:"country" db:"country"`
	SyncedAt   time.Time   `json:"synced_at" db:"synced_at"`
}

// DisplayName returns the most descriptive non-empty name of the station
func (s *Station) DisplayName() string {
	switch {
	case s.NameLong != "":
		return s.NameLong
	case s.NameMedium != "":
		return s.NameMedium
	case s.NameShort != "":
		return s.NameShort
	default:
		return s.Code
	}
}
