package services

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/commutewatch/backend/pkg/ns"
)

// UnknownPeriod is shown when a disruption carries no timing information at all
const UnknownPeriod = "Unknown period"

// periodLayout is how timespan boundaries are rendered
const periodLayout = "02-01-2006 15:04"

// feedTimeLayouts are the timestamp formats seen in the disruptions feed
var feedTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
}

// MatchedDisruption is a feed disruption together with the route stations it affects
type MatchedDisruption struct {
	Disruption       ns.Disruption
	AffectedStations []string
}

// MatchDisruptions keeps the disruptions that mention at least one of the route's
// stations, keyed by external id. Affected stations are deduplicated and keep the
// order in which the feed lists them. Disruptions without publication sections
// match nothing.
func MatchDisruptions(feed []ns.Disruption, routeStationCodes []string) map[string]MatchedDisruption {
	onRoute := make(map[string]struct{}, len(routeStationCodes))
	for _, code := range routeStationCodes {
		onRoute[code] = struct{}{}
	}

	matched := make(map[string]MatchedDisruption)
	for _, d := range feed {
		seen := make(map[string]struct{})
		var affected []string
		for _, code := range d.StationCodes() {
			if _, ok := onRoute[code]; !ok {
				continue
			}
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			affected = append(affected, code)
		}

		if len(affected) == 0 {
			continue
		}
		matched[d.ID] = MatchedDisruption{
			Disruption:       d,
			AffectedStations: affected,
		}
	}
	return matched
}

// ExtractPeriod renders the disruption's first timespan for display, falling back
// to the phase label and finally to UnknownPeriod
func ExtractPeriod(d ns.Disruption) string {
	if len(d.Timespans) > 0 {
		span := d.Timespans[0]
		start := formatFeedTime(span.Start)
		end := formatFeedTime(span.End)
		switch {
		case start != "" && end != "":
			return start + " – " + end
		case start != "":
			return "From " + start
		}
	}

	if label := strings.TrimSpace(d.Phase.Label); label != "" {
		return label
	}
	return UnknownPeriod
}

// formatFeedTime renders a feed timestamp, passing through values it cannot parse
func formatFeedTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(periodLayout)
		}
	}
	return value
}

// Fingerprint is a cheap content hash of the fields a user sees. It is not
// collision free and is only used to notice that a disruption was reworded.
// The value is a 32-bit rolling hash (h*31 + c over UTF-16 code units) in hex.
func Fingerprint(disruptionType, title, period, advice string) string {
	content := strings.Join([]string{disruptionType, title, period, advice}, "|")

	var h int32
	for _, c := range utf16.Encode([]rune(content)) {
		h = h*31 + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}
