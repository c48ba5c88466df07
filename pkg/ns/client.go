package ns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBaseURL is the public API gateway
	DefaultBaseURL = "https://gateway.apiportal.ns.nl"

	disruptionsPath = "/disruptions/v3"
	tripsPath       = "/reisinformatie-api/api/v3/trips"
	stationsPath    = "/nsapp-stations/v3"

	apiKeyHeader = "Ocp-Apim-Subscription-Key"

	// maxBodySize caps how much of a response is read
	maxBodySize = 32 << 20
)

// Config holds configuration for the API client
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client reads the disruptions, trip-search and stations feeds
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
}

// NewClient creates a new API client
func NewClient(config Config, logger *logrus.Logger) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchDisruptions retrieves every currently active disruption.
// Entries that cannot be decoded are skipped so one bad record does not hide the rest.
func (c *Client) FetchDisruptions(ctx context.Context) ([]Disruption, error) {
	var raw []json.RawMessage
	if err := c.get(ctx, disruptionsPath, url.Values{"isActive": {"true"}}, &raw); err != nil {
		return nil, err
	}

	disruptions := make([]Disruption, 0, len(raw))
	for i, entry := range raw {
		var d Disruption
		if err := json.Unmarshal(entry, &d); err != nil {
			c.logger.WithError(err).WithField("index", i).Warn("Skipping undecodable disruption")
			continue
		}
		if d.ID == "" {
			c.logger.WithField("index", i).Warn("Skipping disruption without id")
			continue
		}
		d.Normalize()
		disruptions = append(disruptions, d)
	}

	c.logger.WithFields(logrus.Fields{
		"received": len(raw),
		"accepted": len(disruptions),
	}).Debug("Disruptions feed fetched")

	return disruptions, nil
}

// SearchTrips retrieves candidate trips between two station codes
func (c *Client) SearchTrips(ctx context.Context, fromStation, toStation string) ([]Trip, error) {
	query := url.Values{
		"fromStation": {fromStation},
		"toStation":   {toStation},
	}

	var resp TripsResponse
	if err := c.get(ctx, tripsPath, query, &resp); err != nil {
		return nil, err
	}

	trips, _ := decodeEntries[Trip](c.logger, resp.Trips, "trip")
	return trips, nil
}

// FetchStations retrieves the complete station list. Entries that cannot be decoded
// are dropped and counted in StationList.Undecodable.
func (c *Client) FetchStations(ctx context.Context) (*StationList, error) {
	var resp StationsResponse
	if err := c.get(ctx, stationsPath, nil, &resp); err != nil {
		return nil, err
	}

	stations, undecodable := decodeEntries[Station](c.logger, resp.Payload, "station")
	return &StationList{Stations: stations, Undecodable: undecodable}, nil
}

// decodeEntries decodes each raw entry on its own, skipping the ones that fail.
// It returns the decoded entries and the number skipped.
func decodeEntries[T any](logger *logrus.Logger, raw []json.RawMessage, kind string) ([]T, int) {
	out := make([]T, 0, len(raw))
	skipped := 0
	for i, entry := range raw {
		var v T
		if err := json.Unmarshal(entry, &v); err != nil {
			logger.WithError(err).WithFields(logrus.Fields{
				"index": i,
				"kind":  kind,
			}).Warn("Skipping undecodable feed entry")
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// get performs a GET request and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return &FeedError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"endpoint":   path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("Feed request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return &FeedError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &FeedError{Endpoint: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &FeedError{Endpoint: path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	return nil
}
