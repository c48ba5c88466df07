package ns

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey indicates the client has no subscription key configured.
	// It is returned before any request is sent.
	ErrMissingAPIKey = errors.New("ns: api key is not configured")

	// ErrFeedUnavailable indicates the upstream feed could not be read
	ErrFeedUnavailable = errors.New("ns: feed unavailable")
)

// FeedError describes a failed feed call. It matches ErrFeedUnavailable with errors.Is.
type FeedError struct {
	Endpoint   string
	StatusCode int // 0 when the transport failed before a response was received
	Err        error
}

func (e *FeedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ns: %s returned status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("ns: %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause
func (e *FeedError) Unwrap() []error {
	errs := []error{ErrFeedUnavailable}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}
