package scraper

import (
	"errors"
	"fmt"
)

// Run-level failures surfaced by the orchestrator.
var (
	// ErrAlreadyRunning is returned when a run is started while one is active.
	ErrAlreadyRunning = errors.New("a scraping run is already in progress")
	// ErrNoURLsFound is recorded when the listing page yields no article links.
	ErrNoURLsFound = errors.New("no article URLs found")
)

// FetchErrorKind classifies transport failures.
type FetchErrorKind string

// Fetch failure classes.
const (
	FetchTimeout   FetchErrorKind = "timeout"
	FetchTransport FetchErrorKind = "transport"
)

// FetchError wraps a failed HTTP fetch with its classification.
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTimeout
}
