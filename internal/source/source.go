// Package source fetches the schedule page as text.
package source

import (
	"context"
	"errors"
)

// Fetcher returns the full schedule document or fails outright. Callers
// treat every failure the same way and do not retry within a cycle.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

var (
	// ErrEmptyURL is returned when a fetcher is used without a URL.
	ErrEmptyURL = errors.New("source: URL is empty")
	// ErrNotModifiedNoCache is a 304 answer without a cached body to reuse.
	ErrNotModifiedNoCache = errors.New("source: 304 Not Modified but no cached body available")
)

// StatusError reports a non-2xx HTTP answer.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return "source: unexpected status " + e.Status
}

// redactURL hides paths and query strings of a URL for logging.
//
//	https://example.com/path/to/page?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	if j == len(u) {
		return u
	}
	return u[:j] + redactedSuffix
}
