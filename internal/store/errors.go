package store

import (
	"errors"
	"fmt"
)

// ErrNoJob is returned by Dequeue when the queue is empty. An empty queue
// is a normal condition, not a failure.
var ErrNoJob = errors.New("no queued job available")

// APIError is a non-2xx response from the backing store. Callers decide
// per operation whether it is fatal.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("store API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsAPIError reports whether err wraps an *APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
