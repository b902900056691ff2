package httpclient

import (
	"errors"
	"fmt"
)

// HTTPError is returned when the service answers with a status the caller
// did not expect.
type HTTPError struct {
	Status  int
	Method  string
	URI     string
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URI, e.Status)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URI, e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, if any.
func StatusOf(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, true
	}
	return 0, false
}

// HasStatus reports whether err carries one of the given statuses.
func HasStatus(err error, statuses ...int) bool {
	status, ok := StatusOf(err)
	if !ok {
		return false
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
