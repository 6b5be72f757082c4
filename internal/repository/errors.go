package repository

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("malformed response body")
	ErrInvalidBaseURL    = errors.New("invalid employee api url")
)

// StatusError is returned when the employee service answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not a *StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
