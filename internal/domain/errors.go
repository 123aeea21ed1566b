package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoActiveQuiz is returned when an action needs a loaded quiz and none is.
	ErrNoActiveQuiz = errors.New("no quiz loaded")
	// ErrSessionNotFound is returned when a live session id is not registered.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidFeedback wraps validation failures of a feedback request.
	ErrInvalidFeedback = errors.New("invalid feedback")
	// ErrInvalidQuizRequest wraps validation failures of a quiz generation request.
	ErrInvalidQuizRequest = errors.New("invalid quiz request")
	// ErrNotConfigured is returned when an optional backing store is required but absent.
	ErrNotConfigured = errors.New("not configured")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op         string // e.g. "get quiz"
	StatusCode int
	Detail     string // server supplied "detail", if any
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = fmt.Sprintf("request failed with status code %d", e.StatusCode)
		if text := http.StatusText(e.StatusCode); text != "" {
			msg = fmt.Sprintf("%s (%s)", msg, text)
		}
	}
	return fmt.Sprintf("failed to %s: %s", e.Op, msg)
}

func (e *APIError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ErrorMessage turns err into the string surfaced to the user, or fallback when err carries none.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
