package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
)

// Error is returned for every failed call. StatusCode is zero when no
// response was received.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is classifies the error by status so callers can use errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrTransport:
		return e.StatusCode == 0
	}
	return false
}

// Message extracts the human-readable message of err, falling back to
// fallback when err did not come from the gateway or carried no text.
func Message(err error, fallback string) string {
	var gerr *Error
	if errors.As(err, &gerr) && gerr.StatusCode != 0 && gerr.Message != "" {
		return gerr.Message
	}
	return fallback
}
