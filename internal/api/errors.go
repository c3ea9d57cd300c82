package api

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotAuthenticated means no usable credential is present. The
	// caller should route to login; no request was attempted.
	ErrNotAuthenticated = errors.New("api: not authenticated")

	// ErrSessionExpired means a refresh was attempted and failed. The
	// stored credentials have been cleared; the caller should route to
	// login.
	ErrSessionExpired = errors.New("api: session expired")
)

// RequestError is any backend rejection that is not a session problem:
// a non-2xx status, an error-bearing envelope, a malformed response, or a
// transport failure such as a timeout. It is surfaced to the caller for
// display and never retried.
type RequestError struct {
	Status   int // HTTP status, 0 for transport failures
	Messages []string
}

func (e *RequestError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("api: request failed (%d): %s", e.Status, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("api: request failed (%d)", e.Status)
}

func requestErrorf(status int, format string, args ...interface{}) *RequestError {
	return &RequestError{Status: status, Messages: []string{fmt.Sprintf(format, args...)}}
}
