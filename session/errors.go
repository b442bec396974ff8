package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/octabyte/sitemon/utils"
)

var (
	// ErrAuthentication matches any 401 answer of the backend.
	ErrAuthentication = errors.New("authentication failure")
	// ErrRefreshExhausted is returned when the refresh exchange failed; the
	// session has been cleared by then.
	ErrRefreshExhausted = errors.New("session refresh failed")
	// ErrSessionEnded is returned when the session was cleared (logout) while
	// a refresh or profile fetch was still running; its result is discarded.
	ErrSessionEnded = errors.New("session ended")
)

// APIError is a non-2xx answer of the backend.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Detail     string
	Body       []byte
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *APIError) Is(target error) bool {
	return target == ErrAuthentication && e.StatusCode == http.StatusUnauthorized
}

// TransportError is a request that never got an HTTP answer.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Message renders err for display. Backend errors show their detail, falling
// back to utils.UnknownErrorMessage when the payload has none.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return utils.UnknownErrorMessage
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) && transportErr.Err != nil {
		return transportErr.Err.Error()
	}

	return utils.UnknownErrorMessage
}
