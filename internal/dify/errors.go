package dify

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuth is returned when the console login is rejected or yields no token.
var ErrAuth = errors.New("dify: authentication failed")

// APIError is a non-2xx answer from Dify.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dify: %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Unauthorized reports whether the request was rejected for its credentials.
func (e *APIError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// WorkflowError is returned when Dify accepted a run but reported it failed.
type WorkflowError struct {
	RunID   string
	Status  string
	Message string
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("dify: workflow run %s %s: %s", e.RunID, e.Status, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
