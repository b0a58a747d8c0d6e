package dify

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	apiErr := &APIError{Op: "run workflow", StatusCode: http.StatusTooManyRequests, Body: "slow down"}

	assert.Equal(t, http.StatusTooManyRequests, StatusCode(apiErr))
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(fmt.Errorf("wrapped: %w", apiErr)))
	assert.Equal(t, 0, StatusCode(errors.New("dial tcp: connection refused")))
	assert.Equal(t, 0, StatusCode(nil))
}

func TestAPIError_Message(t *testing.T) {
	err := &APIError{Op: "list apps", StatusCode: 500, Body: "oops"}
	assert.Equal(t, "dify: list apps: status 500: oops", err.Error())
	assert.False(t, err.Unauthorized())
	assert.True(t, (&APIError{StatusCode: 401}).Unauthorized())
	assert.True(t, isUnauthorized(fmt.Errorf("x: %w", &APIError{StatusCode: 401})))
}
