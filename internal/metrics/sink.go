package metrics

import (
	"strings"
	"time"
)

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
type Sink interface {
	// Sync pass metrics
	SyncCompleted(duration time.Duration, rows int, err error)
	SyncGuardTriggered()

	// Scheduler pass metrics
	TickStarted()
	TickCompleted(duration time.Duration, jobsTriggered int, err error)

	// Execution metrics
	ExecutionCompleted(statusClass string, duration time.Duration)
	ExecutionOutcome(outcome string)
}

// Outcome constants for ExecutionOutcome metric.
const (
	OutcomeSuccess     = "success"
	OutcomeFailed      = "failed"
	OutcomeInvalidArgs = "invalid_args"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeRecordError = "record_error"
)

// StatusClass constants for ExecutionCompleted metric.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassTimeout         = "timeout"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a status code and error to a status class.
// A non-zero status code wins over the error, since API errors carry both.
func ClassifyStatus(statusCode int, err error) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	}

	if err != nil {
		errStr := strings.ToLower(err.Error())
		if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
			return StatusClassTimeout
		}
		for _, s := range []string{"connection refused", "no such host", "network is unreachable", "dial"} {
			if strings.Contains(errStr, s) {
				return StatusClassConnectionError
			}
		}
	}
	return StatusClassOtherError
}
