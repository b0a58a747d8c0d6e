package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	s.SyncCompleted(time.Second, 10, nil)
	s.SyncCompleted(time.Second, 0, errors.New("boom"))
	s.SyncGuardTriggered()

	s.TickStarted()
	s.TickCompleted(100*time.Millisecond, 5, nil)

	s.ExecutionCompleted(StatusClass2xx, 200*time.Millisecond)
	s.ExecutionOutcome(OutcomeSuccess)
	s.ExecutionOutcome(OutcomeFailed)
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)
