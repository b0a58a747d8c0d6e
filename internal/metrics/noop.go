package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) SyncCompleted(duration time.Duration, rows int, err error)          {}
func (n *NoopSink) SyncGuardTriggered()                                                {}
func (n *NoopSink) TickStarted()                                                       {}
func (n *NoopSink) TickCompleted(duration time.Duration, jobsTriggered int, err error) {}
func (n *NoopSink) ExecutionCompleted(statusClass string, duration time.Duration)      {}
func (n *NoopSink) ExecutionOutcome(outcome string)                                    {}
