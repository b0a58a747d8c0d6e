package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PrometheusSink implements Sink using Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	logger *zap.Logger

	// Sync metrics
	syncsTotal      prometheus.Counter
	syncErrorsTotal prometheus.Counter
	syncGuardTotal  prometheus.Counter
	syncDuration    prometheus.Histogram
	rowsSynced      prometheus.Gauge

	// Scheduler metrics
	ticksTotal         prometheus.Counter
	tickErrorsTotal    prometheus.Counter
	jobsTriggeredTotal prometheus.Counter
	tickDuration       prometheus.Histogram

	// Execution metrics
	executionsTotal        *prometheus.CounterVec
	executionOutcomesTotal *prometheus.CounterVec
	executionDuration      prometheus.Histogram
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// If registration fails, it logs a warning and returns a functional sink.
func NewPrometheusSink(reg prometheus.Registerer, logger *zap.Logger) *PrometheusSink {
	s := &PrometheusSink{logger: logger.Named("metrics")}
	s.initSyncMetrics(reg)
	s.initSchedulerMetrics(reg)
	s.initExecutionMetrics(reg)
	return s
}

func (s *PrometheusSink) initSyncMetrics(reg prometheus.Registerer) {
	s.syncsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_sync_passes_total",
		Help: "Total number of sync passes run.",
	})
	s.syncErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_sync_errors_total",
		Help: "Total number of sync passes that failed.",
	})
	s.syncGuardTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_sync_empty_guard_total",
		Help: "Total number of sync passes skipped because the remote list was empty.",
	})
	s.syncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "difycron_sync_duration_seconds",
		Help:    "Duration of each sync pass in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})
	s.rowsSynced = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "difycron_sync_rows",
		Help: "Number of rows written by the last successful sync pass.",
	})

	s.register(reg, s.syncsTotal, "difycron_sync_passes_total")
	s.register(reg, s.syncErrorsTotal, "difycron_sync_errors_total")
	s.register(reg, s.syncGuardTotal, "difycron_sync_empty_guard_total")
	s.register(reg, s.syncDuration, "difycron_sync_duration_seconds")
	s.register(reg, s.rowsSynced, "difycron_sync_rows")
}

func (s *PrometheusSink) initSchedulerMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_scheduler_ticks_total",
		Help: "Total number of scheduler passes processed.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_scheduler_tick_errors_total",
		Help: "Total number of scheduler passes that failed to read the table.",
	})
	s.jobsTriggeredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "difycron_scheduler_jobs_triggered_total",
		Help: "Total number of due rows for which an execution was attempted.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "difycron_scheduler_tick_duration_seconds",
		Help:    "Duration of each scheduler pass in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})

	s.register(reg, s.ticksTotal, "difycron_scheduler_ticks_total")
	s.register(reg, s.tickErrorsTotal, "difycron_scheduler_tick_errors_total")
	s.register(reg, s.jobsTriggeredTotal, "difycron_scheduler_jobs_triggered_total")
	s.register(reg, s.tickDuration, "difycron_scheduler_tick_duration_seconds")
}

func (s *PrometheusSink) initExecutionMetrics(reg prometheus.Registerer) {
	s.executionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "difycron_executions_total",
		Help: "Total number of workflow execution calls by status class.",
	}, []string{"status_class"})

	s.executionOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "difycron_execution_outcomes_total",
		Help: "Total number of per-row outcomes for due rows.",
	}, []string{"outcome"})

	s.executionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "difycron_execution_duration_seconds",
		Help:    "Workflow execution call latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	s.register(reg, s.executionsTotal, "difycron_executions_total")
	s.register(reg, s.executionOutcomesTotal, "difycron_execution_outcomes_total")
	s.register(reg, s.executionDuration, "difycron_execution_duration_seconds")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		s.logger.Warn("failed to register collector", zap.String("name", name), zap.Error(err))
	}
}

func (s *PrometheusSink) SyncCompleted(duration time.Duration, rows int, err error) {
	s.syncsTotal.Inc()
	s.syncDuration.Observe(duration.Seconds())
	if err != nil {
		s.syncErrorsTotal.Inc()
		return
	}
	s.rowsSynced.Set(float64(rows))
}

func (s *PrometheusSink) SyncGuardTriggered() {
	s.syncGuardTotal.Inc()
}

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, jobsTriggered int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.jobsTriggeredTotal.Add(float64(jobsTriggered))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) ExecutionCompleted(statusClass string, duration time.Duration) {
	s.executionsTotal.WithLabelValues(statusClass).Inc()
	s.executionDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) ExecutionOutcome(outcome string) {
	s.executionOutcomesTotal.WithLabelValues(outcome).Inc()
}
