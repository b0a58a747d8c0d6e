package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/circuitbreaker"
	"github.com/pepabo/dify-cron/internal/cron"
	"github.com/pepabo/dify-cron/internal/dify"
	"github.com/pepabo/dify-cron/internal/domain"
	"github.com/pepabo/dify-cron/internal/metrics"
	"github.com/pepabo/dify-cron/internal/table"
)

// ErrPassInProgress is returned when RunOnce is called while another
// scheduler pass is still running.
var ErrPassInProgress = errors.New("scheduler pass already in progress")

// Executor triggers one workflow run of an app.
type Executor interface {
	Execute(ctx context.Context, appID, secret string, payload map[string]any) error
}

// Recorder persists the time of a successful run.
type Recorder interface {
	RecordRun(ctx context.Context, appID string, at time.Time) error
}

// Table is the subset of the table store used by a scheduler pass.
type Table interface {
	ReadHeader(ctx context.Context) (table.Header, error)
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteCell(ctx context.Context, rowID, column, value string) error
}

// Breaker guards executions per app id.
type Breaker interface {
	Execute(key string, fn func() error) error
}

// MetricsSink defines the interface for recording scheduler metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	TickStarted()
	TickCompleted(duration time.Duration, jobsTriggered int, err error)
	ExecutionCompleted(statusClass string, duration time.Duration)
	ExecutionOutcome(outcome string)
}

// AnalyticsSink records run outcomes. Implementations must not block
// the pass for long and must swallow their own errors.
type AnalyticsSink interface {
	Record(ctx context.Context, appID, outcome string, at time.Time)
}

// RowError reports a row that could not be executed.
type RowError struct {
	AppID string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("app %s: %v", e.AppID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Summary describes the outcome of RunDueJobs. Each slice holds app ids in
// row order.
type Summary struct {
	Due       []string
	Succeeded []string
	Failed    []string
	Errors    []error
}

// Triggered is the number of rows for which an execution was attempted.
func (s Summary) Triggered() int {
	return len(s.Succeeded) + len(s.Failed)
}

type Scheduler struct {
	executor  Executor
	recorder  Recorder
	table     Table
	breaker   Breaker       // optional
	metrics   MetricsSink   // optional
	analytics AnalyticsSink // optional
	logger    *zap.Logger
	location  *time.Location
	clock     func() time.Time
	newRunID  func() string
	mu        sync.Mutex
}

// New creates a Scheduler that reads rows from tbl, executes due rows with
// executor and records successful runs in the "Last Run" column of tbl.
// Rows are matched against the wall clock in loc.
func New(executor Executor, tbl Table, loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		executor: executor,
		recorder: &tableRecorder{table: tbl},
		table:    tbl,
		logger:   logger.Named("scheduler"),
		location: loc,
		clock:    time.Now,
		newRunID: uuid.NewString,
	}
}

// WithRecorder replaces the default table-backed recorder.
func (s *Scheduler) WithRecorder(r Recorder) *Scheduler {
	s.recorder = r
	return s
}

// WithMetrics attaches a metrics sink to the scheduler.
func (s *Scheduler) WithMetrics(sink MetricsSink) *Scheduler {
	s.metrics = sink
	return s
}

// WithAnalytics attaches a run analytics sink.
func (s *Scheduler) WithAnalytics(sink AnalyticsSink) *Scheduler {
	s.analytics = sink
	return s
}

// WithCircuitBreaker guards every execution with b.
func (s *Scheduler) WithCircuitBreaker(b Breaker) *Scheduler {
	s.breaker = b
	return s
}

// RunOnce reads the table and runs every row due at the current minute.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	if !s.mu.TryLock() {
		return Summary{}, ErrPassInProgress
	}
	defer s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TickStarted()
	}
	start := s.clock()

	sum, err := s.runOnce(ctx)

	if s.metrics != nil {
		s.metrics.TickCompleted(s.clock().Sub(start), sum.Triggered(), err)
	}
	return sum, err
}

func (s *Scheduler) runOnce(ctx context.Context) (Summary, error) {
	header, err := s.table.ReadHeader(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read header: %w", err)
	}
	raws, err := s.table.ReadAllRows(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("read rows: %w", err)
	}

	now := s.clock().In(s.location).Truncate(time.Minute)
	sum := s.RunDueJobs(ctx, table.DecodeAll(header, raws), now)

	if len(sum.Due) > 0 {
		s.logger.Info("pass complete",
			zap.Time("at", now),
			zap.Int("due", len(sum.Due)),
			zap.Int("succeeded", len(sum.Succeeded)),
			zap.Int("failed", len(sum.Failed)))
	}
	return sum, nil
}

// RunDueJobs executes every enabled row whose schedule matches now, in row
// order. A failing row is logged and reported in the summary; it never
// stops later rows.
func (s *Scheduler) RunDueJobs(ctx context.Context, rows []domain.AppRow, now time.Time) Summary {
	var sum Summary
	for _, row := range rows {
		if !row.Enabled {
			continue
		}
		if !cron.IsDue(now, row.Schedule) {
			continue
		}
		sum.Due = append(sum.Due, row.ID)

		executed, err := s.runRow(ctx, row, now)
		if err != nil {
			sum.Errors = append(sum.Errors, err)
		}
		if executed {
			sum.Succeeded = append(sum.Succeeded, row.ID)
		} else {
			sum.Failed = append(sum.Failed, row.ID)
		}
	}
	return sum
}

// runRow reports whether the execution succeeded. A non-nil error with
// executed set means only recording the run failed.
func (s *Scheduler) runRow(ctx context.Context, row domain.AppRow, now time.Time) (bool, error) {
	runID := s.newRunID()
	log := s.logger.With(zap.String("app_id", row.ID), zap.String("run_id", runID))

	payload, err := ParseArgs(row.Args)
	if err != nil {
		log.Error("invalid args, skipping row", zap.Error(err))
		s.outcome(ctx, row.ID, metrics.OutcomeInvalidArgs, now)
		return false, &RowError{AppID: row.ID, Err: err}
	}

	secret := strings.TrimSpace(row.APISecret)
	if secret == "" {
		log.Warn("api secret is empty")
	}

	runCtx := dify.ContextWithRunID(ctx, runID)
	start := s.clock()
	err = s.execute(runCtx, row.ID, secret, payload)
	elapsed := s.clock().Sub(start)

	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		log.Warn("circuit open, skipping row")
		s.outcome(ctx, row.ID, metrics.OutcomeCircuitOpen, now)
		return false, &RowError{AppID: row.ID, Err: err}
	}

	if s.metrics != nil {
		code := dify.StatusCode(err)
		if err == nil {
			code = http.StatusOK
		}
		s.metrics.ExecutionCompleted(metrics.ClassifyStatus(code, err), elapsed)
	}

	if err != nil {
		log.Error("execution failed", zap.Error(err), zap.Duration("duration", elapsed))
		s.outcome(ctx, row.ID, metrics.OutcomeFailed, now)
		return false, &RowError{AppID: row.ID, Err: fmt.Errorf("execute: %w", err)}
	}

	if err := s.recorder.RecordRun(ctx, row.ID, now); err != nil {
		log.Error("failed to record run", zap.Error(err))
		s.outcome(ctx, row.ID, metrics.OutcomeRecordError, now)
		return true, &RowError{AppID: row.ID, Err: fmt.Errorf("record run: %w", err)}
	}

	log.Info("executed", zap.Duration("duration", elapsed))
	s.outcome(ctx, row.ID, metrics.OutcomeSuccess, now)
	return true, nil
}

func (s *Scheduler) execute(ctx context.Context, appID, secret string, payload map[string]any) error {
	if s.breaker == nil {
		return s.executor.Execute(ctx, appID, secret, payload)
	}
	return s.breaker.Execute(appID, func() error {
		return s.executor.Execute(ctx, appID, secret, payload)
	})
}

func (s *Scheduler) outcome(ctx context.Context, appID, outcome string, at time.Time) {
	if s.metrics != nil {
		s.metrics.ExecutionOutcome(outcome)
	}
	if s.analytics != nil {
		s.analytics.Record(ctx, appID, outcome, at)
	}
}

// ParseArgs decodes an Args cell into a workflow payload. An empty cell
// yields an empty payload; anything other than a JSON object is an error.
func ParseArgs(args string) (map[string]any, error) {
	payload := map[string]any{}
	if strings.TrimSpace(args) == "" {
		return payload, nil
	}
	if err := json.Unmarshal([]byte(args), &payload); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return payload, nil
}

type tableRecorder struct {
	table Table
}

func (r *tableRecorder) RecordRun(ctx context.Context, appID string, at time.Time) error {
	return r.table.WriteCell(ctx, appID, table.ColumnLastRun, domain.FormatTimestamp(at))
}
