package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/domain"
	"github.com/pepabo/dify-cron/internal/table"
)

// ErrPassInProgress is returned when RunOnce is called while another sync
// pass is still running.
var ErrPassInProgress = errors.New("sync pass already in progress")

// Source lists the applications currently known to Dify.
type Source interface {
	ListApps(ctx context.Context) ([]domain.RemoteApp, error)
}

// Table is the subset of the table store used by a sync pass.
type Table interface {
	ReadHeader(ctx context.Context) (table.Header, error)
	ReadAllRows(ctx context.Context) ([][]string, error)
	WriteAllRows(ctx context.Context, rows [][]string) error
}

// MetricsSink defines the interface for recording sync metrics.
// All methods must be non-blocking and fire-and-forget.
type MetricsSink interface {
	SyncCompleted(duration time.Duration, rows int, err error)
	SyncGuardTriggered()
}

// Syncer runs sync passes: list remote apps, merge, write the table back.
type Syncer struct {
	source   Source
	table    Table
	logger   *zap.Logger
	metrics  MetricsSink // optional, nil = disabled
	location *time.Location
	clock    func() time.Time
	mu       sync.Mutex
}

// NewSyncer creates a Syncer. Timestamps are written in loc.
func NewSyncer(source Source, tbl Table, loc *time.Location, logger *zap.Logger) *Syncer {
	if loc == nil {
		loc = time.UTC
	}
	return &Syncer{
		source:   source,
		table:    tbl,
		logger:   logger.Named("reconciler"),
		location: loc,
		clock:    time.Now,
	}
}

// WithMetrics attaches a metrics sink to the syncer.
func (s *Syncer) WithMetrics(sink MetricsSink) *Syncer {
	s.metrics = sink
	return s
}

// RunOnce performs one sync pass. A failure to reach Dify aborts the pass
// before anything is written; an empty remote list leaves the table as is.
func (s *Syncer) RunOnce(ctx context.Context) (Result, error) {
	if !s.mu.TryLock() {
		return Result{}, ErrPassInProgress
	}
	defer s.mu.Unlock()

	start := s.clock()
	res, err := s.run(ctx)
	if s.metrics != nil {
		if res.Guarded {
			s.metrics.SyncGuardTriggered()
		}
		s.metrics.SyncCompleted(s.clock().Sub(start), len(res.Rows), err)
	}
	return res, err
}

func (s *Syncer) run(ctx context.Context) (Result, error) {
	remote, err := s.source.ListApps(ctx)
	if err != nil {
		s.logger.Error("failed to list remote apps", zap.Error(err))
		return Result{}, fmt.Errorf("list apps: %w", err)
	}

	header, err := s.table.ReadHeader(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read header: %w", err)
	}
	raws, err := s.table.ReadAllRows(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read rows: %w", err)
	}
	existing := table.DecodeAll(header, raws)

	now := s.clock().In(s.location)
	res := Merge(existing, remote, now)

	if res.Guarded {
		s.logger.Warn("remote app list is empty; keeping existing rows",
			zap.Int("rows", len(existing)))
		return res, nil
	}

	if err := s.table.WriteAllRows(ctx, table.EncodeAll(header, res.Rows)); err != nil {
		return Result{}, fmt.Errorf("write rows: %w", err)
	}

	if len(res.Duplicates) > 0 {
		s.logger.Warn("dropped duplicate remote app ids", zap.Strings("ids", res.Duplicates))
	}
	s.logger.Info("sync complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("created", len(res.Created)),
		zap.Int("updated", len(res.Updated)),
		zap.Int("removed", len(res.Removed)))

	return res, nil
}
