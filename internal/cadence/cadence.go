// Package cadence triggers the sync and run passes on cron schedules.
package cadence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a valid five-field cron expression
// or descriptor such as "@hourly".
func ValidateSpec(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("parse cron: %w", err)
	}
	return nil
}

// Func is a pass triggered by the runner.
type Func func(ctx context.Context) error

// Runner runs registered passes on their schedules. A pass that is still
// running when its next trigger fires is skipped.
type Runner struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[string]cron.EntryID
}

func New(loc *time.Location, logger *zap.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.Named("cadence")
	cl := cronLogger{logger.Sugar()}

	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[string]cron.EntryID),
	}
}

// Register schedules fn under name. It must be called before Run.
func (r *Runner) Register(spec, name string, fn Func) error {
	id, err := r.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := fn(r.context()); err != nil {
			r.logger.Error("pass failed", zap.String("pass", name), zap.Error(err))
			return
		}
		r.logger.Debug("pass finished", zap.String("pass", name), zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	r.mu.Lock()
	r.entries[name] = id
	r.mu.Unlock()

	r.logger.Info("registered", zap.String("pass", name), zap.String("schedule", spec))
	return nil
}

// Next returns the next trigger time of every registered pass. Times are
// zero until Run has started the runner.
func (r *Runner) Next() map[string]time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]time.Time, len(r.entries))
	for name, id := range r.entries {
		next[name] = r.cron.Entry(id).Next
	}
	return next
}

// Run starts the runner and blocks until ctx is done. Passes receive ctx
// and Run waits for running passes before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Info("started")

	<-ctx.Done()

	<-r.cron.Stop().Done()
	r.logger.Info("stopped")
	return ctx.Err()
}

func (r *Runner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

// cronLogger adapts zap to cron.Logger. The scheduler's chatty info
// messages are logged at debug level.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
