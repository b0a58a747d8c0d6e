package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/analytics"
	"github.com/pepabo/dify-cron/internal/circuitbreaker"
	"github.com/pepabo/dify-cron/internal/config"
	"github.com/pepabo/dify-cron/internal/dify"
	"github.com/pepabo/dify-cron/internal/logging"
	"github.com/pepabo/dify-cron/internal/metrics"
	"github.com/pepabo/dify-cron/internal/reconciler"
	"github.com/pepabo/dify-cron/internal/scheduler"
	"github.com/pepabo/dify-cron/internal/store/sqltable"
	"github.com/pepabo/dify-cron/internal/table"
)

// app holds the components shared by serve, sync and run.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *sql.DB
	store     *sqltable.Store
	client    *dify.Client
	metrics   metrics.Sink
	redis     *redis.Client
	analytics *analytics.RedisSink
	syncer    *reconciler.Syncer
	scheduler *scheduler.Scheduler
}

// newApp connects to the table store and wires every component. reg may
// be nil, in which case metrics are not exported.
func newApp(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*app, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, invalidConfig(err)
	}
	a := &app{cfg: cfg, logger: logger}

	db, dialect, err := sqltable.Open(cfg.DatabaseDriver, cfg.DatabaseURL, sqltable.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.db = db
	logger.Info("db pool configured",
		zap.String("driver", dialect.String()),
		zap.Int("max_open", cfg.DBMaxOpenConns),
		zap.Int("max_idle", cfg.DBMaxIdleConns),
		zap.Duration("max_lifetime", cfg.DBConnMaxLifetime))

	a.store = sqltable.New(db, dialect, cfg.DBOpTimeout)
	if err := a.store.Ping(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := a.store.Migrate(ctx); err != nil {
		a.close()
		return nil, err
	}
	wrote, err := a.store.EnsureHeader(ctx, table.DefaultHeader)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("ensure header: %w", err)
	}
	if wrote {
		logger.Info("initialized empty table with default header")
	}

	a.client = dify.New(dify.Config{
		BaseURL:          cfg.DifyBaseURL,
		Email:            cfg.DifyEmail,
		Password:         cfg.DifyPassword,
		User:             cfg.DifyUser,
		AppModes:         cfg.DifyAppModes,
		RequestTimeout:   cfg.RequestTimeout,
		ExecutionTimeout: cfg.ExecutionTimeout,
		RateLimit:        cfg.ExecuteRateLimit,
	}, logger)

	if cfg.MetricsEnabled && reg != nil {
		a.metrics = metrics.NewPrometheusSink(reg, logger)
	} else {
		a.metrics = metrics.NewNoopSink()
	}

	a.syncer = reconciler.NewSyncer(a.client, a.store, cfg.Location, logger).
		WithMetrics(a.metrics)

	a.scheduler = scheduler.New(a.client, a.store, cfg.Location, logger).
		WithMetrics(a.metrics).
		WithCircuitBreaker(circuitbreaker.New(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown, logger))

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.analytics = analytics.NewRedisSink(a.redis, cfg.AnalyticsRetention, logger)
		a.scheduler.WithAnalytics(a.analytics)
		logger.Info("analytics enabled", zap.String("redis", cfg.RedisAddr))
	} else {
		logger.Info("REDIS_ADDR not set; analytics disabled")
	}

	return a, nil
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("db close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
