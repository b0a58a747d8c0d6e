package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/api"
	"github.com/pepabo/dify-cron/internal/cadence"
	"github.com/pepabo/dify-cron/internal/reconciler"
	"github.com/pepabo/dify-cron/internal/scheduler"
)

const envHelp = `
Environment Variables:
  DIFY_BASE_URL              Dify base URL (required)
  DIFY_EMAIL                 Dify console account email (required)
  DIFY_PASSWORD              Dify console account password (required)
  DIFY_USER                  "user" sent with workflow runs (default: "dify-cron")
  DIFY_APP_MODES             Comma separated app modes to sync, empty for all (default: "workflow")

  DATABASE_DRIVER            "postgres" or "sqlite" (default: "postgres")
  DATABASE_URL               Table store DSN (required)
  DB_OP_TIMEOUT              Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS          Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS          Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME       Max connection lifetime (default: "30m")

  REDIS_ADDR                 Redis address for run analytics (optional)
  ANALYTICS_RETENTION        Analytics counter TTL (default: "168h")

  HTTP_ADDR                  Admin API address (default: ":8080", or ":$PORT")
  HTTP_SHUTDOWN_TIMEOUT      Graceful HTTP shutdown timeout (default: "10s")

  TIMEZONE                   Zone for schedules and timestamps (default: "UTC")
  SYNC_SCHEDULE              Cron schedule of sync passes (default: "0 * * * *")
  RUN_SCHEDULE               Cron schedule of run passes (default: "* * * * *")
  SYNC_ON_START              Run one sync pass at startup (default: "true")

  REQUEST_TIMEOUT            Timeout of Dify console calls (default: "30s")
  EXECUTION_TIMEOUT          Timeout of one workflow run (default: "60s")
  EXECUTE_RATE_LIMIT         Max workflow runs per second, 0 = unlimited (default: "5")
  CIRCUIT_BREAKER_THRESHOLD  Consecutive failures before an app is paused, 0 = off (default: "5")
  CIRCUIT_BREAKER_COOLDOWN   Pause before a paused app is retried (default: "2m")

  METRICS_ENABLED            Enable Prometheus metrics (default: "false")
  METRICS_PATH               Metrics endpoint path (default: "/metrics")
  METRICS_PORT               Metrics server port (default: "9090")

  LOG_LEVEL                  debug, info, warn or error (default: "info")
  LOG_FORMAT                 json or console (default: "json")`

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the sync and run cadences and the admin API",
		Long:  "Start the sync and run cadences and the admin API.\n" + envHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			defer a.close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	logConfigWarnings(logger, cfg)

	if cfg.SyncOnStart {
		if _, err := a.syncer.RunOnce(ctx); err != nil {
			logger.Error("initial sync failed", zap.Error(err))
		}
	}

	runner := cadence.New(cfg.Location, logger)
	err := runner.Register(cfg.SyncSchedule, "sync", func(ctx context.Context) error {
		_, err := a.syncer.RunOnce(ctx)
		return ignoreInProgress(err, reconciler.ErrPassInProgress, logger)
	})
	if err != nil {
		return err
	}
	err = runner.Register(cfg.RunSchedule, "run", func(ctx context.Context) error {
		_, err := a.scheduler.RunOnce(ctx)
		return ignoreInProgress(err, scheduler.ErrPassInProgress, logger)
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(a.store, a.syncer, a.scheduler, logger).
		WithHealthChecker("database", a.store)
	if a.analytics != nil {
		handler = handler.WithHealthChecker("redis", a.analytics).WithStats(a.analytics)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + strconv.Itoa(cfg.MetricsPort),
			Handler: metricsMux,
		}
		go func() {
			logger.Info("metrics server listening", zap.Int("port", cfg.MetricsPort), zap.String("path", cfg.MetricsPath))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	} else {
		logger.Info("METRICS_ENABLED not set; metrics disabled")
	}

	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		runner.Run(ctx)
	}()

	logger.Info("started",
		zap.String("sync_schedule", cfg.SyncSchedule),
		zap.String("run_schedule", cfg.RunSchedule),
		zap.String("timezone", cfg.Timezone),
		zap.String("version", version))

	<-ctx.Done()
	logger.Info("shutting down")

	// Phase 1: stop triggering passes and wait for running ones.
	<-runnerDone
	logger.Info("cadences stopped")

	// Phase 2: stop the admin API.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	// Phase 3: stop the metrics server.
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	logger.Info("stopped")
	return nil
}

// ignoreInProgress drops err when it is the pass-in-progress sentinel, which
// happens when an admin API trigger overlaps a scheduled pass.
func ignoreInProgress(err, sentinel error, logger *zap.Logger) error {
	if errors.Is(err, sentinel) {
		logger.Info("pass skipped", zap.String("reason", err.Error()))
		return nil
	}
	return err
}
