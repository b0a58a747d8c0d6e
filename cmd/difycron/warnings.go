package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/pepabo/dify-cron/internal/config"
)

// logConfigWarnings reports settings that are valid but likely unintended
// in production.
func logConfigWarnings(logger *zap.Logger, cfg config.Config) {
	if !cfg.SyncOnStart {
		logger.Warn("SYNC_ON_START=false: new Dify apps appear only after the first scheduled sync",
			zap.String("sync_schedule", cfg.SyncSchedule))
	}
	if cfg.CircuitBreakerThreshold == 0 {
		logger.Warn("CIRCUIT_BREAKER_THRESHOLD=0: failing apps are retried every matching minute")
	}
	if cfg.ExecuteRateLimit == 0 {
		logger.Warn("EXECUTE_RATE_LIMIT=0: workflow runs are not rate limited")
	}
	if cfg.ExecutionTimeout >= time.Minute && cfg.RunSchedule == "* * * * *" {
		logger.Warn("EXECUTION_TIMEOUT is at least one minute: a slow run pass skips the next minute",
			zap.Duration("execution_timeout", cfg.ExecutionTimeout))
	}
	if !cfg.MetricsEnabled {
		logger.Info("METRICS_ENABLED=false: no Prometheus metrics are exported")
	}
}
