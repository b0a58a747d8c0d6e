package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pepabo/dify-cron/internal/cadence"
	"github.com/pepabo/dify-cron/internal/logging"
	"github.com/pepabo/dify-cron/internal/store/sqltable"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	errs := append(ValidationErrors{}, cfg.parseErrs...)

	required := []struct{ field, value string }{
		{"DIFY_BASE_URL", cfg.DifyBaseURL},
		{"DIFY_EMAIL", cfg.DifyEmail},
		{"DIFY_PASSWORD", cfg.DifyPassword},
		{"DATABASE_URL", cfg.DatabaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, ValidationError{Field: r.field, Message: "required"})
		}
	}

	if cfg.DifyBaseURL != "" {
		u, err := url.Parse(cfg.DifyBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "DIFY_BASE_URL",
				Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.DifyBaseURL),
			})
		}
	}

	if _, err := sqltable.ParseDialect(cfg.DatabaseDriver); err != nil {
		errs = append(errs, ValidationError{
			Field:   "DATABASE_DRIVER",
			Message: fmt.Sprintf("must be 'postgres' or 'sqlite', got %q", cfg.DatabaseDriver),
		})
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		errs = append(errs, ValidationError{
			Field:   "TIMEZONE",
			Message: fmt.Sprintf("unknown time zone %q", cfg.Timezone),
		})
	}

	for _, s := range []struct{ field, spec string }{
		{"SYNC_SCHEDULE", cfg.SyncSchedule},
		{"RUN_SCHEDULE", cfg.RunSchedule},
	} {
		if err := cadence.ValidateSpec(s.spec); err != nil {
			errs = append(errs, ValidationError{Field: s.field, Message: err.Error()})
		}
	}

	durations := []struct{ field, value string }{
		{"DB_OP_TIMEOUT", cfg.DBOpTimeoutStr},
		{"DB_CONN_MAX_LIFETIME", cfg.DBConnMaxLifetimeStr},
		{"ANALYTICS_RETENTION", cfg.AnalyticsRetentionStr},
		{"HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr},
		{"REQUEST_TIMEOUT", cfg.RequestTimeoutStr},
		{"EXECUTION_TIMEOUT", cfg.ExecutionTimeoutStr},
		{"CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr},
	}
	for _, d := range durations {
		if err := validatePositiveDuration(d.value); err != nil {
			errs = append(errs, ValidationError{Field: d.field, Message: err.Error()})
		}
	}

	if cfg.DBMaxOpenConns <= 0 {
		errs = append(errs, ValidationError{Field: "DB_MAX_OPEN_CONNS", Message: "must be positive"})
	}
	if cfg.DBMaxIdleConns < 0 {
		errs = append(errs, ValidationError{Field: "DB_MAX_IDLE_CONNS", Message: "must not be negative"})
	}
	if cfg.ExecuteRateLimit < 0 {
		errs = append(errs, ValidationError{Field: "EXECUTE_RATE_LIMIT", Message: "must not be negative"})
	}
	if cfg.CircuitBreakerThreshold < 0 {
		errs = append(errs, ValidationError{Field: "CIRCUIT_BREAKER_THRESHOLD", Message: "must not be negative"})
	}
	if cfg.MetricsEnabled && (cfg.MetricsPort <= 0 || cfg.MetricsPort > 65535) {
		errs = append(errs, ValidationError{
			Field:   "METRICS_PORT",
			Message: fmt.Sprintf("must be between 1 and 65535, got %d", cfg.MetricsPort),
		})
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "LOG_LEVEL", Message: err.Error()})
	}
	if err := logging.ValidateFormat(cfg.LogFormat); err != nil {
		errs = append(errs, ValidationError{Field: "LOG_FORMAT", Message: "must be 'json' or 'console'"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePositiveDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration: %v", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", s)
	}
	return nil
}
