package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for dify-cron.
// Values are loaded from environment variables; see the serve command help
// for the full list.
type Config struct {
	DifyBaseURL     string   `json:"dify_base_url"`
	DifyEmail       string   `json:"dify_email"`
	DifyPassword    string   `json:"-"`
	DifyUser        string   `json:"dify_user"`
	DifyAppModes    []string `json:"-"`
	DifyAppModesStr string   `json:"dify_app_modes"`

	DatabaseDriver string `json:"database_driver"`
	DatabaseURL    string `json:"database_url"`

	DBOpTimeout          time.Duration `json:"-"`
	DBOpTimeoutStr       string        `json:"db_op_timeout"`
	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`

	RedisAddr             string        `json:"redis_addr,omitempty"`
	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	HTTPAddr               string        `json:"http_addr"`
	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// Timezone is used both for matching schedules and for the Last Sync
	// and Last Run cells.
	Timezone string         `json:"timezone"`
	Location *time.Location `json:"-"`

	SyncSchedule string `json:"sync_schedule"`
	RunSchedule  string `json:"run_schedule"`
	SyncOnStart  bool   `json:"sync_on_start"`

	RequestTimeout      time.Duration `json:"-"`
	RequestTimeoutStr   string        `json:"request_timeout"`
	ExecutionTimeout    time.Duration `json:"-"`
	ExecutionTimeoutStr string        `json:"execution_timeout"`

	// ExecuteRateLimit is in calls per second; 0 means unlimited.
	ExecuteRateLimit float64 `json:"execute_rate_limit"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    int    `json:"metrics_port"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	// numeric values that failed to parse; reported by Validate.
	parseErrs ValidationErrors
}

// LoadEnvFiles loads KEY=VALUE files into the environment. Missing files
// are skipped and variables already set are never overridden.
func LoadEnvFiles(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DifyBaseURL:               strings.TrimRight(os.Getenv("DIFY_BASE_URL"), "/"),
		DifyEmail:                 os.Getenv("DIFY_EMAIL"),
		DifyPassword:              os.Getenv("DIFY_PASSWORD"),
		DifyUser:                  os.Getenv("DIFY_USER"),
		DatabaseDriver:            os.Getenv("DATABASE_DRIVER"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		DBOpTimeoutStr:            os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:      os.Getenv("DB_CONN_MAX_LIFETIME"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		AnalyticsRetentionStr:     os.Getenv("ANALYTICS_RETENTION"),
		HTTPAddr:                  os.Getenv("HTTP_ADDR"),
		HTTPShutdownTimeoutStr:    os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		Timezone:                  os.Getenv("TIMEZONE"),
		SyncSchedule:              os.Getenv("SYNC_SCHEDULE"),
		RunSchedule:               os.Getenv("RUN_SCHEDULE"),
		SyncOnStart:               os.Getenv("SYNC_ON_START") != "false",
		RequestTimeoutStr:         os.Getenv("REQUEST_TIMEOUT"),
		ExecutionTimeoutStr:       os.Getenv("EXECUTION_TIMEOUT"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:               os.Getenv("METRICS_PATH"),
		LogLevel:                  os.Getenv("LOG_LEVEL"),
		LogFormat:                 os.Getenv("LOG_FORMAT"),
	}

	modes, modesSet := os.LookupEnv("DIFY_APP_MODES")
	if !modesSet {
		modes = "workflow"
	}
	cfg.DifyAppModesStr = modes
	cfg.DifyAppModes = splitList(modes)

	cfg.DBMaxOpenConns = cfg.intEnv("DB_MAX_OPEN_CONNS", 25)
	cfg.DBMaxIdleConns = cfg.intEnv("DB_MAX_IDLE_CONNS", 5)
	cfg.CircuitBreakerThreshold = cfg.intEnv("CIRCUIT_BREAKER_THRESHOLD", 5)
	cfg.MetricsPort = cfg.intEnv("METRICS_PORT", 9090)
	cfg.ExecuteRateLimit = cfg.floatEnv("EXECUTE_RATE_LIMIT", 5)

	if cfg.DifyUser == "" {
		cfg.DifyUser = "dify-cron"
	}
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "postgres"
	}
	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}
	if cfg.SyncSchedule == "" {
		cfg.SyncSchedule = "0 * * * *"
	}
	if cfg.RunSchedule == "" {
		cfg.RunSchedule = "* * * * *"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.AnalyticsRetentionStr == "" {
		cfg.AnalyticsRetentionStr = "168h"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.RequestTimeoutStr == "" {
		cfg.RequestTimeoutStr = "30s"
	}
	if cfg.ExecutionTimeoutStr == "" {
		cfg.ExecutionTimeoutStr = "60s"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}

	// Parse durations and the zone; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsRetentionStr); err == nil {
		cfg.AnalyticsRetention = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.RequestTimeoutStr); err == nil {
		cfg.RequestTimeout = d
	}
	if d, err := time.ParseDuration(cfg.ExecutionTimeoutStr); err == nil {
		cfg.ExecutionTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		cfg.Location = loc
	}

	return cfg
}

func (c *Config) intEnv(key string, def int) int {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		c.parseErrs = append(c.parseErrs, ValidationError{Field: key, Message: fmt.Sprintf("invalid integer %q", s)})
		return def
	}
	return n
}

func (c *Config) floatEnv(key string, def float64) float64 {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		c.parseErrs = append(c.parseErrs, ValidationError{Field: key, Message: fmt.Sprintf("invalid number %q", s)})
		return def
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.RedisAddr = maskUserInfo(c.RedisAddr)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://", "file:"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}

// maskUserInfo hides credentials in a user:pass@host address.
func maskUserInfo(s string) string {
	if i := strings.LastIndex(s, "@"); i >= 0 {
		return "***@" + s[i+1:]
	}
	return s
}
