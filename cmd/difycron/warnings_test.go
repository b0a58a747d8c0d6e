package main

import (
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pepabo/dify-cron/internal/config"
)

func captureWarnings(cfg config.Config) *observer.ObservedLogs {
	core, logs := observer.New(zapcore.InfoLevel)
	logConfigWarnings(zap.New(core), cfg)
	return logs
}

func TestLogConfigWarnings_Production(t *testing.T) {
	cfg := config.Config{
		SyncOnStart:             true,
		CircuitBreakerThreshold: 5,
		ExecuteRateLimit:        5,
		ExecutionTimeout:        30 * time.Second,
		RunSchedule:             "* * * * *",
		MetricsEnabled:          true,
	}
	logs := captureWarnings(cfg)
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %v", logs.All())
	}
}

func TestLogConfigWarnings_Defaults(t *testing.T) {
	cfg := config.Config{
		SyncOnStart:             true,
		CircuitBreakerThreshold: 5,
		ExecuteRateLimit:        5,
		ExecutionTimeout:        60 * time.Second,
		RunSchedule:             "* * * * *",
	}
	logs := captureWarnings(cfg)

	if n := logs.FilterMessageSnippet("EXECUTION_TIMEOUT").FilterLevelExact(zapcore.WarnLevel).Len(); n != 1 {
		t.Errorf("expected execution timeout warning, got %d", n)
	}
	if n := logs.FilterMessageSnippet("METRICS_ENABLED").FilterLevelExact(zapcore.InfoLevel).Len(); n != 1 {
		t.Errorf("expected metrics info, got %d", n)
	}
	if n := logs.FilterMessageSnippet("SYNC_ON_START").Len(); n != 0 {
		t.Errorf("did not expect sync warning, got %d", n)
	}
}

func TestLogConfigWarnings_Disabled(t *testing.T) {
	cfg := config.Config{
		SyncOnStart:      false,
		ExecutionTimeout: 90 * time.Second,
		RunSchedule:      "*/5 * * * *",
		MetricsEnabled:   true,
	}
	logs := captureWarnings(cfg)

	for _, snippet := range []string{"SYNC_ON_START", "CIRCUIT_BREAKER_THRESHOLD", "EXECUTE_RATE_LIMIT"} {
		if logs.FilterMessageSnippet(snippet).Len() != 1 {
			t.Errorf("expected warning mentioning %s", snippet)
		}
	}
	if logs.FilterMessageSnippet("EXECUTION_TIMEOUT").Len() != 0 {
		t.Error("did not expect execution timeout warning for a 5 minute cadence")
	}
}
