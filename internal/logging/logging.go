// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// ValidateFormat reports whether format is a supported log format.
func ValidateFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, FormatConsole:
		return nil
	}
	return fmt.Errorf("invalid log format %q", format)
}

// ParseLevel parses a level name such as "debug" or "WARN".
func ParseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	if err := parsed.Set(strings.TrimSpace(level)); err != nil {
		return parsed, fmt.Errorf("invalid level %q: %w", level, err)
	}
	return parsed, nil
}

// New returns a logger writing to stderr at level in the given format.
// The json format uses the production encoder; console uses the
// development encoder for local runs.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	var cfg zap.Config
	if strings.EqualFold(strings.TrimSpace(format), FormatConsole) {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
