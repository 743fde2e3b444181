package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LevelEnvVar  = "EXECUTOR_LOG_LEVEL"
	FormatEnvVar = "EXECUTOR_LOG_FORMAT"
)

// DevelopmentConfig logs human readable console lines with caller and ISO8601 timestamps.
func DevelopmentConfig(level zapcore.Level) func(*zap.Config) {
	return func(config *zap.Config) {
		config.Level = zap.NewAtomicLevelAt(level)
		config.Development = true
		config.DisableCaller = false
		config.DisableStacktrace = false
		config.Encoding = "console"
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	}
}

// JSONConfig logs one JSON object per line for log shippers. Stack traces are kept for errors only.
func JSONConfig(level zapcore.Level) func(*zap.Config) {
	return func(config *zap.Config) {
		config.Level = zap.NewAtomicLevelAt(level)
		config.Development = false
		config.DisableStacktrace = level > zapcore.ErrorLevel
		config.Encoding = "json"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	}
}

// FromEnv picks the logger configuration from EXECUTOR_LOG_LEVEL (default info) and
// EXECUTOR_LOG_FORMAT ("console" or "json", default console).
func FromEnv(getenv func(string) string) (func(*zap.Config), error) {
	level := zapcore.InfoLevel
	if v := getenv(LevelEnvVar); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", LevelEnvVar, v, err)
		}
	}

	switch format := strings.ToLower(getenv(FormatEnvVar)); format {
	case "", "console":
		return DevelopmentConfig(level), nil
	case "json":
		return JSONConfig(level), nil
	default:
		return nil, fmt.Errorf("invalid %s %q, expected console or json", FormatEnvVar, format)
	}
}
