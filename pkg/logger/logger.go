// Package logger builds the application-wide zap logger.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	envLocal      = "local"
	envProduction = "production"
)

// New creates a zap logger configured for the given environment.
// "local" gets a human-readable development logger, everything else
// gets production JSON output.
func New(env string) *zap.Logger {
	var cfg zap.Config

	switch env {
	case envLocal:
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	log, err := cfg.Build()
	if err != nil {
		// Logging is not optional; fall back to a no-op logger only if
		// the config itself is broken.
		return zap.NewNop()
	}

	return log.With(zap.String("env", env))
}
