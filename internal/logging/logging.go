// Package logging builds the zap logger shared by all components.
package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production JSON logger at the given level.
// Unknown levels fall back to info.
func New(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// ParseLevel accepts any zap level name, falling back to info.
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
