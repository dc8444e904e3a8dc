package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig holds configuration for logger creation
type LoggerConfig struct {
	Debug bool
}

// NewLogger creates a new zap logger.
// Production config by default; Debug enables development mode with debug-level output.
func NewLogger(cfg *LoggerConfig) (*zap.Logger, error) {
	if cfg != nil && cfg.Debug {
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return c.Build()
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	return c.Build()
}
