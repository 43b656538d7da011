package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a new zap logger for the given environment. local logs at debug level,
// development at info, and production emits sampled JSON.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "", "local":
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		return c.Build()
	case "development":
		c := zap.NewDevelopmentConfig()
		c.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return c.Build()
	case "production":
		return zap.NewProduction()
	default:
		return nil, fmt.Errorf("unknown environment %q", env)
	}
}
