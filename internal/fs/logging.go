package fs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger generalizes the teacher's hand-rolled -verbose/-quiet gated
// Log/Info helpers into a structured zap logger: Verbose maps to debug
// level, Quiet suppresses info and below.
func newLogger(cfg Config) *zap.Logger {
	level := zapcore.InfoLevel
	switch {
	case cfg.Verbose:
		level = zapcore.DebugLevel
	case cfg.Quiet:
		level = zapcore.WarnLevel
	}

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.DisableStacktrace = true

	logger, err := zcfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
