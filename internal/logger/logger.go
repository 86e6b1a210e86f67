// Package logger builds the process-wide zap sugared logger. Callers
// hold the returned handle; nothing here is global, so tests can build
// throwaway loggers without fighting a singleton.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Development switches to the console encoder with colored levels.
	Development bool
	// Level is a zap level name ("debug", "info", ...). Empty means the
	// encoder preset's default.
	Level string
}

func New(cfg Config) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop returns a no-op sugared logger for tests and optional dependencies.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
