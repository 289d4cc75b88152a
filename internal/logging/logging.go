package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once   sync.Once
	logger *zap.Logger
	err    error
)

// Setup builds the process logger on first call. Later calls return the same
// logger and ignore their arguments. format is "console" or "json".
func Setup(level, format string) (*zap.Logger, error) {
	once.Do(func() {
		logger, err = build(level, format)
	})
	return logger, err
}

func build(level, format string) (*zap.Logger, error) {
	lvl, parseErr := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if parseErr != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, parseErr)
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Sync flushes the process logger if one was built
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

// Fallback is used when Setup failed, so callers always hold a usable logger
func Fallback() *zap.Logger {
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stderr),
		zap.InfoLevel,
	))
}
