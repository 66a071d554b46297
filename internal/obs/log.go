package obs

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerOnce sync.Once
	logger     *zap.SugaredLogger
)

// Logger returns the shared structured logger. Components accept an
// injected logger and fall back to this one when none is provided.
func Logger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		logger = newLogger(zapcore.InfoLevel)
	})
	return logger
}

// InitLogger builds the shared logger at the given level. Must be called
// before the first Logger() use to take effect.
func InitLogger(level string) *zap.SugaredLogger {
	loggerOnce.Do(func() {
		logger = newLogger(ParseLevel(level))
	})
	return logger
}

func newLogger(level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableStacktrace = true
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
