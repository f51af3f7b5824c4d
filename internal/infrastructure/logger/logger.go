package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "storefront"

// New builds the production JSON logger. An unknown level falls back to info.
func New(level string) (*zap.Logger, error) {
	lvl, parseErr := zapcore.ParseLevel(level)
	if parseErr != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": serviceName}
	// conflict retries can burst; keep every line
	cfg.Sampling = nil

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	if parseErr != nil {
		logger.Warn("unknown log level, using info", zap.String("requested", level))
	}
	return logger, nil
}
