// Package logger builds the service's zap logger.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a JSON logger at logLevel that tags every entry with the
// service name. An empty level means info.
func NewLogger(serviceName, logLevel string) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if logLevel = strings.TrimSpace(logLevel); logLevel != "" {
		parsed, err := zapcore.ParseLevel(logLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		level = parsed
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}

	// Sampling would drop repeated per-row query errors
	config.Sampling = nil

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// Must is NewLogger for process start-up, where a bad level is fatal
func Must(serviceName, logLevel string) *zap.Logger {
	log, err := NewLogger(serviceName, logLevel)
	if err != nil {
		panic(err)
	}
	return log
}
