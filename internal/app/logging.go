package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"travelmcp/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

// Logging bundles the logger and broadcaster.
type Logging struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

// NewLogging tees the configured logger into a broadcaster so MCP clients
// can follow gateway logs.
func NewLogging(cfg LoggingConfig) Logging {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("app")

	if cfg.Broadcaster != nil {
		return Logging{Logger: logger, Broadcaster: cfg.Broadcaster}
	}

	logs := telemetry.NewLogBroadcaster(zapcore.InfoLevel)
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logs.Core())
	}))
	return Logging{Logger: logger, Broadcaster: logs}
}

// NewLogger returns the logger from a Logging bundle.
func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}

// NewLogBroadcaster returns the broadcaster from a Logging bundle.
func NewLogBroadcaster(logging Logging) *telemetry.LogBroadcaster {
	return logging.Broadcaster
}

// ResolveLevel picks the log level. Repeated -v flags win over the configured
// level: one selects info, two or more select debug.
func ResolveLevel(verbosity int, configured string) (zapcore.Level, error) {
	switch {
	case verbosity >= 2:
		return zapcore.DebugLevel, nil
	case verbosity == 1:
		return zapcore.InfoLevel, nil
	}
	configured = strings.TrimSpace(configured)
	if configured == "" {
		return zapcore.WarnLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(configured))
	if err != nil {
		return zapcore.WarnLevel, fmt.Errorf("invalid log level %q: %w", configured, err)
	}
	return level, nil
}

// BuildLogger creates a production logger writing to stderr so stdout stays
// free for the MCP stream. The level stays adjustable after configuration
// has been loaded.
func BuildLogger(level zap.AtomicLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
