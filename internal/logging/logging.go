// Package logging builds the zap logger shared by the CLI and services.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/serownia/internal/config"
)

// New builds a logger writing to stderr. Encoding "json" selects the
// production encoder config, anything else the development console encoder.
// verbose forces the debug level.
func New(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Encoding == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.DisableCaller = cfg.DisableCaller
	zapCfg.DisableStacktrace = cfg.DisableStacktrace
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}
